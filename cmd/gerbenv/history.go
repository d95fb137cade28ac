package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/gerbenv/internal/config"
	"github.com/nao1215/gerbenv/internal/database"
	"github.com/nao1215/gerbenv/internal/model"
	"github.com/spf13/cobra"
)

// Constants for severity direction and summary messages.
const (
	severityDirectionWorsened  = "worsened"
	severityDirectionImproved  = "improved"
	severityDirectionUnchanged = "unchanged"
	noFindingsMessage          = "No findings"
)

// NewHistoryCmd creates the history command.
// This command compares conversion runs recorded in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [project]",
		Short: "Compare conversion runs recorded in the database",
		Long: `History displays differences between conversion runs of a project.

This command retrieves run records from the database and shows:
- Layers that were added or removed between runs
- New findings that appeared since the previous run
- Resolved findings that are no longer present
- Changes in finding severity counts

The comparison requires at least two recorded runs for the specified
project. Use 'gerbenv convert' to convert a project and record a run.

Examples:
  # Compare the latest two runs of a project
  gerbenv history demo-board

  # List all recorded runs of a project
  gerbenv history --list demo-board

  # Compare with a specific run by ID
  gerbenv history --with-run-id 5 demo-board

  # Compare with the first run after a specific date
  gerbenv history --since "2026-01-01" demo-board

  # Output comparison in JSON format
  gerbenv history --json demo-board

  # List all projects in the database
  gerbenv history --list-projects`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List recorded runs for the specified project")
	cmd.Flags().BoolP("list-projects", "L", false,
		"List all projects in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-projects flag first (requires database but no project)
	listProjects, err := cmd.Flags().GetBool("list-projects")
	if err != nil {
		return err
	}

	// Validate arguments before opening database (unless --list-projects)
	// This prevents database lock issues when validation fails
	var project string
	if !listProjects {
		// Require a project name for other operations
		if len(args) == 0 {
			return errors.New("project name is required (use --list-projects to see recorded projects)")
		}
		project = args[0]
	}

	// Use XDG data directory for database unless the environment says
	// otherwise
	dbDir := os.Getenv("GERBENV_DB_DIR")
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Open database
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Handle --list-projects flag
	if listProjects {
		return listRecordedProjects(ctx, db)
	}

	// Handle --list flag
	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, db, project)
	}

	// Get output format flag
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// Get comparison target flags
	withRunID, err := cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return err
	}
	sinceDate, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}

	// Perform comparison
	return runComparison(ctx, db, project, withRunID, sinceDate, jsonOutput)
}

// listRecordedProjects lists all projects that have run records in the database.
func listRecordedProjects(ctx context.Context, db *database.RunDB) error {
	projects, err := db.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("No recorded projects found in the database.")
		fmt.Println("\nUse 'gerbenv convert <project-dir>' to convert a project.")
		return nil
	}

	fmt.Printf("Recorded projects (%d):\n\n", len(projects))
	for _, project := range projects {
		fmt.Printf("  • %s\n", project)
	}
	fmt.Println("\nUse 'gerbenv history --list <project>' to see run history for a project.")

	return nil
}

// listRunHistory lists all run records for a specific project.
func listRunHistory(ctx context.Context, db *database.RunDB, project string) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, project)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Printf("No run history found for %s\n", project)
		fmt.Println("\nUse 'gerbenv convert' to convert this project.")
		return nil
	}

	fmt.Printf("Run history for %s (%d runs):\n\n", project, len(runs))
	fmt.Printf("  %-6s  %-20s  %s\n", "ID", "Date", "Finding Summary")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, meta := range runs {
		summary := formatSeveritySummary(meta.SeveritySummary)
		fmt.Printf("  %-6d  %-20s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			summary,
		)
	}

	fmt.Println("\nUse 'gerbenv history <project>' to compare the latest two runs.")
	fmt.Println("Use 'gerbenv history --with-run-id <id> <project>' to compare with a specific run.")

	return nil
}

// formatSeveritySummary formats the severity summary map into a human-readable string.
func formatSeveritySummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	if v := summary["critical"]; v > 0 {
		parts = append(parts, fmt.Sprintf("C:%d", v))
	}
	if v := summary["high"]; v > 0 {
		parts = append(parts, fmt.Sprintf("H:%d", v))
	}
	if v := summary["medium"]; v > 0 {
		parts = append(parts, fmt.Sprintf("M:%d", v))
	}
	if v := summary["low"]; v > 0 {
		parts = append(parts, fmt.Sprintf("L:%d", v))
	}
	if v := summary["info"]; v > 0 {
		parts = append(parts, fmt.Sprintf("I:%d", v))
	}

	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

// runComparison performs the actual comparison between run records.
func runComparison(ctx context.Context, db *database.RunDB, project string, withRunID int64, sinceDate string, jsonOutput bool) error {
	// Get the run metadata, newest first
	runs, err := db.GetRunHistoryWithMetadata(ctx, project)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		return fmt.Errorf("no run history found for %s", project)
	}

	if len(runs) < 2 && withRunID == 0 && sinceDate == "" {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	// Latest run is always the current one
	currentID := runs[0].ID
	var previousID int64

	if withRunID > 0 {
		// Validate that the run ID exists and belongs to the same project
		previousReport, err := db.GetReportByID(ctx, withRunID)
		if err != nil {
			return fmt.Errorf("failed to get run with ID %d: %w", withRunID, err)
		}
		if previousReport == nil {
			return fmt.Errorf("run with ID %d not found", withRunID)
		}
		if previousReport.Project != project {
			return fmt.Errorf("run ID %d belongs to %s, not %s", withRunID, previousReport.Project, project)
		}
		previousID = withRunID
	} else if sinceDate != "" {
		// Parse the date and find the first (oldest) run at or after the
		// specified date
		parsedDate, err := time.Parse("2006-01-02", sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Runs are sorted newest first, so iterate in reverse to find the
		// oldest run at or after the date
		for i := len(runs) - 1; i >= 0; i-- {
			meta := runs[i]
			if meta.Timestamp.After(parsedDate) || meta.Timestamp.Equal(parsedDate) {
				previousID = meta.ID
				break // Stop at the first (oldest) matching run
			}
		}
		if previousID == 0 {
			return fmt.Errorf("no runs found since %s", sinceDate)
		}
		// If only one run matches and it's the current run, we can't compare
		if previousID == currentID {
			return fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", sinceDate)
		}
	} else {
		// Default: compare with the previous run
		previousID = runs[1].ID
	}

	// Diff the stored runs
	diff, err := db.DiffRuns(ctx, previousID, currentID)
	if err != nil {
		return fmt.Errorf("failed to diff runs: %w", err)
	}

	// Load both reports for severity metadata
	previousReport, err := db.GetReportByID(ctx, previousID)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", previousID, err)
	}
	currentReport, err := db.GetReportByID(ctx, currentID)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", currentID, err)
	}

	comparison := buildComparison(project, previousReport, currentReport, diff)

	// Output the result
	if jsonOutput {
		return outputComparisonJSON(comparison)
	}
	return outputComparisonText(comparison)
}

// ComparisonResult holds the result of comparing two conversion runs.
type ComparisonResult struct {
	// Project is the compared project name.
	Project string `json:"project"`

	// PreviousRun contains metadata about the previous run.
	PreviousRun RunSummary `json:"previous_run"`

	// CurrentRun contains metadata about the current run.
	CurrentRun RunSummary `json:"current_run"`

	// AddedLayers are layer paths present only in the current run.
	AddedLayers []string `json:"added_layers,omitempty"`

	// RemovedLayers are layer paths present only in the previous run.
	RemovedLayers []string `json:"removed_layers,omitempty"`

	// NewFindings are finding keys present only in the current run.
	NewFindings []string `json:"new_findings,omitempty"`

	// ResolvedFindings are finding keys present only in the previous run.
	ResolvedFindings []string `json:"resolved_findings,omitempty"`

	// SeverityChange describes the overall change in finding severity.
	SeverityChange SeverityChange `json:"severity_change"`
}

// RunSummary contains metadata about a run for comparison display.
type RunSummary struct {
	// RunID is the database identifier of the run.
	RunID int64 `json:"run_id"`

	// DateConverted is when the conversion was performed.
	DateConverted time.Time `json:"date_converted"`

	// TotalFindings is the total number of findings in this run.
	TotalFindings int `json:"total_findings"`

	// CriticalCount is the number of critical findings.
	CriticalCount int `json:"critical_count"`

	// HighCount is the number of high severity findings.
	HighCount int `json:"high_count"`

	// MediumCount is the number of medium severity findings.
	MediumCount int `json:"medium_count"`

	// LowCount is the number of low severity findings.
	LowCount int `json:"low_count"`

	// InfoCount is the number of informational findings.
	InfoCount int `json:"info_count"`
}

// SeverityChange describes the change in finding severity between runs.
type SeverityChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`

	// CriticalDelta is the change in critical findings count.
	CriticalDelta int `json:"critical_delta"`

	// HighDelta is the change in high severity findings count.
	HighDelta int `json:"high_delta"`

	// MediumDelta is the change in medium severity findings count.
	MediumDelta int `json:"medium_delta"`

	// LowDelta is the change in low severity findings count.
	LowDelta int `json:"low_delta"`

	// InfoDelta is the change in informational findings count.
	InfoDelta int `json:"info_delta"`
}

// buildComparison assembles a comparison result from two stored runs
// and their database diff.
func buildComparison(project string, previous, current *model.Report, diff *database.RunDiff) *ComparisonResult {
	result := &ComparisonResult{
		Project:          project,
		PreviousRun:      runSummary(diff.OldID, previous),
		CurrentRun:       runSummary(diff.NewID, current),
		AddedLayers:      diff.AddedLayers,
		RemovedLayers:    diff.RemovedLayers,
		NewFindings:      diff.NewFindings,
		ResolvedFindings: diff.ResolvedFindings,
	}

	result.SeverityChange = calculateSeverityChange(result.PreviousRun, result.CurrentRun)

	return result
}

// runSummary extracts display metadata from a stored report.
func runSummary(runID int64, r *model.Report) RunSummary {
	summary := RunSummary{RunID: runID}
	if r == nil {
		return summary
	}

	summary.DateConverted = r.DateConverted
	if r.SimpleReport != nil {
		summary.TotalFindings = len(r.SimpleReport.Findings)
		summary.CriticalCount = r.SimpleReport.CriticalCount
		summary.HighCount = r.SimpleReport.HighCount
		summary.MediumCount = r.SimpleReport.MediumCount
		summary.LowCount = r.SimpleReport.LowCount
		summary.InfoCount = r.SimpleReport.InfoCount
	}
	return summary
}

// calculateSeverityChange calculates the change in severity between two runs.
func calculateSeverityChange(previous, current RunSummary) SeverityChange {
	change := SeverityChange{
		CriticalDelta: current.CriticalCount - previous.CriticalCount,
		HighDelta:     current.HighCount - previous.HighCount,
		MediumDelta:   current.MediumCount - previous.MediumCount,
		LowDelta:      current.LowCount - previous.LowCount,
		InfoDelta:     current.InfoCount - previous.InfoCount,
	}

	// Determine overall direction based on weighted score
	// Critical and High severity changes have more weight
	previousScore := previous.CriticalCount*100 + previous.HighCount*50 + previous.MediumCount*10 + previous.LowCount*5 + previous.InfoCount
	currentScore := current.CriticalCount*100 + current.HighCount*50 + current.MediumCount*10 + current.LowCount*5 + current.InfoCount

	if currentScore < previousScore {
		change.Direction = severityDirectionImproved
	} else if currentScore > previousScore {
		change.Direction = severityDirectionWorsened
	} else {
		change.Direction = severityDirectionUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(result *ComparisonResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(result *ComparisonResult) error {
	fmt.Printf("Run Comparison: %s\n", result.Project)
	fmt.Println(strings.Repeat("=", 60))

	// Severity change summary
	fmt.Printf("\nStatus: %s\n", formatSeverityDirection(result.SeverityChange.Direction))

	// Run dates
	fmt.Printf("\nPrevious run: #%d  %s\n", result.PreviousRun.RunID,
		result.PreviousRun.DateConverted.Format("2006-01-02 15:04:05"))
	fmt.Printf("Current run:  #%d  %s\n", result.CurrentRun.RunID,
		result.CurrentRun.DateConverted.Format("2006-01-02 15:04:05"))

	// Summary table
	fmt.Println("\nFindings Summary:")
	fmt.Printf("  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Println("  " + strings.Repeat("-", 45))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Critical",
		result.PreviousRun.CriticalCount, result.CurrentRun.CriticalCount,
		formatDelta(result.SeverityChange.CriticalDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "High",
		result.PreviousRun.HighCount, result.CurrentRun.HighCount,
		formatDelta(result.SeverityChange.HighDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Medium",
		result.PreviousRun.MediumCount, result.CurrentRun.MediumCount,
		formatDelta(result.SeverityChange.MediumDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Low",
		result.PreviousRun.LowCount, result.CurrentRun.LowCount,
		formatDelta(result.SeverityChange.LowDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Info",
		result.PreviousRun.InfoCount, result.CurrentRun.InfoCount,
		formatDelta(result.SeverityChange.InfoDelta))
	fmt.Println("  " + strings.Repeat("-", 45))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Total",
		result.PreviousRun.TotalFindings, result.CurrentRun.TotalFindings,
		formatDelta(result.CurrentRun.TotalFindings-result.PreviousRun.TotalFindings))

	// Layer changes
	if len(result.AddedLayers) > 0 {
		fmt.Printf("\nAdded Layers (%d):\n", len(result.AddedLayers))
		for _, path := range result.AddedLayers {
			fmt.Printf("  [+] %s\n", path)
		}
	}
	if len(result.RemovedLayers) > 0 {
		fmt.Printf("\nRemoved Layers (%d):\n", len(result.RemovedLayers))
		for _, path := range result.RemovedLayers {
			fmt.Printf("  [-] %s\n", path)
		}
	}

	// New findings
	if len(result.NewFindings) > 0 {
		fmt.Printf("\nNew Findings (%d):\n", len(result.NewFindings))
		for _, key := range result.NewFindings {
			fmt.Printf("  [+] %s\n", key)
		}
	}

	// Resolved findings
	if len(result.ResolvedFindings) > 0 {
		fmt.Printf("\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, key := range result.ResolvedFindings {
			fmt.Printf("  [-] %s\n", key)
		}
	}

	return nil
}

// formatSeverityDirection formats the severity change direction for display.
func formatSeverityDirection(direction string) string {
	switch direction {
	case severityDirectionImproved:
		return "IMPROVED (fewer conversion problems)"
	case severityDirectionWorsened:
		return "WORSENED (more conversion problems)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
