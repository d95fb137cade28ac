package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/gerbenv/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*RunDB, func()) {
	t.Helper()

	tmpDir := t.TempDir()

	db, err := Open(tmpDir, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db, cleanup
}

// sampleReport builds a report with layers and findings for storage tests.
func sampleReport(project string) *model.Report {
	report := model.NewReport(project, "/work/"+project+"/demo-job.gbrjob")
	report.AddLayer(model.LayerResult{
		Path:     "demo-F_Mask.gbr",
		Category: "SOLDERMASK",
		Side:     "TOP",
		FromJob:  true,
		Polygons: 3,
	})
	report.AddLayer(model.LayerResult{
		Path:            "edit_demo-F_Fab.gbr",
		SourcePath:      "demo-F_Fab.gbr",
		Category:        "ASSEMBLYDRAWING",
		Side:            "TOP",
		FromJob:         true,
		SuppressedDraws: 2,
	})
	report.AddFinding(model.NewFinding(
		"suppressed_draws",
		"Assembly Draws Suppressed",
		"2 draw commands fell outside the aperture thickness window.",
		"2",
		"demo-F_Fab.gbr",
	))
	report.SimpleReport = model.NewSimpleReport(report)
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()

		dbDir := filepath.Join(tmpDir, "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		// Check that database file exists
		dbPath := filepath.Join(dbDir, "gerbenv.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		dbDir := filepath.Join(tmpDir, "nonexistent-db")

		opts := Options{
			CreateIfNotExists: false,
			EnableWAL:         true,
		}

		_, err := Open(dbDir, opts)
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}

		// Verify error message is informative
		expectedMsg := "database not found"
		if !contains(err.Error(), expectedMsg) {
			t.Errorf("expected error to contain %q, got %q", expectedMsg, err.Error())
		}

		// Verify database directory was NOT created
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created when CreateIfNotExists=false")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		dbDir := filepath.Join(tmpDir, "existing-db")

		// First create the database
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db1.Close()

		// Then open it without create
		opts := Options{
			CreateIfNotExists: false,
			EnableWAL:         true,
		}
		db2, err := Open(dbDir, opts)
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()
	})
}

// TestDefaultOptions tests the default option values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()

	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

// contains checks if s contains substr.
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && containsAt(s, substr))
}

// containsAt checks if s contains substr at any position.
func containsAt(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// TestSaveAndGetReport tests conversion run storage.
func TestSaveAndGetReport(t *testing.T) {
	t.Parallel()

	t.Run("stores and retrieves a report", func(t *testing.T) {
		t.Parallel()

		db, cleanup := setupTestDB(t)
		defer cleanup()

		ctx := context.Background()
		original := sampleReport("demo")

		id, err := db.SaveReport(ctx, original)
		if err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
		if id == 0 {
			t.Error("expected non-zero run id")
		}

		retrieved, err := db.GetLatestReport(ctx, "demo")
		if err != nil {
			t.Fatalf("failed to get report: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected report, got nil")
		}
		if retrieved.Project != "demo" {
			t.Errorf("expected project 'demo', got %q", retrieved.Project)
		}
		if len(retrieved.Layers) != 2 {
			t.Errorf("expected 2 layers, got %d", len(retrieved.Layers))
		}
		if retrieved.SimpleReport == nil || retrieved.SimpleReport.TotalFindings() != 1 {
			t.Error("expected one finding in stored report")
		}
	})

	t.Run("returns nil for unknown project", func(t *testing.T) {
		t.Parallel()

		db, cleanup := setupTestDB(t)
		defer cleanup()

		report, err := db.GetLatestReport(context.Background(), "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report != nil {
			t.Error("expected nil report for unknown project")
		}
	})

	t.Run("latest report wins", func(t *testing.T) {
		t.Parallel()

		db, cleanup := setupTestDB(t)
		defer cleanup()

		ctx := context.Background()

		first := sampleReport("demo")
		if _, err := db.SaveReport(ctx, first); err != nil {
			t.Fatal(err)
		}

		second := sampleReport("demo")
		second.AddLayer(model.LayerResult{Path: "demo-F_Paste.gbr", Category: "SOLDERPASTE", Side: "TOP"})
		if _, err := db.SaveReport(ctx, second); err != nil {
			t.Fatal(err)
		}

		latest, err := db.GetLatestReport(ctx, "demo")
		if err != nil {
			t.Fatal(err)
		}
		if len(latest.Layers) != 3 {
			t.Errorf("expected the newer run with 3 layers, got %d", len(latest.Layers))
		}
	})
}

// TestListProjects tests the project listing.
func TestListProjects(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	for _, project := range []string{"beta", "alpha", "beta"} {
		if _, err := db.SaveReport(ctx, sampleReport(project)); err != nil {
			t.Fatal(err)
		}
	}

	projects, err := db.ListProjects(ctx)
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}

	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d: %v", len(projects), projects)
	}
	if projects[0] != "alpha" || projects[1] != "beta" {
		t.Errorf("expected sorted projects [alpha beta], got %v", projects)
	}
}

// TestGetRunHistory tests full history retrieval.
func TestGetRunHistory(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := db.SaveReport(ctx, sampleReport("demo")); err != nil {
			t.Fatal(err)
		}
	}

	history, err := db.GetRunHistory(ctx, "demo")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 runs, got %d", len(history))
	}
	for _, r := range history {
		if r.Project != "demo" {
			t.Errorf("unexpected project %q in history", r.Project)
		}
	}
}

// TestGetRunHistoryWithMetadata tests the lightweight history view.
func TestGetRunHistoryWithMetadata(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := db.SaveReport(ctx, sampleReport("demo")); err != nil {
		t.Fatal(err)
	}

	metadata, err := db.GetRunHistoryWithMetadata(ctx, "demo")
	if err != nil {
		t.Fatalf("failed to get metadata: %v", err)
	}
	if len(metadata) != 1 {
		t.Fatalf("expected 1 metadata record, got %d", len(metadata))
	}

	meta := metadata[0]
	if meta.Project != "demo" {
		t.Errorf("expected project 'demo', got %q", meta.Project)
	}
	if meta.ID == 0 {
		t.Error("expected non-zero run id")
	}
	// sampleReport carries one info finding
	if meta.SeveritySummary["info"] != 1 {
		t.Errorf("expected info count 1, got %d", meta.SeveritySummary["info"])
	}
}

// TestGetReportByID tests retrieval by run id.
func TestGetReportByID(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	id, err := db.SaveReport(ctx, sampleReport("byid"))
	if err != nil {
		t.Fatal(err)
	}

	retrieved, err := db.GetReportByID(ctx, id)
	if err != nil {
		t.Fatalf("failed to get report by id: %v", err)
	}
	if retrieved == nil {
		t.Fatal("expected report, got nil")
	}
	if retrieved.Project != "byid" {
		t.Errorf("expected project 'byid', got %q", retrieved.Project)
	}

	missing, err := db.GetReportByID(ctx, id+100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown id")
	}
}

// TestGetRunLayers tests per-layer record storage.
func TestGetRunLayers(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	id, err := db.SaveReport(ctx, sampleReport("layers"))
	if err != nil {
		t.Fatal(err)
	}

	layers, err := db.GetRunLayers(ctx, id)
	if err != nil {
		t.Fatalf("failed to get run layers: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layer records, got %d", len(layers))
	}
	if layers[0].Path != "demo-F_Mask.gbr" || layers[0].Polygons != 3 {
		t.Errorf("unexpected first layer record: %+v", layers[0])
	}
	if layers[1].SuppressedDraws != 2 {
		t.Errorf("expected suppressed draws 2, got %d", layers[1].SuppressedDraws)
	}
}

// TestDiffRuns tests run comparison.
func TestDiffRuns(t *testing.T) {
	t.Parallel()

	t.Run("reports layer and finding changes", func(t *testing.T) {
		t.Parallel()

		db, cleanup := setupTestDB(t)
		defer cleanup()

		ctx := context.Background()

		oldReport := sampleReport("demo")
		oldID, err := db.SaveReport(ctx, oldReport)
		if err != nil {
			t.Fatal(err)
		}

		newReport := model.NewReport("demo", "/work/demo/demo-job.gbrjob")
		newReport.AddLayer(model.LayerResult{Path: "demo-F_Mask.gbr", Category: "SOLDERMASK", Side: "TOP"})
		newReport.AddLayer(model.LayerResult{Path: "demo-F_Paste.gbr", Category: "SOLDERPASTE", Side: "TOP"})
		newReport.AddFinding(model.NewFinding(
			"unroutable_paste_pads",
			"Paste Pads Unreachable",
			"No free path exists between two solder paste pads.",
			"(1,1)-(9,9)",
			"top",
		))
		newReport.SimpleReport = model.NewSimpleReport(newReport)
		newID, err := db.SaveReport(ctx, newReport)
		if err != nil {
			t.Fatal(err)
		}

		diff, err := db.DiffRuns(ctx, oldID, newID)
		if err != nil {
			t.Fatalf("failed to diff runs: %v", err)
		}

		if len(diff.AddedLayers) != 1 || diff.AddedLayers[0] != "demo-F_Paste.gbr" {
			t.Errorf("unexpected added layers: %v", diff.AddedLayers)
		}
		if len(diff.RemovedLayers) != 1 || diff.RemovedLayers[0] != "edit_demo-F_Fab.gbr" {
			t.Errorf("unexpected removed layers: %v", diff.RemovedLayers)
		}
		if len(diff.NewFindings) != 1 || !contains(diff.NewFindings[0], "unroutable_paste_pads") {
			t.Errorf("unexpected new findings: %v", diff.NewFindings)
		}
		if len(diff.ResolvedFindings) != 1 || !contains(diff.ResolvedFindings[0], "suppressed_draws") {
			t.Errorf("unexpected resolved findings: %v", diff.ResolvedFindings)
		}
	})

	t.Run("unknown run id errors", func(t *testing.T) {
		t.Parallel()

		db, cleanup := setupTestDB(t)
		defer cleanup()

		if _, err := db.DiffRuns(context.Background(), 1, 2); err == nil {
			t.Fatal("expected error for unknown run ids")
		}
	})
}
