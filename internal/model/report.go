package model

import (
	"time"
)

// Report is the main conversion result structure. It collects
// everything the pipeline produced from one job file: classified
// layers, prepared intermediates, rendered outputs, observation
// exports, and findings.
type Report struct {
	// === Basic Information ===

	// Project is the project name from the job file.
	Project string `json:"project"`

	// JobPath is the path of the .gbrjob file that was converted.
	JobPath string `json:"job_path"`

	// OutputDir is the directory conversion artifacts were written to.
	OutputDir string `json:"output_dir,omitempty"`

	// DateConverted is the timestamp when the conversion started.
	DateConverted time.Time `json:"date_converted"`

	// Unit is the coordinate unit of the source data ("mm" or "inch").
	// Coordinates are normalized to millimeters internally.
	Unit string `json:"unit,omitempty"`

	// === Layer Data ===

	// Layers contains every layer the job referenced, including the
	// ones excluded from the rendered sides.
	Layers []LayerResult `json:"layers,omitempty"`

	// SkippedLayers lists layer paths left out of the environment
	// sides (legend, copper, unresolved sides).
	SkippedLayers []string `json:"skipped_layers,omitempty"`

	// === Outputs ===

	// Outputs lists every artifact written during conversion.
	Outputs []OutputFile `json:"outputs,omitempty"`

	// Observations holds the exported observation strings per side.
	Observations []Observation `json:"observations,omitempty"`

	// === Sub-Reports ===

	// SimpleReport contains the summarized findings for human-readable
	// output.
	SimpleReport *SimpleReport `json:"simple_report,omitempty"`

	// === Run State ===

	// PerformedSteps lists the pipeline steps that actually ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true if the conversion was terminated by its
	// deadline.
	TimedOut bool `json:"timed_out"`

	// Error contains any error that occurred during conversion.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for
	// serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// LayerResult describes one layer after classification and
// preparation.
type LayerResult struct {
	// Path is the layer file path relative to the job file.
	Path string `json:"path"`

	// SourcePath is the original path before an edit_ substitution,
	// when the layer was filtered or filled.
	SourcePath string `json:"source_path,omitempty"`

	// Category is the resolved layer category (GLUE, SOLDERMASK, ...).
	Category string `json:"category"`

	// Side is the resolved board side (TOP, BOT, or empty).
	Side string `json:"side,omitempty"`

	// FromJob is true when the category came from the job file rather
	// than the filename fallback.
	FromJob bool `json:"from_job"`

	// Color is the render color assigned to the layer.
	Color string `json:"color,omitempty"`

	// Polygons is the number of closed regions produced when the layer
	// was an outline that got filled.
	Polygons int `json:"polygons,omitempty"`

	// SuppressedDraws is the number of draw commands removed by the
	// aperture thickness filter.
	SuppressedDraws int `json:"suppressed_draws,omitempty"`
}

// OutputFile describes one written artifact.
type OutputFile struct {
	// Path is where the artifact was written.
	Path string `json:"path"`

	// Kind classifies the artifact: svg, png, composite, shapes,
	// observation, report.
	Kind string `json:"kind"`

	// Side is the board side the artifact belongs to, when it has one.
	Side string `json:"side,omitempty"`
}

// Observation is one exported observation string.
type Observation struct {
	// Side is the board side the observation covers.
	Side string `json:"side"`

	// Cells is the total number of grid cells in the string.
	Cells int `json:"cells"`

	// Categories is the number of category grids concatenated.
	Categories int `json:"categories"`
}

// NewReport creates a new report for the given job file.
func NewReport(project, jobPath string) *Report {
	return &Report{
		Project:       project,
		JobPath:       jobPath,
		DateConverted: time.Now(),
	}
}

// AddLayer records a classified layer.
func (r *Report) AddLayer(layer LayerResult) {
	r.Layers = append(r.Layers, layer)
}

// AddOutput records a written artifact.
func (r *Report) AddOutput(path, kind, side string) {
	r.Outputs = append(r.Outputs, OutputFile{Path: path, Kind: kind, Side: side})
}

// AddObservation records an exported observation string.
func (r *Report) AddObservation(side string, cells, categories int) {
	r.Observations = append(r.Observations, Observation{Side: side, Cells: cells, Categories: categories})
}

// LayersBySide returns the layers resolved to the given side.
func (r *Report) LayersBySide(side string) []LayerResult {
	var out []LayerResult
	for _, l := range r.Layers {
		if l.Side == side {
			out = append(out, l)
		}
	}
	return out
}

// AddFinding adds a finding to the simple report, initializing it on
// first use. Findings with identical type, value, and location are
// recorded once.
func (r *Report) AddFinding(finding Finding) {
	if r.SimpleReport == nil {
		r.SimpleReport = &SimpleReport{
			Project:       r.Project,
			DateConverted: r.DateConverted,
			Findings:      make([]Finding, 0),
		}
	}

	if r.SimpleReport.LayersProcessed == 0 && len(r.Layers) > 0 {
		r.SimpleReport.LayersProcessed = len(r.Layers)
	}

	for _, f := range r.SimpleReport.Findings {
		if f.Type == finding.Type && f.Value == finding.Value && f.Location == finding.Location {
			return
		}
	}

	r.SimpleReport.Findings = append(r.SimpleReport.Findings, finding)

	switch finding.Severity {
	case SeverityCritical:
		r.SimpleReport.CriticalCount++
	case SeverityHigh:
		r.SimpleReport.HighCount++
	case SeverityMedium:
		r.SimpleReport.MediumCount++
	case SeverityLow:
		r.SimpleReport.LowCount++
	case SeverityInfo:
		r.SimpleReport.InfoCount++
	}
}

// NewFinding creates a Finding of the given type, filling severity,
// impact, and recommendation from the finding catalog.
func NewFinding(findingType, title, description, value, location string) Finding {
	info := GetFindingInfo(findingType)
	return Finding{
		Type:           findingType,
		Severity:       info.Severity,
		SeverityText:   info.Severity.String(),
		Title:          title,
		Description:    description,
		Impact:         info.Impact,
		Recommendation: info.Recommendation,
		Value:          value,
		Location:       location,
	}
}
