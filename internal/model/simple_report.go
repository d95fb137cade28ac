package model

import "time"

// SimpleReport is a summarized, human-readable conversion report. It
// carries the curated findings and headline numbers without the full
// per-layer detail of Report.
type SimpleReport struct {
	// Project is the converted project name.
	Project string `json:"project"`

	// DateConverted is when the conversion started.
	DateConverted time.Time `json:"date_converted"`

	// === Severity Summary ===

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

	// === Findings ===

	// Findings contains all categorized findings.
	Findings []Finding `json:"findings,omitempty"`

	// === Statistics ===

	// LayersProcessed is the number of layers the job referenced.
	LayersProcessed int `json:"layers_processed"`

	// OutputsWritten is the number of artifacts produced.
	OutputsWritten int `json:"outputs_written"`

	// TimedOut indicates the conversion was terminated by its
	// deadline.
	TimedOut bool `json:"timed_out"`

	// Error contains any error message if the conversion failed.
	Error string `json:"error,omitempty"`
}

// Finding represents a single finding in the simple report.
type Finding struct {
	// Type is the finding type identifier. This maps to the finding
	// catalog in severity.go.
	Type string `json:"type"`

	// Severity is the impact level.
	Severity Severity `json:"severity"`

	// SeverityText is the human-readable severity.
	SeverityText string `json:"severity_text"`

	// Title is a short description of the finding.
	Title string `json:"title"`

	// Description provides more detail about the finding.
	Description string `json:"description,omitempty"`

	// Impact explains the consequences of this finding.
	Impact string `json:"impact,omitempty"`

	// Recommendation provides guidance on how to address this finding.
	Recommendation string `json:"recommendation,omitempty"`

	// Value is the specific value found (path, count, pad pair).
	Value string `json:"value,omitempty"`

	// Location is where the finding was discovered (layer or file).
	Location string `json:"location,omitempty"`
}

// NewSimpleReport creates a SimpleReport summarizing a conversion
// report. Findings already recorded through AddFinding are carried
// over.
func NewSimpleReport(report *Report) *SimpleReport {
	simple := &SimpleReport{
		Project:         report.Project,
		DateConverted:   report.DateConverted,
		LayersProcessed: len(report.Layers),
		OutputsWritten:  len(report.Outputs),
		TimedOut:        report.TimedOut,
	}
	if report.Error != nil {
		simple.Error = report.Error.Error()
	}
	if report.SimpleReport != nil {
		simple.Findings = report.SimpleReport.Findings
	}
	simple.countBySeverity()
	return simple
}

// countBySeverity counts findings by severity level.
func (s *SimpleReport) countBySeverity() {
	s.CriticalCount, s.HighCount, s.MediumCount, s.LowCount, s.InfoCount = 0, 0, 0, 0, 0
	for _, f := range s.Findings {
		switch f.Severity {
		case SeverityCritical:
			s.CriticalCount++
		case SeverityHigh:
			s.HighCount++
		case SeverityMedium:
			s.MediumCount++
		case SeverityLow:
			s.LowCount++
		case SeverityInfo:
			s.InfoCount++
		}
	}
}

// TotalFindings returns the total number of findings.
func (s *SimpleReport) TotalFindings() int {
	return len(s.Findings)
}

// HasFindings returns true if there are any findings.
func (s *SimpleReport) HasFindings() bool {
	return len(s.Findings) > 0
}

// GetFindingsBySeverity returns findings filtered by severity.
func (s *SimpleReport) GetFindingsBySeverity(severity Severity) []Finding {
	var result []Finding
	for _, f := range s.Findings {
		if f.Severity == severity {
			result = append(result, f)
		}
	}
	return result
}
