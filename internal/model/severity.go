package model

// Severity represents the impact level of a conversion finding.
// Findings range from notes about normalization up to conditions that
// make the produced training environment unusable.
type Severity int

const (
	// SeverityInfo indicates informational findings with no impact on
	// the produced environment. Examples: unit normalization, layer
	// categories that never appear on the environment sides.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues the converter recovered from.
	// Examples: outline loops force-closed beyond the snap tolerance.
	SeverityLow

	// SeverityMedium indicates issues that degrade the output.
	// Examples: a layer whose category or side could not be resolved
	// and was left out of the rendered sides.
	SeverityMedium

	// SeverityHigh indicates issues that likely break training on the
	// output. Examples: paste pads with no free route between them, an
	// observation side with no rendered composites.
	SeverityHigh

	// SeverityCritical indicates conditions under which no usable
	// environment was produced. Examples: a job file listing no
	// layers, a referenced Gerber file missing from disk.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// FindingInfo contains metadata about a finding type including
// severity, impact description, and remediation recommendation.
type FindingInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// findingInfoMapping maps finding types to their metadata. It is the
// single source of truth for how conversion issues are ranked.
var findingInfoMapping = map[string]FindingInfo{
	// CRITICAL - no usable environment produced
	"no_layers": {
		Severity:       SeverityCritical,
		Impact:         "The job file lists no layers, so there is nothing to render or export.",
		Recommendation: "Re-export the fabrication data from the CAD tool with layers enabled.",
	},
	"missing_layer_file": {
		Severity:       SeverityCritical,
		Impact:         "A Gerber file referenced by the job is missing, leaving a hole in the rendered stack.",
		Recommendation: "Copy the complete fabrication output next to the job file before converting.",
	},
	"parse_failed": {
		Severity:       SeverityCritical,
		Impact:         "A layer could not be parsed, so its geometry is absent from every output.",
		Recommendation: "Check that the file is RS-274X and re-export it if the CAD tool produced a legacy format.",
	},

	// HIGH - output produced but likely unusable for training
	"unroutable_paste_pads": {
		Severity:       SeverityHigh,
		Impact:         "Solder paste pads are separated by blocked cells, so a dispensing agent can never connect them.",
		Recommendation: "Check the soldermask rendering and the occupancy threshold against the board.",
	},
	"empty_observation": {
		Severity:       SeverityHigh,
		Impact:         "No composite image exists for the side, producing an empty observation string.",
		Recommendation: "Enable composite rendering or check that the side has glue, soldermask, or paste layers.",
	},
	"open_glue_outline": {
		Severity:       SeverityHigh,
		Impact:         "The glue outline never closed into a polygon, so the fill produced no region.",
		Recommendation: "Raise the snap tolerance or repair the outline layer in the CAD tool.",
	},

	// MEDIUM - output degraded
	"unknown_category": {
		Severity:       SeverityMedium,
		Impact:         "The layer category could not be resolved, so it renders in the fallback color outside the stack order.",
		Recommendation: "Add a FileFunction attribute to the job entry or rename the file with a recognizable suffix.",
	},
	"side_unresolved": {
		Severity:       SeverityMedium,
		Impact:         "The layer has no top or bottom side and was left out of both rendered sides.",
		Recommendation: "Add the side token to the FileFunction attribute (for example \"SolderMask,Top\").",
	},

	// LOW - recovered automatically
	"forced_close": {
		Severity:       SeverityLow,
		Impact:         "An outline loop was closed across a gap wider than the snap tolerance, which may distort the region edge.",
		Recommendation: "Inspect the filled layer and tighten the outline if the distortion matters.",
	},

	// INFO - normal operation notes
	"unit_inches": {
		Severity:       SeverityInfo,
		Impact:         "The source file uses inches; coordinates were normalized to millimeters.",
		Recommendation: "No action needed.",
	},
	"suppressed_draws": {
		Severity:       SeverityInfo,
		Impact:         "Dimension and text draws outside the aperture thickness window were suppressed from the assembly drawing.",
		Recommendation: "No action needed; widen the thickness window to keep more strokes.",
	},
	"mirrored_soldermask": {
		Severity:       SeverityInfo,
		Impact:         "A soldermask layer was mirrored onto both sides of the environment.",
		Recommendation: "No action needed.",
	},
	"layer_excluded": {
		Severity:       SeverityInfo,
		Impact:         "Legend and copper layers are not part of the dispensing environment and were skipped.",
		Recommendation: "No action needed.",
	},
}

// GetSeverity returns the severity level for a finding type.
// Returns SeverityInfo if the finding type is not in the mapping.
func GetSeverity(findingType string) Severity {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetFindingInfo returns the full finding information for a finding
// type. Returns a default FindingInfo with SeverityInfo if the type is
// not in the mapping.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityInfo,
		Impact:         "Unknown finding type. Review manually.",
		Recommendation: "Investigate the finding and assess impact.",
	}
}
