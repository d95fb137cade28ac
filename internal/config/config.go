package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are tuned against KiCad fabrication exports at 4.6
// coordinate precision, where the conversion tolerances were
// calibrated.
const (
	// DefaultDPMM is the raster resolution in dots per millimeter.
	// 30 dpmm resolves 0.1mm courtyard strokes to three pixels, enough
	// for the occupancy threshold to see them without producing huge
	// images for typical board sizes.
	DefaultDPMM = 30.0

	// DefaultSnapTol is the endpoint snap tolerance in millimeters when
	// closing glue outline loops. KiCad exports leave sub-0.05mm gaps
	// between strokes that were drawn as one loop.
	DefaultSnapTol = 0.02

	// DefaultMaxSegLen is the maximum chord length in millimeters when
	// linearizing Gerber arcs.
	DefaultMaxSegLen = 0.2

	// DefaultMaxAngleDeg is the maximum arc sweep per chord in degrees.
	DefaultMaxAngleDeg = 5.0

	// DefaultThicknessMin and DefaultThicknessMax bound the aperture
	// diameters kept on assembly drawings. KiCad draws courtyards with
	// a 0.1mm pen, so the window [0.1, 0.1] keeps component outlines
	// and drops dimension arrows and text strokes.
	DefaultThicknessMin = 0.1
	DefaultThicknessMax = 0.1

	// DefaultObservationSize is the square side length in cells of the
	// exported observation grids.
	DefaultObservationSize = 128

	// DefaultBatchSize of 4 concurrent conversions keeps rasterization
	// memory bounded. Each conversion holds full-board RGBA images in
	// memory, so this scales with board size rather than CPU count.
	DefaultBatchSize = 4

	// DefaultBlockedThreshold is the mean RGB luminance below which an
	// observation cell counts as blocked. 0.28 separates black profile
	// strokes and letterbox padding from the colored and white overlays,
	// which all average above it.
	DefaultBlockedThreshold = 0.28

	// DefaultBackground is the canvas color behind the rendered layers.
	// Note this is the inverse of the black letterbox canvas the
	// observation resize pads with: default composites read dark-on-light
	// while letterboxed observations read light-on-dark. Set background
	// to "#000000" for matching dark composites.
	DefaultBackground = "#FFFFFF"

	// AppName is the application name used for XDG directory paths.
	AppName = "gerbenv"
)

// Config holds all configuration options for a conversion run.
// This struct is populated from defaults, the .gerbenv file, GERBENV_*
// environment variables, and CLI flags, in that order, and passed
// through the application via dependency injection rather than global
// state.
type Config struct {
	// Projects is the list of project directories to convert. Each must
	// contain a .gbrjob file unless JobPath points at one directly.
	Projects []string

	// JobPath overrides job file discovery with an explicit .gbrjob
	// path. Only meaningful when converting a single project.
	JobPath string

	// OutputDir is where conversion artifacts are written. When empty,
	// an out/ directory is created inside each project directory.
	OutputDir string

	// DPMM is the raster resolution in dots per millimeter.
	DPMM float64

	// SnapTol is the outline snap tolerance in millimeters.
	SnapTol float64

	// MaxSegLen is the maximum arc chord length in millimeters.
	MaxSegLen float64

	// MaxAngleDeg is the maximum arc sweep per chord in degrees.
	MaxAngleDeg float64

	// ThicknessMin and ThicknessMax bound the aperture diameters kept
	// on assembly drawings, in millimeters.
	ThicknessMin float64
	ThicknessMax float64

	// UniformColor, when set, recolors every layer to this hex color
	// except categories that preserve black (profile, legend).
	UniformColor string

	// Background is the canvas color behind the rendered layers.
	Background string

	// FillBackground controls whether transparent canvas pixels are
	// flattened onto Background before the PNG is written.
	FillBackground bool

	// ByLayer enables per-layer PNG output in addition to the side
	// composites.
	ByLayer bool

	// Composites enables per-category composite PNGs, the inputs to
	// observation export.
	Composites bool

	// ObservationSize is the square side length in cells of the
	// exported observation grids. Composites are resized to this before
	// thresholding.
	ObservationSize int

	// BatchSize is the number of concurrent conversions when processing
	// multiple project directories.
	BatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .gerbenv in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// ProjectConfigs holds per-project overrides loaded from the config
	// file. Populated by LoadConfigFile and applied during conversion.
	ProjectConfigs *File

	// JSONReport enables JSON report output instead of the
	// human-readable format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of the
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory path for storing the SQLite run history.
	// When empty, the XDG data directory is used.
	DBDir string

	// SaveToDB indicates whether to record conversion runs in the
	// history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to the defaults calibrated for KiCad exports.
// Users can override specific values after creation.
func NewConfig() *Config {
	return &Config{
		DPMM:            DefaultDPMM,
		SnapTol:         DefaultSnapTol,
		MaxSegLen:       DefaultMaxSegLen,
		MaxAngleDeg:     DefaultMaxAngleDeg,
		ThicknessMin:    DefaultThicknessMin,
		ThicknessMax:    DefaultThicknessMax,
		Background:      DefaultBackground,
		FillBackground:  true,
		Composites:      true,
		ObservationSize: DefaultObservationSize,
		BatchSize:       DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for gerbenv.
// On Linux: ~/.local/share/gerbenv
// On macOS: ~/Library/Application Support/gerbenv
// On Windows: %LOCALAPPDATA%\gerbenv
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for gerbenv.
// On Linux: ~/.config/gerbenv
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for gerbenv.
// On Linux: ~/.cache/gerbenv
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first sentinel error describing what is invalid. This
// is called once after CLI parsing, before any conversion begins.
func (c *Config) Validate() error {
	if len(c.Projects) == 0 {
		return ErrNoProject
	}
	if c.JobPath != "" && len(c.Projects) > 1 {
		return ErrJobWithMultipleProjects
	}
	if c.DPMM <= 0 {
		return ErrInvalidDPMM
	}
	if c.SnapTol < 0 {
		return ErrInvalidSnapTol
	}
	if c.MaxSegLen <= 0 || c.MaxAngleDeg <= 0 {
		return ErrInvalidArcTolerance
	}
	if c.ThicknessMin > c.ThicknessMax {
		return ErrInvalidThicknessWindow
	}
	if c.ObservationSize <= 0 {
		return ErrInvalidObservationSize
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}
