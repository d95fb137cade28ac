package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration. Package-level
// sentinels let callers use errors.Is() for programmatic handling while
// still reading well on a terminal.
var (
	// ErrNoProject is returned when no project directory is specified.
	ErrNoProject = errors.New("no project specified: provide at least one project directory")

	// ErrJobWithMultipleProjects is returned when --job is combined
	// with more than one project directory. An explicit job path can
	// only belong to a single project.
	ErrJobWithMultipleProjects = errors.New("--job can only be used with a single project directory")

	// ErrInvalidDPMM is returned when the raster resolution is not
	// positive. Zero dpmm would produce an empty canvas.
	ErrInvalidDPMM = errors.New("invalid dpmm: must be positive")

	// ErrInvalidSnapTol is returned when the snap tolerance is
	// negative. Use 0 to disable endpoint snapping.
	ErrInvalidSnapTol = errors.New("invalid snap tolerance: must be non-negative")

	// ErrInvalidArcTolerance is returned when either arc linearization
	// bound is not positive. Zero would loop forever subdividing arcs.
	ErrInvalidArcTolerance = errors.New("invalid arc tolerance: max segment length and max angle must be positive")

	// ErrInvalidThicknessWindow is returned when the assembly thickness
	// window is inverted (min greater than max).
	ErrInvalidThicknessWindow = errors.New("invalid thickness window: min must not exceed max")

	// ErrInvalidObservationSize is returned when the observation grid
	// size is not positive.
	ErrInvalidObservationSize = errors.New("invalid observation size: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not
	// positive. A batch size of zero would mean no conversions run.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used at
	// a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
