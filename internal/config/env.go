package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides mirrors the Config fields that can be set through the
// environment. Pointer fields distinguish "unset" from a zero value so
// the environment only overrides what it names.
type envOverrides struct {
	OutputDir       *string  `env:"OUTPUT_DIR"`
	DPMM            *float64 `env:"DPMM"`
	SnapTol         *float64 `env:"SNAP_TOL"`
	MaxSegLen       *float64 `env:"MAX_SEG_LEN"`
	MaxAngleDeg     *float64 `env:"MAX_ANGLE_DEG"`
	UniformColor    *string  `env:"UNIFORM_COLOR"`
	Background      *string  `env:"BACKGROUND"`
	ObservationSize *int     `env:"OBSERVATION_SIZE"`
	BatchSize       *int     `env:"BATCH_SIZE"`
	DBDir           *string  `env:"DB_DIR"`
}

// ApplyEnv overlays GERBENV_* environment variables onto c.
// It sits between the config file and CLI flags in precedence: flags
// parsed afterwards still win.
func ApplyEnv(c *Config) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: "GERBENV_"}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if o.OutputDir != nil {
		c.OutputDir = *o.OutputDir
	}
	if o.DPMM != nil {
		c.DPMM = *o.DPMM
	}
	if o.SnapTol != nil {
		c.SnapTol = *o.SnapTol
	}
	if o.MaxSegLen != nil {
		c.MaxSegLen = *o.MaxSegLen
	}
	if o.MaxAngleDeg != nil {
		c.MaxAngleDeg = *o.MaxAngleDeg
	}
	if o.UniformColor != nil {
		c.UniformColor = *o.UniformColor
	}
	if o.Background != nil {
		c.Background = *o.Background
	}
	if o.ObservationSize != nil {
		c.ObservationSize = *o.ObservationSize
	}
	if o.BatchSize != nil {
		c.BatchSize = *o.BatchSize
	}
	if o.DBDir != nil {
		c.DBDir = *o.DBDir
	}
	return nil
}
