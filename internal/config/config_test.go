package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// This test ensures that defaults are documented through tests and that changes
// to defaults are intentional (tests will fail if defaults change unexpectedly).
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default DPMM is 30", func(t *testing.T) {
		t.Parallel()
		if cfg.DPMM != 30.0 {
			t.Errorf("expected DPMM to be 30, got %v", cfg.DPMM)
		}
	})

	t.Run("default SnapTol is 0.02mm", func(t *testing.T) {
		t.Parallel()
		if cfg.SnapTol != 0.02 {
			t.Errorf("expected SnapTol to be 0.02, got %v", cfg.SnapTol)
		}
	})

	t.Run("default arc tolerances are 0.2mm and 5 degrees", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxSegLen != 0.2 {
			t.Errorf("expected MaxSegLen to be 0.2, got %v", cfg.MaxSegLen)
		}
		if cfg.MaxAngleDeg != 5.0 {
			t.Errorf("expected MaxAngleDeg to be 5, got %v", cfg.MaxAngleDeg)
		}
	})

	t.Run("default thickness window is [0.1, 0.1]", func(t *testing.T) {
		t.Parallel()
		if cfg.ThicknessMin != 0.1 || cfg.ThicknessMax != 0.1 {
			t.Errorf("expected thickness window [0.1, 0.1], got [%v, %v]", cfg.ThicknessMin, cfg.ThicknessMax)
		}
	})

	t.Run("default ObservationSize is 128", func(t *testing.T) {
		t.Parallel()
		if cfg.ObservationSize != 128 {
			t.Errorf("expected ObservationSize to be 128, got %d", cfg.ObservationSize)
		}
	})

	t.Run("default BatchSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 4 {
			t.Errorf("expected BatchSize to be 4, got %d", cfg.BatchSize)
		}
	})

	t.Run("default Background is white with fill enabled", func(t *testing.T) {
		t.Parallel()
		if cfg.Background != "#FFFFFF" {
			t.Errorf("expected Background to be '#FFFFFF', got %q", cfg.Background)
		}
		if !cfg.FillBackground {
			t.Error("expected FillBackground to be true")
		}
	})

	t.Run("default Composites is true", func(t *testing.T) {
		t.Parallel()
		if !cfg.Composites {
			t.Error("expected Composites to be true")
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	// validConfig returns a minimal valid configuration.
	// Tests can modify specific fields to test validation rules.
	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Projects = []string{"testdata/board"}
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("empty projects returns ErrNoProject", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Projects = nil

		err := cfg.Validate()
		if !errors.Is(err, ErrNoProject) {
			t.Errorf("expected ErrNoProject, got %v", err)
		}
	})

	t.Run("job path with multiple projects returns ErrJobWithMultipleProjects", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Projects = []string{"a", "b"}
		cfg.JobPath = "a/board.gbrjob"

		err := cfg.Validate()
		if !errors.Is(err, ErrJobWithMultipleProjects) {
			t.Errorf("expected ErrJobWithMultipleProjects, got %v", err)
		}
	})

	t.Run("zero dpmm returns ErrInvalidDPMM", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.DPMM = 0

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidDPMM) {
			t.Errorf("expected ErrInvalidDPMM, got %v", err)
		}
	})

	t.Run("negative snap tolerance returns ErrInvalidSnapTol", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.SnapTol = -0.01

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidSnapTol) {
			t.Errorf("expected ErrInvalidSnapTol, got %v", err)
		}
	})

	t.Run("zero snap tolerance is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.SnapTol = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("zero max segment length returns ErrInvalidArcTolerance", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxSegLen = 0

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidArcTolerance) {
			t.Errorf("expected ErrInvalidArcTolerance, got %v", err)
		}
	})

	t.Run("inverted thickness window returns ErrInvalidThicknessWindow", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.ThicknessMin = 0.2
		cfg.ThicknessMax = 0.1

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidThicknessWindow) {
			t.Errorf("expected ErrInvalidThicknessWindow, got %v", err)
		}
	})

	t.Run("zero observation size returns ErrInvalidObservationSize", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.ObservationSize = 0

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidObservationSize) {
			t.Errorf("expected ErrInvalidObservationSize, got %v", err)
		}
	})

	t.Run("zero batch size returns ErrInvalidBatchSize", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.BatchSize = 0

		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidBatchSize) {
			t.Errorf("expected ErrInvalidBatchSize, got %v", err)
		}
	})

	t.Run("json and markdown both enabled returns ErrConflictingReportFormats", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.JSONReport = true
		cfg.MarkdownReport = true

		err := cfg.Validate()
		if !errors.Is(err, ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("json only is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.JSONReport = true

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestFileGetProjectConfig tests the GetProjectConfig method.
func TestFileGetProjectConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when project not found", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: ProjectConfig{
				UniformColor: "#FF0000",
				DPMM:         20,
			},
			Projects: map[string]ProjectConfig{},
		}

		cfg := file.GetProjectConfig("unknown-board")
		if cfg.UniformColor != "#FF0000" {
			t.Errorf("expected default uniform color, got %q", cfg.UniformColor)
		}
		if cfg.DPMM != 20 {
			t.Errorf("expected dpmm 20, got %v", cfg.DPMM)
		}
	})

	t.Run("project overrides defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: ProjectConfig{
				UniformColor: "#FF0000",
				DPMM:         20,
			},
			Projects: map[string]ProjectConfig{
				"sensor-board": {
					DPMM:            40,
					ObservationSize: 64,
				},
			},
		}

		cfg := file.GetProjectConfig("sensor-board")
		if cfg.DPMM != 40 {
			t.Errorf("expected dpmm 40, got %v", cfg.DPMM)
		}
		if cfg.ObservationSize != 64 {
			t.Errorf("expected observation size 64, got %d", cfg.ObservationSize)
		}
		if cfg.UniformColor != "#FF0000" {
			t.Errorf("expected inherited uniform color, got %q", cfg.UniformColor)
		}
	})

	t.Run("category colors merge over defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: ProjectConfig{
				Colors: map[string]string{"SOLDERMASK": "#FF0000", "GLUE": "#FFFFFF"},
			},
			Projects: map[string]ProjectConfig{
				"sensor-board": {
					Colors: map[string]string{"SOLDERMASK": "#00FF00"},
				},
			},
		}

		cfg := file.GetProjectConfig("sensor-board")
		if cfg.Colors["SOLDERMASK"] != "#00FF00" {
			t.Errorf("expected overridden soldermask color, got %q", cfg.Colors["SOLDERMASK"])
		}
		if cfg.Colors["GLUE"] != "#FFFFFF" {
			t.Errorf("expected inherited glue color, got %q", cfg.Colors["GLUE"])
		}
	})
}

// TestLoadConfigFile tests YAML configuration loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads valid yaml", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, DefaultConfigFile)
		content := `defaults:
  background: "#FFFFFF"
projects:
  sensor-board:
    uniformColor: "#FF0000"
    dpmm: 40
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cf.Defaults.Background != "#FFFFFF" {
			t.Errorf("expected default background, got %q", cf.Defaults.Background)
		}
		pc := cf.GetProjectConfig("sensor-board")
		if pc.UniformColor != "#FF0000" || pc.DPMM != 40 {
			t.Errorf("unexpected project config: %+v", pc)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml returns error", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, DefaultConfigFile)
		if err := os.WriteFile(path, []byte("projects: [not a map"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid yaml")
		}
	})
}

// TestApplyEnv verifies the GERBENV_* environment overlay.
// t.Setenv is incompatible with t.Parallel, so these subtests run serially.
func TestApplyEnv(t *testing.T) {
	t.Run("overrides named fields only", func(t *testing.T) {
		t.Setenv("GERBENV_DPMM", "45.5")
		t.Setenv("GERBENV_BATCH_SIZE", "8")

		cfg := NewConfig()
		if err := ApplyEnv(cfg); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.DPMM != 45.5 {
			t.Errorf("expected DPMM 45.5, got %v", cfg.DPMM)
		}
		if cfg.BatchSize != 8 {
			t.Errorf("expected BatchSize 8, got %d", cfg.BatchSize)
		}
		if cfg.ObservationSize != DefaultObservationSize {
			t.Errorf("expected untouched ObservationSize, got %d", cfg.ObservationSize)
		}
	})

	t.Run("invalid value returns error", func(t *testing.T) {
		t.Setenv("GERBENV_DPMM", "not-a-number")

		cfg := NewConfig()
		if err := ApplyEnv(cfg); err == nil {
			t.Error("expected error for unparsable env value")
		}
	})
}

// TestFindConfigFile tests configuration file discovery.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope")); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})
}
