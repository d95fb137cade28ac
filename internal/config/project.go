package config

// ProjectConfig holds project-specific configuration for a single
// project directory. This allows customizing render output per board
// without repeating flags.
type ProjectConfig struct {
	// UniformColor recolors every layer of this project to one hex
	// color, except the categories that preserve black.
	UniformColor string `yaml:"uniformColor,omitempty"`

	// Background overrides the canvas color for this project.
	Background string `yaml:"background,omitempty"`

	// DPMM overrides the raster resolution for this project.
	// If zero, the global DPMM is used.
	DPMM float64 `yaml:"dpmm,omitempty"`

	// ObservationSize overrides the observation grid size.
	// If zero, the global ObservationSize is used.
	ObservationSize int `yaml:"observationSize,omitempty"`

	// Colors overrides the render color per layer category.
	// Keys are category names such as "SOLDERMASK" or "GLUE".
	Colors map[string]string `yaml:"colors,omitempty"`
}

// File represents the structure of the .gerbenv configuration file.
type File struct {
	// Projects maps project directory base names to their overrides.
	Projects map[string]ProjectConfig `yaml:"projects,omitempty"`

	// Defaults contains configuration applied to all projects unless
	// overridden in the project-specific configuration.
	Defaults ProjectConfig `yaml:"defaults,omitempty"`
}

// GetProjectConfig returns the configuration for a project directory
// base name. It merges the project-specific configuration with
// defaults.
func (cf *File) GetProjectConfig(project string) ProjectConfig {
	result := cf.Defaults

	if pc, ok := cf.Projects[project]; ok {
		if pc.UniformColor != "" {
			result.UniformColor = pc.UniformColor
		}
		if pc.Background != "" {
			result.Background = pc.Background
		}
		if pc.DPMM != 0 {
			result.DPMM = pc.DPMM
		}
		if pc.ObservationSize != 0 {
			result.ObservationSize = pc.ObservationSize
		}
		if len(pc.Colors) > 0 {
			if result.Colors == nil {
				result.Colors = make(map[string]string)
			}
			for k, v := range pc.Colors {
				result.Colors[k] = v
			}
		}
	}

	return result
}
