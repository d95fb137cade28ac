// Package config provides configuration structures and utilities for
// gerbenv. It defines the conversion defaults, the .gerbenv YAML file
// with per-project overrides, and the GERBENV_* environment layer.
package config
