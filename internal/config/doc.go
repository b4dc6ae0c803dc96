// Package config provides the configuration of pageloader: CLI options,
// the optional YAML file with per-host request settings, and XDG paths.
package config
