// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, worker pool sizing, upstream definitions and the
// ordered path-prefix routing rules.
package config
