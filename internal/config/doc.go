// Package config loads, validates, and defaults guidora's TOML configuration.
package config
