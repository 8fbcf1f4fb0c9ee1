// Package config loads gatekeeper configuration from a YAML file with
// environment-variable overrides, tracking the source of every attribute.
package config
