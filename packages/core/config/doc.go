// Package config handles configuration loading for ackhttp.
//
// It provides functionality for:
//   - Loading configuration from .ackhttp.yaml, .ackhttp.yml or .ackhttp.json
//   - Default configuration values
//   - Merging command-line overrides over file values
//   - Converting the result into http client options
package config
