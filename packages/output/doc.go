// Package output renders request outcomes and bench summaries for the CLI.
//
// Supported formats:
//   - console: coloured, human-readable (default)
//   - json: one machine-readable document per outcome or summary
package output
