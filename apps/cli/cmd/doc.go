// Package cmd implements the ackhttp CLI commands using Cobra.
//
// Available commands:
//   - get, post, put: Send one request and print the outcome
//   - bench: Send many copies of a request and summarise latency
//   - init: Write a starter .ackhttp.yaml
//   - completion: Generate shell completion scripts
//   - version: Show ackhttp version information
//
// Settings come from the config file, then ACKHTTP_* environment variables
// (a .env file in the working directory is loaded first), then flags.
package cmd
