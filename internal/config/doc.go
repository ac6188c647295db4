// Package config defines configuration structures for the chunkfetch CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (CHUNKFETCH_ prefix)
//   - YAML configuration file
//
// Flags override the environment, which overrides the file.
//
// # Example
//
//	url: https://example.com/report.pdf
//	bucket: file:///var/cache/docs
//	workers: 8
//	part_size: 8MiB
//	chunk_size: 64KiB
//	http:
//	  header_timeout: 30s
//	  bytes_per_second: 10MB
package config
