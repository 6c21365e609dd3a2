// Package config loads Foundry's runtime configuration.
//
// # Resolution
//
//  1. An explicit path wins; otherwise ~/.config/foundry/config.toml.
//  2. A missing file yields Default().
//  3. Empty or non-positive fields keep their defaults.
//  4. ApplyEnv overlays FOUNDRY_* variables, after LoadDotEnv has read an
//     optional .env file. Variables already in the environment win over the
//     file.
//
// # TOML Format
//
//	poll_interval = 5        # seconds between status polls of a watched task
//	list_refresh = 10        # seconds between task list refreshes
//	request_timeout = 15     # per-request HTTP timeout in seconds
//	log_file = "~/.local/share/foundry/foundry.log"
//	log_level = "info"
//	log_format = "text"      # or "json"
//	otlp_endpoint = ""       # e.g. "http://127.0.0.1:4318" to export traces
//	prefs_path = "~/.config/foundry/prefs.toml"
//
// The service URL and API key are user preferences (see package prefs), not
// configuration. FOUNDRY_BASE_URL and FOUNDRY_API_KEY override them for a
// single run without touching the saved file.
//
// # Errors
//
// Load fails on path expansion errors, read errors other than a missing
// file, and TOML syntax errors.
package config
