// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for tidyrun.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - CompletionConfig: Hosted model backend (provider, key, rate limit)
//   - ExecutionConfig: Retry bound and interpreter limits
//   - ExportConfig: S3-compatible upload of cleaned files
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TIDYRUN_*, GROQ_API_KEY)
//   - ~/.tidyrun/config.toml
//   - ~/.tidyrun/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	retries := cfg.Execution.MaxRetries
package config
