// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/shkernel/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/shkernel/config.cue on macOS, %APPDATA%\shkernel\config.cue
// on Windows), falling back to ./config.cue. Files are validated against an embedded CUE
// schema (config_schema.cue) before they are merged over the defaults. Environment
// variables prefixed with SHKERNEL_ override individual keys.
package config
