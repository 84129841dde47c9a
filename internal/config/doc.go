// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/ethos/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/ethos/config.cue on macOS, %APPDATA%\ethos\config.cue
// on Windows), from the file named by --config, or from $ETHOS_CONFIG. Files are validated
// against the embedded CUE schema (config_schema.cue) before being merged over the
// defaults; ETHOS_-prefixed environment variables override both.
package config
