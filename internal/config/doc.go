// SPDX-License-Identifier: MPL-2.0

// Package config loads forgeenv application settings.
//
// Settings come from three layers, lowest precedence first: built-in
// defaults, an optional TOML config file, and FORGEENV_* environment
// variables. The config file lives in the platform configuration
// directory (XDG on Linux, Application Support on macOS, APPDATA on
// Windows) or can be pointed at explicitly with --config.
//
// Application config holds operational knobs only (cache directory,
// install prefix, retry policy). What to provision lives in plan
// files, see the plan package.
package config
