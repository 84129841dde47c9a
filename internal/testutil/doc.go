// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests: a controllable
// clock, environment and home directory overrides, and builders for release
// archives laid out like published ethos releases.
package testutil
