// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions for fixing it. Issue is a catalogue of Markdown guidance pages,
// rendered with glamour, for situations the user has to resolve by hand such
// as updating an installation ethos does not manage.
package issue
