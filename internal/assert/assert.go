// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package assert routes internal contract violations through an
// installable handler. The default handler panics with a *Error,
// which the engine's outermost query loop recovers; if the panic
// escapes (no engine context on the stack), the process aborts,
// which is the intended default.
package assert

import "fmt"

// Error is the panic payload raised by a failed assertion.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "assertion failed: " + e.Msg }

// Handler is called with the assertion message before panicking.
// Tests install a handler to observe assertions; the handler
// may itself panic with a recoverable value to abort the
// operation without killing the process.
var Handler func(msg string)

// Fail reports a contract violation.
func Fail(msg string) {
	if Handler != nil {
		Handler(msg)
	}
	panic(&Error{Msg: msg})
}

// Failf is Fail with formatting.
func Failf(format string, args ...any) {
	Fail(fmt.Sprintf(format, args...))
}

// That fails with msg unless cond holds.
func That(cond bool, msg string) {
	if !cond {
		Fail(msg)
	}
}
