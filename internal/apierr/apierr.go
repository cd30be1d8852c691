/*
   Copyright 2026 The fleetd Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package apierr defines the error kinds the HTTP surface maps to status
// codes, independent of where in the system the error originates.
package apierr

import (
	"errors"
	"fmt"
)

// Kind distinguishes the handling an error gets at the HTTP boundary.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Conflict
	Policy
	Auth
	RateLimited
	ExternalTool
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not-found"
	case Conflict:
		return "conflict"
	case Policy:
		return "policy"
	case Auth:
		return "auth"
	case RateLimited:
		return "rate-limited"
	case ExternalTool:
		return "external-tool"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code this kind maps to.
func (k Kind) Status() int {
	switch k {
	case Validation, Policy, Conflict:
		return 400
	case NotFound:
		return 404
	case Auth:
		return 401
	case RateLimited:
		return 429
	case Internal, ExternalTool:
		return 500
	default:
		return 500
	}
}

// Error is a kinded error carrying an optional external-tool diagnostic.
type Error struct {
	Kind   Kind
	Msg    string
	Cmd    string
	Args   []string
	Stdout string
	Stderr string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.cause }

func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

func Wrap(k Kind, cause error, msg string) *Error {
	return &Error{Kind: k, Msg: msg, cause: cause}
}

func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func Policyf(format string, args ...any) *Error {
	return New(Policy, fmt.Sprintf(format, args...))
}

// ExternalToolError wraps the failure of an invocation of an allowed
// external command (container CLI, proxy binary, service manager).
func ExternalToolError(cmd string, args []string, stdout, stderr string, cause error) *Error {
	return &Error{
		Kind:   ExternalTool,
		Msg:    "external command failed",
		Cmd:    cmd,
		Args:   args,
		Stdout: stdout,
		Stderr: stderr,
		cause:  cause,
	}
}

// KindOf extracts the Kind from err, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
