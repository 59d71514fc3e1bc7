// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package orchestrator

import "errors"

// Severity classifies an error for propagation purposes: a configuration
// error aborts startup, a network transient is absorbed at the link and
// never reaches here, a protocol error is absorbed at the classifier and
// never reaches here either, and a fatal runtime error propagates all the
// way out and ends the process. Transient and protocol errors are listed
// for completeness even though, by construction, neither ever surfaces
// past internal/linkmgr or internal/classify.
type Severity int

const (
	SeverityConfig Severity = iota
	SeverityTransient
	SeverityProtocol
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityConfig:
		return "config"
	case SeverityTransient:
		return "transient"
	case SeverityProtocol:
		return "protocol"
	default:
		return "fatal"
	}
}

// classifiedError attaches a Severity to an error without changing how it
// prints or unwraps.
type classifiedError struct {
	severity Severity
	err      error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// classify wraps err with sev, or returns nil unchanged.
func classify(sev Severity, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{severity: sev, err: err}
}

// SeverityOf reports the Severity an orchestrator error was classified
// with. Errors that never passed through classify — anything not produced
// by this package — are treated as SeverityFatal: an unrecognized runtime
// error is conservatively fatal.
func SeverityOf(err error) Severity {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.severity
	}
	return SeverityFatal
}
