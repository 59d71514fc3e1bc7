// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package orchestrator

import (
	"errors"
	"fmt"
	"testing"
)

func TestSeverityOfClassified(t *testing.T) {
	err := classify(SeverityConfig, errors.New("bad mtu"))
	if got := SeverityOf(err); got != SeverityConfig {
		t.Fatalf("SeverityOf() = %v, want SeverityConfig", got)
	}
}

func TestSeverityOfWrapped(t *testing.T) {
	inner := classify(SeverityFatal, errors.New("tun closed"))
	wrapped := fmt.Errorf("run: %w", inner)
	if got := SeverityOf(wrapped); got != SeverityFatal {
		t.Fatalf("SeverityOf() = %v, want SeverityFatal through fmt.Errorf wrapping", got)
	}
}

func TestSeverityOfUnclassifiedDefaultsFatal(t *testing.T) {
	if got := SeverityOf(errors.New("unrelated")); got != SeverityFatal {
		t.Fatalf("SeverityOf() = %v, want SeverityFatal for an unclassified error", got)
	}
}

func TestClassifyNilIsNil(t *testing.T) {
	if err := classify(SeverityFatal, nil); err != nil {
		t.Fatalf("classify(_, nil) = %v, want nil", err)
	}
}
