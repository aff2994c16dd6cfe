package sheets

import (
	"context"

	"termosifoni/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror publishes the derived readings table somewhere humans look at
	// it. Each call replaces the previous contents.
	Mirror interface {
		MirrorReadings(ctx context.Context, d core.Derivation) (ref string, err error)
	}

	// MirrorReader reads back the readings written by a Mirror.
	MirrorReader interface {
		ReadReadings(ctx context.Context) (core.Collection, error)
	}
)
