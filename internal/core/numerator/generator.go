package numerator

import (
	"context"
	"time"
)

// Generator allocates official document numbers.
// This is the domain contract - implementations live in infrastructure layer.
type Generator interface {
	// Next atomically allocates the next number of the category for the
	// period of the given time. Pattern: PREFIX-YYYY-NNNNNN.
	Next(ctx context.Context, c Category, at time.Time) (string, error)

	// Peek returns the number Next would allocate, without consuming it.
	Peek(ctx context.Context, c Category, at time.Time) (string, error)
}
