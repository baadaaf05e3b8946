package publish

import (
	"context"
	"errors"

	"sectorindex/internal/contracts"
)

// Multi fans one publish out to several subscribers. Every publisher sees
// the update even when an earlier one fails; errors are joined.
type Multi struct {
	publishers []contracts.Publisher
}

// NewMulti creates a fan-out publisher.
func NewMulti(publishers ...contracts.Publisher) *Multi {
	return &Multi{publishers: publishers}
}

// PublishIndices delivers to every registered publisher.
func (m *Multi) PublishIndices(ctx context.Context, values []contracts.SectorIndexValue) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishIndices(ctx, values); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
