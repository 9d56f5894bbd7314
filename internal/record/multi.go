package record

import (
	"context"
	"errors"
	"fmt"
)

// Multi writes to a primary store and mirrors every save to secondary
// indexes. Reads are served by the primary. A failing mirror does not undo
// the primary write; Save reports it wrapped in ErrPartialSave.
type Multi struct {
	primary Store
	mirrors []Store
}

func NewMulti(primary Store, mirrors ...Store) *Multi {
	return &Multi{primary: primary, mirrors: mirrors}
}

func (m *Multi) Save(ctx context.Context, r *Record) error {
	if err := m.primary.Save(ctx, r); err != nil {
		return err
	}
	var errs []error
	for i, mirror := range m.mirrors {
		if err := mirror.Save(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("mirror %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPartialSave, errors.Join(errs...))
	}
	return nil
}

func (m *Multi) Get(ctx context.Context, id string) (*Record, error) {
	return m.primary.Get(ctx, id)
}

func (m *Multi) Latest(ctx context.Context) (*Record, error) {
	return m.primary.Latest(ctx)
}

func (m *Multi) List(ctx context.Context) ([]Summary, error) {
	return m.primary.List(ctx)
}
