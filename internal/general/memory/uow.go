package memory

import (
	"context"

	"hailo/internal/ports"
)

type unitOfWork struct{}

// NewUnitOfWork returns a unit of work that runs fn directly. The in-memory repositories
// synchronize internally, so there is no transaction to open.
func NewUnitOfWork() ports.UnitOfWork {
	return unitOfWork{}
}

func (unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
