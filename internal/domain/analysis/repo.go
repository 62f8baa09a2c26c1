package analysis

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores finished reports. Implementations return ErrNotFound
// for unknown ids.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	List(ctx context.Context, limit, offset int) ([]*Summary, int, error)
}
