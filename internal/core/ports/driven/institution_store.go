package driven

import (
	"context"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// InstitutionStore handles institution persistence (PostgreSQL)
type InstitutionStore interface {
	// Upsert creates or updates an institution by ID
	Upsert(ctx context.Context, inst *domain.Institution) error

	// Get retrieves an institution by ID
	Get(ctx context.Context, institutionID string) (*domain.Institution, error)

	// List retrieves all known institutions
	List(ctx context.Context) ([]*domain.Institution, error)
}
