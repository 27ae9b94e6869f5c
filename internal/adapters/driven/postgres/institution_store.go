package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.InstitutionStore = (*InstitutionStore)(nil)

// InstitutionStore implements driven.InstitutionStore using PostgreSQL
type InstitutionStore struct {
	db *DB
}

// NewInstitutionStore creates a new InstitutionStore
func NewInstitutionStore(db *DB) *InstitutionStore {
	return &InstitutionStore{db: db}
}

// Upsert creates or updates an institution
func (s *InstitutionStore) Upsert(ctx context.Context, inst *domain.Institution) error {
	query := `
		INSERT INTO institutions (
			institution_id, name, products, country_codes,
			url, primary_color, logo, raw_data, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (institution_id) DO UPDATE SET
			name = EXCLUDED.name,
			products = EXCLUDED.products,
			country_codes = EXCLUDED.country_codes,
			url = EXCLUDED.url,
			primary_color = EXCLUDED.primary_color,
			logo = EXCLUDED.logo,
			raw_data = EXCLUDED.raw_data,
			updated_at = now()
	`
	_, err := s.db.ExecContext(ctx, query,
		inst.InstitutionID,
		inst.Name,
		pq.Array(inst.Products),
		pq.Array(inst.CountryCodes),
		inst.URL,
		inst.PrimaryColor,
		inst.Logo,
		nullJSON(inst.Raw),
	)
	return err
}

const institutionColumns = `
	institution_id, name, products, country_codes,
	COALESCE(url, ''), COALESCE(primary_color, ''), COALESCE(logo, ''),
	raw_data, created_at, updated_at
`

// Get retrieves an institution by ID
func (s *InstitutionStore) Get(ctx context.Context, institutionID string) (*domain.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE institution_id = $1`

	inst, err := scanInstitution(s.db.QueryRowContext(ctx, query, institutionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// List retrieves all known institutions
func (s *InstitutionStore) List(ctx context.Context) ([]*domain.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var institutions []*domain.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		institutions = append(institutions, inst)
	}
	return institutions, rows.Err()
}

func scanInstitution(row rowScanner) (*domain.Institution, error) {
	var (
		inst domain.Institution
		raw  []byte
	)
	err := row.Scan(
		&inst.InstitutionID,
		&inst.Name,
		pq.Array(&inst.Products),
		pq.Array(&inst.CountryCodes),
		&inst.URL,
		&inst.PrimaryColor,
		&inst.Logo,
		&raw,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.Raw = raw
	return &inst, nil
}
