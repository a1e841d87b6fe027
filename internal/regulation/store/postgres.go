package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"domus/internal/regulation/models"
	id "domus/pkg/domain"
	"domus/pkg/platform/sentinel"
	txcontext "domus/pkg/platform/tx"
)

// Postgres persists regulations. Every method joins an ambient transaction
// from context when one is present, so the activation swap reads and writes
// through a single *sql.Tx.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// querier covers the *sql.DB / *sql.Tx overlap the store needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) querier(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const regulationColumns = `
	id, residence_id, version, file_name, file_ref, file_size,
	is_active, published_at, created_at, created_by, updated_at
`

func (s *Postgres) Create(ctx context.Context, regulation *models.Regulation) error {
	query := `
		INSERT INTO regulations (` + regulationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(regulation.ID),
		uuid.UUID(regulation.ResidenceID),
		regulation.Version,
		regulation.FileName,
		regulation.FileRef,
		regulation.FileSize,
		regulation.IsActive,
		regulation.PublishedAt,
		regulation.CreatedAt,
		regulation.CreatedBy,
		regulation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert regulation: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, regulationID id.RegulationID) (*models.Regulation, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+regulationColumns+` FROM regulations WHERE id = $1`,
		uuid.UUID(regulationID),
	)
	regulation, err := scanRegulation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query regulation: %w", err)
	}
	return regulation, nil
}

func (s *Postgres) ListByResidence(ctx context.Context, residenceID id.ResidenceID) ([]*models.Regulation, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT `+regulationColumns+` FROM regulations
		 WHERE residence_id = $1
		 ORDER BY published_at DESC`,
		uuid.UUID(residenceID),
	)
	if err != nil {
		return nil, fmt.Errorf("query regulations: %w", err)
	}
	defer rows.Close()

	var regulations []*models.Regulation
	for rows.Next() {
		regulation, err := scanRegulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan regulation: %w", err)
		}
		regulations = append(regulations, regulation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regulations: %w", err)
	}
	return regulations, nil
}

func (s *Postgres) FindActiveByResidence(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, error) {
	// The partial unique index guarantees at most one row matches.
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+regulationColumns+` FROM regulations
		 WHERE residence_id = $1 AND is_active`,
		uuid.UUID(residenceID),
	)
	regulation, err := scanRegulation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query active regulation: %w", err)
	}
	return regulation, nil
}

func (s *Postgres) Update(ctx context.Context, regulation *models.Regulation) error {
	query := `
		UPDATE regulations
		SET version = $2, file_name = $3, file_ref = $4, file_size = $5,
		    is_active = $6, published_at = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(regulation.ID),
		regulation.Version,
		regulation.FileName,
		regulation.FileRef,
		regulation.FileSize,
		regulation.IsActive,
		regulation.PublishedAt,
		regulation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update regulation: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Postgres) Delete(ctx context.Context, regulationID id.RegulationID) error {
	res, err := s.querier(ctx).ExecContext(ctx,
		`DELETE FROM regulations WHERE id = $1`,
		uuid.UUID(regulationID),
	)
	if err != nil {
		return fmt.Errorf("delete regulation: %w", err)
	}
	return requireRowAffected(res)
}

func requireRowAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegulation(row rowScanner) (*models.Regulation, error) {
	var (
		regulation models.Regulation
		regID      uuid.UUID
		resID      uuid.UUID
		published  time.Time
		created    time.Time
		updated    time.Time
	)
	err := row.Scan(
		&regID,
		&resID,
		&regulation.Version,
		&regulation.FileName,
		&regulation.FileRef,
		&regulation.FileSize,
		&regulation.IsActive,
		&published,
		&created,
		&regulation.CreatedBy,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	regulation.ID = id.RegulationID(regID)
	regulation.ResidenceID = id.ResidenceID(resID)
	regulation.PublishedAt = published
	regulation.CreatedAt = created
	regulation.UpdatedAt = updated
	return &regulation, nil
}
