package acceptance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "domus/pkg/domain"
	"domus/pkg/platform/sentinel"
	"domus/pkg/platform/tx"
)

const acceptanceColumns = "id, student_id, regulation_id, regulation_version, residence_id, accepted_at"

// PostgresStore persists acceptance records in the regulation_acceptances
// table. A unique index on (student_id, regulation_id) backs the insert's
// ON CONFLICT clause so retried submissions collapse to a single record.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) execQuerier {
	if txn, ok := tx.From(ctx); ok {
		return txn
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, record Acceptance) error {
	result, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO regulation_acceptances (`+acceptanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, regulation_id) DO NOTHING`,
		record.ID, record.StudentID, record.RegulationID, record.RegulationVersion, record.ResidenceID, record.AcceptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert acceptance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert acceptance: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) FindByStudentAndRegulation(ctx context.Context, studentID id.StudentID, regulationID id.RegulationID) (*Acceptance, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+acceptanceColumns+`
		FROM regulation_acceptances
		WHERE student_id = $1 AND regulation_id = $2`,
		studentID, regulationID,
	)
	return scanAcceptance(row)
}

func (s *PostgresStore) ListByStudent(ctx context.Context, studentID id.StudentID) ([]Acceptance, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+acceptanceColumns+`
		FROM regulation_acceptances
		WHERE student_id = $1
		ORDER BY accepted_at DESC, id DESC`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list acceptances by student: %w", err)
	}
	return scanAcceptances(rows)
}

func (s *PostgresStore) ListByRegulation(ctx context.Context, regulationID id.RegulationID) ([]Acceptance, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+acceptanceColumns+`
		FROM regulation_acceptances
		WHERE regulation_id = $1
		ORDER BY accepted_at DESC, id DESC`,
		regulationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list acceptances by regulation: %w", err)
	}
	return scanAcceptances(rows)
}

func (s *PostgresStore) FindLatestForResidence(ctx context.Context, studentID id.StudentID, residenceID id.ResidenceID) (*Acceptance, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+acceptanceColumns+`
		FROM regulation_acceptances
		WHERE student_id = $1 AND residence_id = $2
		ORDER BY accepted_at DESC, id DESC
		LIMIT 1`,
		studentID, residenceID,
	)
	return scanAcceptance(row)
}

func scanAcceptance(row *sql.Row) (*Acceptance, error) {
	var record Acceptance
	err := row.Scan(&record.ID, &record.StudentID, &record.RegulationID, &record.RegulationVersion, &record.ResidenceID, &record.AcceptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan acceptance: %w", err)
	}
	return &record, nil
}

func scanAcceptances(rows *sql.Rows) ([]Acceptance, error) {
	defer rows.Close()
	var records []Acceptance
	for rows.Next() {
		var record Acceptance
		if err := rows.Scan(&record.ID, &record.StudentID, &record.RegulationID, &record.RegulationVersion, &record.ResidenceID, &record.AcceptedAt); err != nil {
			return nil, fmt.Errorf("scan acceptance: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acceptances: %w", err)
	}
	return records, nil
}
