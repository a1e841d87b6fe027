package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "domus/pkg/domain"
	txcontext "domus/pkg/platform/tx"
)

// PostgresStore persists audit entries in the audit_entries table.
// The seq column breaks timestamp ties so a deactivate/activate pair written
// with one request timestamp lists newest-appended first.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_entries (
			id, regulation_id, residence_id, action,
			performed_by, performed_by_email, performed_by_name,
			occurred_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.RegulationID),
		uuid.UUID(entry.ResidenceID),
		string(entry.Action),
		entry.PerformedBy,
		entry.PerformedByEmail,
		nullableString(entry.PerformedByName),
		entry.Timestamp,
		nullableBytes(metadata),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByResidence(ctx context.Context, residenceID id.ResidenceID, filters QueryFilters) ([]Entry, error) {
	var (
		conditions = []string{"residence_id = $1"}
		args       = []any{uuid.UUID(residenceID)}
	)
	if filters.StartDate != nil {
		args = append(args, *filters.StartDate)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if filters.EndDate != nil {
		args = append(args, *filters.EndDate)
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}
	if len(filters.Actions) > 0 {
		actions := make([]string, len(filters.Actions))
		for i, a := range filters.Actions {
			actions[i] = string(a)
		}
		args = append(args, pq.Array(actions))
		conditions = append(conditions, fmt.Sprintf("action = ANY($%d)", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT id, regulation_id, residence_id, action,
		       performed_by, performed_by_email, performed_by_name,
		       occurred_at, metadata
		FROM audit_entries
		WHERE %s
		ORDER BY occurred_at DESC, seq DESC
	`, strings.Join(conditions, " AND "))
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) ListByRegulation(ctx context.Context, regulationID id.RegulationID) ([]Entry, error) {
	query := `
		SELECT id, regulation_id, residence_id, action,
		       performed_by, performed_by_email, performed_by_name,
		       occurred_at, metadata
		FROM audit_entries
		WHERE regulation_id = $1
		ORDER BY occurred_at DESC, seq DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(regulationID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry       Entry
			entryID     uuid.UUID
			regID       uuid.UUID
			resID       uuid.UUID
			action      string
			name        sql.NullString
			occurredAt  time.Time
			rawMetadata []byte
		)
		err := rows.Scan(
			&entryID,
			&regID,
			&resID,
			&action,
			&entry.PerformedBy,
			&entry.PerformedByEmail,
			&name,
			&occurredAt,
			&rawMetadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.ID = id.EntryID(entryID)
		entry.RegulationID = id.RegulationID(regID)
		entry.ResidenceID = id.ResidenceID(resID)
		entry.Action = Action(action)
		entry.PerformedByName = name.String
		entry.Timestamp = occurredAt

		metadata, err := unmarshalMetadata(entry.Action, rawMetadata)
		if err != nil {
			return nil, err
		}
		entry.Metadata = metadata

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
