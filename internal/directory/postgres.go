package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "domus/pkg/domain"
	"domus/pkg/platform/sentinel"
)

// Postgres adapts the shared residences/students/contracts tables owned by
// the booking side of the platform. Read-only: this core never writes them.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (d *Postgres) GetResidenceByID(ctx context.Context, residenceID id.ResidenceID) (*Residence, error) {
	var (
		resID uuid.UUID
		name  string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name FROM residences WHERE id = $1`,
		uuid.UUID(residenceID),
	).Scan(&resID, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query residence: %w", err)
	}
	return &Residence{ID: id.ResidenceID(resID), Name: name}, nil
}

func (d *Postgres) GetStudentsByResidence(ctx context.Context, residenceID id.ResidenceID) ([]Student, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, residence_id, name, email FROM students WHERE residence_id = $1 ORDER BY name`,
		uuid.UUID(residenceID),
	)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var (
			student Student
			stuID   uuid.UUID
			resID   uuid.UUID
		)
		if err := rows.Scan(&stuID, &resID, &student.Name, &student.Email); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		student.ID = id.StudentID(stuID)
		student.ResidenceID = id.ResidenceID(resID)
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

const activeContractQuery = `
	SELECT c.student_id, c.residence_id, r.name, c.room_type_name, c.start_date, c.end_date
	FROM contracts c
	JOIN residences r ON r.id = c.residence_id
	WHERE c.status = 'active'
`

func (d *Postgres) GetActiveContractByStudent(ctx context.Context, studentID id.StudentID) (*Contract, error) {
	row := d.db.QueryRowContext(ctx,
		activeContractQuery+` AND c.student_id = $1 ORDER BY c.start_date DESC LIMIT 1`,
		uuid.UUID(studentID),
	)
	contract, err := scanContract(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query active contract: %w", err)
	}
	return contract, nil
}

func (d *Postgres) GetActiveContractsByResidence(ctx context.Context, residenceID id.ResidenceID) (map[id.StudentID]Contract, error) {
	rows, err := d.db.QueryContext(ctx,
		activeContractQuery+` AND c.residence_id = $1`,
		uuid.UUID(residenceID),
	)
	if err != nil {
		return nil, fmt.Errorf("query active contracts: %w", err)
	}
	defer rows.Close()

	contracts := make(map[id.StudentID]Contract)
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts[contract.StudentID] = *contract
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return contracts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*Contract, error) {
	var (
		contract Contract
		stuID    uuid.UUID
		resID    uuid.UUID
		endDate  sql.NullTime
	)
	err := row.Scan(&stuID, &resID, &contract.ResidenceName, &contract.RoomTypeName, &contract.StartDate, &endDate)
	if err != nil {
		return nil, err
	}
	contract.StudentID = id.StudentID(stuID)
	contract.ResidenceID = id.ResidenceID(resID)
	if endDate.Valid {
		contract.EndDate = endDate.Time
	}
	return &contract, nil
}
