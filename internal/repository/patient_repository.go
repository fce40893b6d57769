package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pictalk/pictalk-backend/internal/model"
)

// PatientRepository handles patient data access.
type PatientRepository struct {
	pool *pgxpool.Pool
}

// NewPatientRepository creates a new PatientRepository.
func NewPatientRepository(pool *pgxpool.Pool) *PatientRepository {
	return &PatientRepository{pool: pool}
}

// Create registers a new patient under an examiner. Returns ErrDuplicate
// when the unique_id is already taken by another patient.
func (r *PatientRepository) Create(ctx context.Context, p *model.Patient) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO patients (examiner_id, name, age, city, father_name, mother_name, unique_id, phone_number)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		p.ExaminerID, p.Name, p.Age, p.City, p.FatherName, p.MotherName, p.UniqueID, p.PhoneNumber,
	).Scan(&p.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// ExistsByUniqueID reports whether any patient already carries the given
// external identifier.
func (r *PatientRepository) ExistsByUniqueID(ctx context.Context, uniqueID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE unique_id = $1)`, uniqueID,
	).Scan(&exists)
	return exists, err
}

// GetByID retrieves a patient. Returns ErrNotFound when absent.
func (r *PatientRepository) GetByID(ctx context.Context, id int) (*model.Patient, error) {
	p := &model.Patient{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, examiner_id, name, age, city, father_name, mother_name, unique_id, phone_number, score
		 FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.ExaminerID, &p.Name, &p.Age, &p.City, &p.FatherName, &p.MotherName, &p.UniqueID, &p.PhoneNumber, &p.Score)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListByExaminers retrieves patients registered by any of the given
// examiners, newest first.
func (r *PatientRepository) ListByExaminers(ctx context.Context, examinerIDs []int) ([]model.Patient, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, examiner_id, name, age, city, father_name, mother_name, unique_id, phone_number, score
		 FROM patients WHERE examiner_id = ANY($1)
		 ORDER BY id DESC`, examinerIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPatients(rows)
}

// ListAll retrieves every patient, newest first.
func (r *PatientRepository) ListAll(ctx context.Context) ([]model.Patient, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, examiner_id, name, age, city, father_name, mother_name, unique_id, phone_number, score
		 FROM patients ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPatients(rows)
}

func scanPatients(rows pgx.Rows) ([]model.Patient, error) {
	var patients []model.Patient
	for rows.Next() {
		var p model.Patient
		if err := rows.Scan(&p.ID, &p.ExaminerID, &p.Name, &p.Age, &p.City, &p.FatherName, &p.MotherName, &p.UniqueID, &p.PhoneNumber, &p.Score); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// Update edits a patient's details. Score is owned by the aggregator and
// never touched here.
func (r *PatientRepository) Update(ctx context.Context, p *model.Patient) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE patients
		 SET name = $2, age = $3, city = $4, father_name = $5, mother_name = $6, phone_number = $7
		 WHERE id = $1`,
		p.ID, p.Name, p.Age, p.City, p.FatherName, p.MotherName, p.PhoneNumber,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a patient; responses and reports cascade.
func (r *PatientRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
