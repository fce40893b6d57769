package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pictalk/pictalk-backend/internal/model"
)

// ExaminerRepository handles examiner account data access.
type ExaminerRepository struct {
	pool *pgxpool.Pool
}

// NewExaminerRepository creates a new ExaminerRepository.
func NewExaminerRepository(pool *pgxpool.Pool) *ExaminerRepository {
	return &ExaminerRepository{pool: pool}
}

// GetByEmail retrieves an examiner by email. Returns ErrNotFound when absent.
func (r *ExaminerRepository) GetByEmail(ctx context.Context, email string) (*model.Examiner, error) {
	e := &model.Examiner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, kind, created_by
		 FROM examiners WHERE email = $1`, email,
	).Scan(&e.ID, &e.Email, &e.Name, &e.PasswordHash, &e.Kind, &e.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an examiner by id. Returns ErrNotFound when absent.
func (r *ExaminerRepository) GetByID(ctx context.Context, id int) (*model.Examiner, error) {
	e := &model.Examiner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, kind, created_by
		 FROM examiners WHERE id = $1`, id,
	).Scan(&e.ID, &e.Email, &e.Name, &e.PasswordHash, &e.Kind, &e.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new examiner account.
func (r *ExaminerRepository) Create(ctx context.Context, e *model.Examiner) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO examiners (email, name, password_hash, kind, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.Email, e.Name, e.PasswordHash, e.Kind, e.CreatedBy,
	).Scan(&e.ID)
}

// ListCreatedBy retrieves the ids of examiners provisioned by the given
// admin. Used by access control to widen an admin's patient visibility to
// the accounts they manage.
func (r *ExaminerRepository) ListCreatedBy(ctx context.Context, adminID int) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM examiners WHERE created_by = $1`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
