package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pictalk/pictalk-backend/internal/model"
)

// ResponseRepository handles per-question response data access. Responses
// are keyed (patient_id, question_id); re-answering overwrites in place.
type ResponseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository creates a new ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) *ResponseRepository {
	return &ResponseRepository{pool: pool}
}

// Upsert inserts or overwrites the patient's response to a question.
func (r *ResponseRepository) Upsert(ctx context.Context, resp *model.Response) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO responses (patient_id, question_id, selected_image_id, is_correct, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (patient_id, question_id)
		 DO UPDATE SET selected_image_id = $3, is_correct = $4, updated_at = $5`,
		resp.PatientID, resp.QuestionID, resp.SelectedImageID, resp.IsCorrect, resp.UpdatedAt,
	)
	return err
}

// ListByPatient retrieves all of a patient's responses ordered by question id.
func (r *ResponseRepository) ListByPatient(ctx context.Context, patientID int) ([]model.Response, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT patient_id, question_id, selected_image_id, is_correct, updated_at
		 FROM responses WHERE patient_id = $1
		 ORDER BY question_id`, patientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.Response
	for rows.Next() {
		var resp model.Response
		if err := rows.Scan(&resp.PatientID, &resp.QuestionID, &resp.SelectedImageID, &resp.IsCorrect, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}
