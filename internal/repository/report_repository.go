package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pictalk/pictalk-backend/internal/model"
)

// ReportRepository handles score report data access.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Append writes a report snapshot and overwrites the patient's running score
// in one transaction, so the aggregate and its report history can never
// disagree.
func (r *ReportRepository) Append(ctx context.Context, report *model.ScoreReport) error {
	detail, err := json.Marshal(report.Detail)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO score_reports (id, patient_id, score, taken_at, detail)
		 VALUES ($1, $2, $3, $4, $5)`,
		report.ID, report.PatientID, report.Score, report.TakenAt, detail,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE patients SET score = $2 WHERE id = $1`,
		report.PatientID, report.Score,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// List retrieves a patient's report history newest-first, optionally bounded
// to a [from, to] window on taken_at.
func (r *ReportRepository) List(ctx context.Context, patientID int, from, to *time.Time) ([]model.ScoreReport, error) {
	query := `SELECT id, patient_id, score, taken_at, detail
	          FROM score_reports WHERE patient_id = $1`
	args := []any{patientID}

	if from != nil {
		args = append(args, *from)
		query += ` AND taken_at >= $2`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			query += ` AND taken_at <= $3`
		} else {
			query += ` AND taken_at <= $2`
		}
	}
	query += ` ORDER BY taken_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []model.ScoreReport
	for rows.Next() {
		var rep model.ScoreReport
		var detail []byte
		if err := rows.Scan(&rep.ID, &rep.PatientID, &rep.Score, &rep.TakenAt, &detail); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(detail, &rep.Detail); err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
