package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pictalk/pictalk-backend/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrImageLimit is returned when a screen already holds its maximum of four images.
var ErrImageLimit = errors.New("screen image limit reached")

// ErrDuplicate is returned when an insert collides with a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate value")

// CatalogRepository handles assessment content data access: test levels,
// their screens, and the images and questions attached to each screen.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListLevels retrieves all test levels ordered by ordinal, without screens.
func (r *CatalogRepository) ListLevels(ctx context.Context) ([]model.TestLevel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, level FROM test_levels ORDER BY level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []model.TestLevel
	for rows.Next() {
		var lv model.TestLevel
		if err := rows.Scan(&lv.ID, &lv.Level); err != nil {
			return nil, err
		}
		levels = append(levels, lv)
	}
	return levels, rows.Err()
}

// GetLevelByOrdinal retrieves a test level with its screens fully populated,
// screens ordered by screen_number. Returns ErrNotFound when no level has
// the given ordinal.
func (r *CatalogRepository) GetLevelByOrdinal(ctx context.Context, level int) (*model.TestLevel, error) {
	lv := &model.TestLevel{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, level FROM test_levels WHERE level = $1`, level,
	).Scan(&lv.ID, &lv.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadScreens(ctx, lv); err != nil {
		return nil, err
	}
	return lv, nil
}

func (r *CatalogRepository) loadScreens(ctx context.Context, lv *model.TestLevel) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_level_id, screen_number
		 FROM screens WHERE test_level_id = $1
		 ORDER BY screen_number`, lv.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	index := make(map[int]int)
	for rows.Next() {
		var s model.Screen
		if err := rows.Scan(&s.ID, &s.TestLevelID, &s.ScreenNumber); err != nil {
			return err
		}
		index[s.ID] = len(lv.Screens)
		lv.Screens = append(lv.Screens, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(lv.Screens) == 0 {
		return nil
	}

	screenIDs := make([]int, 0, len(lv.Screens))
	for _, s := range lv.Screens {
		screenIDs = append(screenIDs, s.ID)
	}

	imgRows, err := r.pool.Query(ctx,
		`SELECT id, screen_id, url FROM images
		 WHERE screen_id = ANY($1) ORDER BY id`, screenIDs,
	)
	if err != nil {
		return err
	}
	defer imgRows.Close()
	for imgRows.Next() {
		var img model.Image
		if err := imgRows.Scan(&img.ID, &img.ScreenID, &img.URL); err != nil {
			return err
		}
		i := index[img.ScreenID]
		lv.Screens[i].Images = append(lv.Screens[i].Images, img)
	}
	if err := imgRows.Err(); err != nil {
		return err
	}

	qRows, err := r.pool.Query(ctx,
		`SELECT id, screen_id, text, answer_image_id FROM questions
		 WHERE screen_id = ANY($1) ORDER BY id`, screenIDs,
	)
	if err != nil {
		return err
	}
	defer qRows.Close()
	for qRows.Next() {
		var q model.Question
		if err := qRows.Scan(&q.ID, &q.ScreenID, &q.Text, &q.AnswerImageID); err != nil {
			return err
		}
		i := index[q.ScreenID]
		lv.Screens[i].Questions = append(lv.Screens[i].Questions, q)
	}
	return qRows.Err()
}

// GetQuestion retrieves a single question together with its screen's images.
// Returns ErrNotFound when the question does not exist.
func (r *CatalogRepository) GetQuestion(ctx context.Context, questionID int) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, screen_id, text, answer_image_id
		 FROM questions WHERE id = $1`, questionID,
	).Scan(&q.ID, &q.ScreenID, &q.Text, &q.AnswerImageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, screen_id, url FROM images
		 WHERE screen_id = $1 ORDER BY id`, q.ScreenID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.ID, &img.ScreenID, &img.URL); err != nil {
			return nil, err
		}
		q.Images = append(q.Images, img)
	}
	return q, rows.Err()
}

// CreateLevel inserts a new test level with the given ordinal.
func (r *CatalogRepository) CreateLevel(ctx context.Context, lv *model.TestLevel) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_levels (level) VALUES ($1) RETURNING id`,
		lv.Level,
	).Scan(&lv.ID)
}

// DeleteLevel removes a test level; screens, images and questions cascade.
func (r *CatalogRepository) DeleteLevel(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM test_levels WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateScreen inserts a new screen under a test level.
func (r *CatalogRepository) CreateScreen(ctx context.Context, s *model.Screen) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO screens (test_level_id, screen_number)
		 VALUES ($1, $2) RETURNING id`,
		s.TestLevelID, s.ScreenNumber,
	).Scan(&s.ID)
}

// DeleteScreen removes a screen; its images and questions cascade.
func (r *CatalogRepository) DeleteScreen(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM screens WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateImage attaches an image to a screen, enforcing the four-image cap
// per screen inside a single statement so concurrent uploads cannot slip
// past the limit.
func (r *CatalogRepository) CreateImage(ctx context.Context, img *model.Image) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO images (screen_id, url)
		 SELECT $1, $2
		 WHERE (SELECT COUNT(*) FROM images WHERE screen_id = $1) < 4
		 RETURNING id`,
		img.ScreenID, img.URL,
	).Scan(&img.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrImageLimit
	}
	return err
}

// DeleteImage removes an image. Questions keyed to it keep a NULL answer
// until re-keyed.
func (r *CatalogRepository) DeleteImage(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateQuestion inserts a new question on a screen. The answer key starts
// unassigned.
func (r *CatalogRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (screen_id, text) VALUES ($1, $2) RETURNING id`,
		q.ScreenID, q.Text,
	).Scan(&q.ID)
}

// SetAnswer assigns a question's answer key. The referenced image must sit
// on the question's own screen; the WHERE clause rejects anything else.
func (r *CatalogRepository) SetAnswer(ctx context.Context, questionID, answerImageID int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions q SET answer_image_id = $2
		 WHERE q.id = $1
		   AND EXISTS (
		     SELECT 1 FROM images i
		     WHERE i.id = $2 AND i.screen_id = q.screen_id
		   )`,
		questionID, answerImageID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQuestion removes a question. Recorded responses keep their stored
// correctness flag.
func (r *CatalogRepository) DeleteQuestion(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
