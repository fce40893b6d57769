package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/pictalk/pictalk-backend/internal/engine"
	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CatalogService serves assessment content to traversal sessions through a
// Redis read-through cache and handles content authoring. It implements
// engine.Catalog; cache misses self-heal from PostgreSQL and every authoring
// write re-warms the affected payloads.
type CatalogService struct {
	repo *repository.CatalogRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo *repository.CatalogRepository, rdb *redis.Client, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "catalog_service").Logger(),
	}
}

// ListLevels returns the level index ordered by ordinal, cached under a
// single key.
func (s *CatalogService) ListLevels(ctx context.Context) ([]model.TestLevel, error) {
	key := config.CacheKey.LevelIndexKey()
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var levels []model.TestLevel
		if err := json.Unmarshal(data, &levels); err == nil {
			return levels, nil
		}
		s.log.Warn().Msg("Corrupt level index in cache, reloading")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Level index cache read failed, falling back to database")
	}

	levels, err := s.repo.ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}

	if data, err := json.Marshal(levels); err == nil {
		if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Level index cache write failed")
		}
	}
	return levels, nil
}

// GetLevel returns a level by ordinal with its full screen payload. Serves
// from cache when possible; a miss loads from PostgreSQL and heals the cache.
func (s *CatalogService) GetLevel(ctx context.Context, level int) (*model.TestLevel, error) {
	key := config.CacheKey.LevelPayloadKey(level)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		lv := &model.TestLevel{}
		if err := json.Unmarshal(data, lv); err == nil {
			return lv, nil
		}
		s.log.Warn().Int("level", level).Msg("Corrupt level payload in cache, reloading")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Int("level", level).Msg("Level cache read failed, falling back to database")
	}

	lv, err := s.loadAndCacheLevel(ctx, level)
	if err != nil {
		return nil, err
	}
	return lv, nil
}

// GetQuestion returns a question with its screen's image set. Reads the
// authoritative store directly: answer keys drive correctness and must not
// go stale behind a cache.
func (s *CatalogService) GetQuestion(ctx context.Context, questionID int) (*model.Question, error) {
	q, err := s.repo.GetQuestion(ctx, questionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("question %d: %w", questionID, engine.ErrContentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *CatalogService) loadAndCacheLevel(ctx context.Context, level int) (*model.TestLevel, error) {
	lv, err := s.repo.GetLevelByOrdinal(ctx, level)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("level %d: %w", level, engine.ErrContentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get level %d: %w", level, err)
	}

	if data, err := json.Marshal(lv); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.LevelPayloadKey(level), data, 0).Err(); err != nil {
			s.log.Warn().Err(err).Int("level", level).Msg("Level cache write failed")
		}
	}
	return lv, nil
}

// PrewarmAllCaches loads every level payload and the level index into Redis
// on application startup, so the first session never pays the lazy-load cost.
func (s *CatalogService) PrewarmAllCaches(ctx context.Context) error {
	levels, err := s.repo.ListLevels(ctx)
	if err != nil {
		return fmt.Errorf("list levels: %w", err)
	}
	if len(levels) == 0 {
		s.log.Info().Msg("No test levels to prewarm")
		return nil
	}

	warmed := 0
	for _, lv := range levels {
		if _, err := s.loadAndCacheLevel(ctx, lv.Level); err != nil {
			s.log.Warn().Err(err).Int("level", lv.Level).Msg("Failed to warm level, skipping")
			continue
		}
		warmed++
	}

	if data, err := json.Marshal(levels); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.LevelIndexKey(), data, 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Level index cache write failed")
		}
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(levels)).Msg("Prewarming complete")
	return nil
}

// invalidate drops the level index and every level payload from the cache.
// Authoring writes are rare; rebuilding the whole content cache keeps the
// invalidation logic trivially correct.
func (s *CatalogService) invalidate(ctx context.Context) {
	levels, err := s.repo.ListLevels(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Cache invalidation could not enumerate levels")
		return
	}

	keys := []string{config.CacheKey.LevelIndexKey()}
	for _, lv := range levels {
		keys = append(keys, config.CacheKey.LevelPayloadKey(lv.Level))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Cache invalidation failed")
	}
}

// ─── Authoring ──────────────────────────────────────────────────────

// CreateLevel inserts a new test level and invalidates the content cache.
func (s *CatalogService) CreateLevel(ctx context.Context, lv *model.TestLevel) error {
	if err := s.repo.CreateLevel(ctx, lv); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// DeleteLevel removes a level and its subtree.
func (s *CatalogService) DeleteLevel(ctx context.Context, id int) error {
	// Invalidate first so the stale ordinal's payload key is still
	// enumerable from the database.
	s.invalidate(ctx)
	return s.repo.DeleteLevel(ctx, id)
}

// CreateScreen inserts a new screen under a level.
func (s *CatalogService) CreateScreen(ctx context.Context, scr *model.Screen) error {
	if err := s.repo.CreateScreen(ctx, scr); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// DeleteScreen removes a screen and its subtree.
func (s *CatalogService) DeleteScreen(ctx context.Context, id int) error {
	if err := s.repo.DeleteScreen(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// AddImage attaches an image to a screen, subject to the four-image cap.
func (s *CatalogService) AddImage(ctx context.Context, img *model.Image) error {
	if err := s.repo.CreateImage(ctx, img); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// DeleteImage removes an image from a screen.
func (s *CatalogService) DeleteImage(ctx context.Context, id int) error {
	if err := s.repo.DeleteImage(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// CreateQuestion inserts a question on a screen with an unassigned answer key.
func (s *CatalogService) CreateQuestion(ctx context.Context, q *model.Question) error {
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// SetAnswer assigns a question's answer key to an image on its own screen.
func (s *CatalogService) SetAnswer(ctx context.Context, questionID, answerImageID int) error {
	if err := s.repo.SetAnswer(ctx, questionID, answerImageID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// DeleteQuestion removes a question.
func (s *CatalogService) DeleteQuestion(ctx context.Context, id int) error {
	if err := s.repo.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}
