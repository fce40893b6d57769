package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/pictalk/pictalk-backend/internal/engine"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoActiveSession is returned for traversal commands without a running
// session.
var ErrNoActiveSession = errors.New("no active assessment session")

// SessionService owns the live traversal machines, one per patient. It
// mirrors recorded answers into a Redis hash so an interrupted session's
// progress is inspectable, and recomputes the patient's score when a
// session ends.
type SessionService struct {
	catalog  engine.Catalog
	recorder *engine.Recorder
	store    engine.ResponseStore
	narrator engine.Narrator
	scoring  *ScoringService
	rdb      *redis.Client
	cfg      *config.Config
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[int]*engine.Traversal
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	catalog engine.Catalog,
	recorder *engine.Recorder,
	store engine.ResponseStore,
	narrator engine.Narrator,
	scoring *ScoringService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		catalog:  catalog,
		recorder: recorder,
		store:    store,
		narrator: narrator,
		scoring:  scoring,
		rdb:      rdb,
		cfg:      cfg,
		log:      log.With().Str("component", "session_service").Logger(),
		sessions: make(map[int]*engine.Traversal),
	}
}

// Start opens a traversal session for the patient at level 1. An existing
// session is exited first; its end-of-session scoring runs as usual.
// Previously recorded responses survive in PostgreSQL and are overwritten
// question by question as the subject re-answers.
func (s *SessionService) Start(ctx context.Context, patientID int) (engine.CursorState, error) {
	s.mu.Lock()
	if existing, ok := s.sessions[patientID]; ok {
		delete(s.sessions, patientID)
		s.mu.Unlock()
		existing.Exit()
		s.mu.Lock()
	}

	t := engine.NewTraversal(s.catalog, s.recorder, s.narrator, s.log, patientID, s.cfg.AdvanceDelay)
	t.SetOnEnded(func() { s.onSessionEnded(patientID, t) })
	s.sessions[patientID] = t
	s.mu.Unlock()

	// The machine's delayed transitions outlive this request.
	if err := t.Start(context.WithoutCancel(ctx)); err != nil {
		s.log.Error().Err(err).Int("patient_id", patientID).Msg("Session start failed")
		return t.Cursor(), err
	}

	s.primeAnswerMirror(ctx, patientID)
	s.log.Info().Int("patient_id", patientID).Msg("Session started")
	return t.Cursor(), nil
}

// Select registers the subject's pick on the current screen and mirrors the
// recorded answer into Redis.
func (s *SessionService) Select(ctx context.Context, patientID, imageID int) (engine.CursorState, error) {
	t, err := s.get(patientID)
	if err != nil {
		return engine.CursorState{}, err
	}

	resp, err := t.Select(ctx, imageID)
	if err != nil {
		return t.Cursor(), err
	}

	key := config.CacheKey.PatientAnswersKey(patientID)
	if err := s.rdb.HSet(ctx, key, strconv.Itoa(resp.QuestionID), resp.SelectedImageID).Err(); err != nil {
		s.log.Warn().Err(err).Int("patient_id", patientID).Msg("Answer mirror write failed")
	}
	return t.Cursor(), nil
}

// Next advances past an answered question.
func (s *SessionService) Next(ctx context.Context, patientID int) (engine.CursorState, error) {
	t, err := s.get(patientID)
	if err != nil {
		return engine.CursorState{}, err
	}
	if err := t.Next(ctx); err != nil {
		return t.Cursor(), err
	}
	return t.Cursor(), nil
}

// Previous steps back one question or screen.
func (s *SessionService) Previous(ctx context.Context, patientID int) (engine.CursorState, error) {
	t, err := s.get(patientID)
	if err != nil {
		return engine.CursorState{}, err
	}
	if err := t.Previous(ctx); err != nil {
		return t.Cursor(), err
	}
	return t.Cursor(), nil
}

// PreviousLevel re-enters the prior level.
func (s *SessionService) PreviousLevel(ctx context.Context, patientID int) (engine.CursorState, error) {
	t, err := s.get(patientID)
	if err != nil {
		return engine.CursorState{}, err
	}
	if err := t.PreviousLevel(ctx); err != nil {
		return t.Cursor(), err
	}
	return t.Cursor(), nil
}

// Exit ends the session from anywhere; end-of-session scoring follows.
func (s *SessionService) Exit(ctx context.Context, patientID int) (engine.CursorState, error) {
	t, err := s.get(patientID)
	if err != nil {
		return engine.CursorState{}, err
	}
	t.Exit()
	return t.Cursor(), nil
}

// Retake restarts the ended or running session from level 1.
func (s *SessionService) Retake(ctx context.Context, patientID int) (engine.CursorState, error) {
	t, err := s.get(patientID)
	if err != nil {
		return engine.CursorState{}, err
	}
	if err := t.Retake(context.WithoutCancel(ctx)); err != nil {
		return t.Cursor(), err
	}
	return t.Cursor(), nil
}

// State returns the current cursor snapshot without mutating anything.
func (s *SessionService) State(patientID int) (engine.CursorState, error) {
	t, err := s.get(patientID)
	if err != nil {
		return engine.CursorState{}, err
	}
	return t.Cursor(), nil
}

func (s *SessionService) get(patientID int) (*engine.Traversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sessions[patientID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return t, nil
}

// onSessionEnded runs once per session end (natural completion or exit):
// recompute the aggregate score, drop the answer mirror and release the
// machine. Retake after exit needs a fresh Start.
func (s *SessionService) onSessionEnded(patientID int, t *engine.Traversal) {
	s.mu.Lock()
	if s.sessions[patientID] == t {
		delete(s.sessions, patientID)
	}
	s.mu.Unlock()

	ctx := context.Background()
	if _, err := s.scoring.RecomputeDirect(ctx, patientID); err != nil {
		s.log.Error().Err(err).Int("patient_id", patientID).Msg("End-of-session scoring failed")
	}
	if err := s.rdb.Del(ctx, config.CacheKey.PatientAnswersKey(patientID)).Err(); err != nil {
		s.log.Warn().Err(err).Int("patient_id", patientID).Msg("Answer mirror cleanup failed")
	}
	s.log.Info().Int("patient_id", patientID).Msg("Session ended")
}

// primeAnswerMirror seeds the Redis hash with the patient's persisted
// responses so monitors see prior progress immediately.
func (s *SessionService) primeAnswerMirror(ctx context.Context, patientID int) {
	responses, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		s.log.Warn().Err(err).Int("patient_id", patientID).Msg("Answer mirror prime failed")
		return
	}
	if len(responses) == 0 {
		return
	}

	fields := make(map[string]interface{}, len(responses))
	for _, r := range responses {
		fields[strconv.Itoa(r.QuestionID)] = r.SelectedImageID
	}
	if err := s.rdb.HSet(ctx, config.CacheKey.PatientAnswersKey(patientID), fields).Err(); err != nil {
		s.log.Warn().Err(err).Int("patient_id", patientID).Msg("Answer mirror prime failed")
	}
}

// ActiveSessions reports how many traversal machines are live. Exposed for
// the health endpoint.
func (s *SessionService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
