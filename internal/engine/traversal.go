package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/rs/zerolog"
)

// DefaultAdvanceDelay is how long the machine waits after an answer is
// registered before auto-advancing, matching the reference behavior.
const DefaultAdvanceDelay = time.Second

// CursorState is a snapshot of the traversal position for presentation.
type CursorState struct {
	Level         int           `json:"level"`
	ScreenID      int           `json:"screen_id"`
	ScreenNumber  int           `json:"screen_number"`
	QuestionIndex int           `json:"question_index"`
	QuestionID    int           `json:"question_id"`
	Prompt        string        `json:"prompt"`
	Images        []model.Image `json:"images"`
	Answered      map[int]int   `json:"answered"`
	Ended         bool          `json:"ended"`
}

// Traversal is the per-patient assessment state machine. It owns the cursor
// (level, screen index, question index), the per-screen answer buffer and
// the single pending auto-advance timer. All methods are safe for
// concurrent use; the machine reacts to one event at a time.
type Traversal struct {
	catalog  Catalog
	recorder *Recorder
	narrator Narrator
	log      zerolog.Logger

	patientID    int
	advanceDelay time.Duration

	mu          sync.Mutex
	ctx         context.Context // session-scoped, set by Start
	totalLevels int
	level       int
	screens     []model.Screen
	screenIdx   int
	questionIdx int
	selected    map[int]int // question ID -> selected image ID
	ended       bool
	started     bool
	onEnded     func()

	// pending is the one scheduled auto-advance. pendingSeq is bumped on
	// every competing transition so a stale timer that already fired finds
	// its sequence outdated and does nothing.
	pending    *time.Timer
	pendingSeq uint64
}

// NewTraversal creates a traversal machine for one patient session.
// advanceDelay <= 0 falls back to DefaultAdvanceDelay.
func NewTraversal(catalog Catalog, recorder *Recorder, narrator Narrator, log zerolog.Logger, patientID int, advanceDelay time.Duration) *Traversal {
	if advanceDelay <= 0 {
		advanceDelay = DefaultAdvanceDelay
	}
	return &Traversal{
		catalog:      catalog,
		recorder:     recorder,
		narrator:     narrator,
		log:          log.With().Str("component", "traversal").Int("patient_id", patientID).Logger(),
		patientID:    patientID,
		advanceDelay: advanceDelay,
		selected:     make(map[int]int),
	}
}

// SetOnEnded registers a hook invoked once whenever the machine transitions
// to Ended (natural completion or exit). Call before Start.
func (t *Traversal) SetOnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

// Start reads the level index once and enters level 1. The context is
// retained for delayed transitions; it should span the session.
func (t *Traversal) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ctx = ctx
	levels, err := t.catalog.ListLevels(ctx)
	if err != nil {
		t.endLocked()
		return fmt.Errorf("list levels: %w", err)
	}

	t.totalLevels = 0
	for _, lv := range levels {
		if lv.Level > t.totalLevels {
			t.totalLevels = lv.Level
		}
	}
	t.started = true

	return t.enterLevelLocked(ctx, 1)
}

// Select registers the subject's pick for the current question, persists it
// through the recorder and schedules the auto-advance. A persistence failure
// is returned for logging but leaves the selection buffered so the subject
// can re-select; the advance is scheduled regardless, as in the reference.
func (t *Traversal) Select(ctx context.Context, imageID int) (*model.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, ok := t.currentQuestionLocked()
	if !ok {
		return nil, ErrInvalidTransition
	}
	if !t.imageOnCurrentScreenLocked(imageID) {
		return nil, ErrInvalidSelection
	}

	t.selected[q.ID] = imageID
	t.scheduleAdvanceLocked(q.ID)

	resp, err := t.recorder.Record(ctx, t.patientID, q.ID, imageID)
	if err != nil {
		t.log.Warn().Err(err).Int("question_id", q.ID).Msg("Record failed; subject may re-select")
		return nil, err
	}
	return resp, nil
}

// Next advances manually. It is legal only when the current question is
// answered; otherwise the request is an invalid transition.
func (t *Traversal) Next(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, ok := t.currentQuestionLocked()
	if !ok {
		return ErrInvalidTransition
	}
	if _, answered := t.selected[q.ID]; !answered {
		return ErrInvalidTransition
	}
	return t.advanceLocked(ctx)
}

// Previous steps back one question, or to the last question of the nearest
// prior presentable screen. Backward navigation clears the whole answer
// buffer, matching the reference, so revisited questions must be re-answered.
func (t *Traversal) Previous(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.currentQuestionLocked(); !ok {
		return ErrInvalidTransition
	}

	if t.questionIdx > 0 {
		t.cancelPendingLocked()
		t.questionIdx--
		t.clearBufferLocked()
		t.narrateLocked()
		return nil
	}

	prev := lastPresentableBefore(t.screens, t.screenIdx-1)
	if prev < 0 {
		return ErrInvalidTransition
	}
	t.cancelPendingLocked()
	t.screenIdx = prev
	t.questionIdx = len(t.screens[prev].Questions) - 1
	t.clearBufferLocked()
	t.narrateLocked()
	return nil
}

// PreviousLevel resets to the prior level through full enter-level
// validation. A no-op at level 1.
func (t *Traversal) PreviousLevel(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended || !t.started || t.level <= 1 {
		return ErrInvalidTransition
	}
	t.cancelPendingLocked()
	t.clearBufferLocked()
	return t.enterLevelLocked(ctx, t.level-1)
}

// Exit forces the terminal state from anywhere and fires the ended hook.
func (t *Traversal) Exit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelPendingLocked()
	t.endLocked()
}

// Retake resets to level 1 with a cleared buffer and restarts traversal.
// The passed context replaces the session context from Start, so timer
// transitions after a retake run against the new session's lifetime.
func (t *Traversal) Retake(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return ErrInvalidTransition
	}
	t.cancelPendingLocked()
	t.clearBufferLocked()
	t.ctx = ctx
	t.ended = false
	return t.enterLevelLocked(ctx, 1)
}

// Ended reports whether the machine reached the terminal state.
func (t *Traversal) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

// CurrentPrompt returns the presented question's text, if any.
func (t *Traversal) CurrentPrompt() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.currentQuestionLocked()
	if !ok {
		return "", false
	}
	return q.Text, true
}

// CurrentImages returns the presented screen's stimulus images in
// presentation order, or nil when nothing is presented.
func (t *Traversal) CurrentImages() []model.Image {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended || t.screenIdx >= len(t.screens) {
		return nil
	}
	imgs := t.screens[t.screenIdx].Images
	out := make([]model.Image, len(imgs))
	copy(out, imgs)
	return out
}

// Cursor returns a full snapshot of the presentation state.
func (t *Traversal) Cursor() CursorState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := CursorState{
		Level:    t.level,
		Ended:    t.ended,
		Answered: make(map[int]int, len(t.selected)),
	}
	for qid, img := range t.selected {
		state.Answered[qid] = img
	}

	q, ok := t.currentQuestionLocked()
	if !ok {
		return state
	}
	scr := t.screens[t.screenIdx]
	state.ScreenID = scr.ID
	state.ScreenNumber = scr.ScreenNumber
	state.QuestionIndex = t.questionIdx
	state.QuestionID = q.ID
	state.Prompt = q.Text
	state.Images = make([]model.Image, len(scr.Images))
	copy(state.Images, scr.Images)
	return state
}

// ─── Internal transitions (mu held) ─────────────────────────────────

// enterLevelLocked scans forward from the requested ordinal for the first
// level containing a presentable screen, bounded by the level index read at
// Start. Missing or empty levels are skipped; exhausting the bound or a
// fetch failure ends the traversal rather than surfacing to the subject.
func (t *Traversal) enterLevelLocked(ctx context.Context, from int) error {
	for lvl := from; lvl <= t.totalLevels; lvl++ {
		level, err := t.catalog.GetLevel(ctx, lvl)
		if err != nil {
			if errors.Is(err, ErrContentNotFound) {
				continue
			}
			t.endLocked()
			return fmt.Errorf("get level %d: %w", lvl, err)
		}

		idx := firstPresentableFrom(level.Screens, 0)
		if idx < 0 {
			continue
		}

		t.level = lvl
		t.screens = level.Screens
		t.screenIdx = idx
		t.questionIdx = 0
		t.narrateLocked()
		return nil
	}

	// Absence of content is completion, not an error state.
	t.endLocked()
	return nil
}

// advanceLocked implements the shared advance rule: next question on the
// screen, else next presentable screen in the level, else next level.
func (t *Traversal) advanceLocked(ctx context.Context) error {
	t.cancelPendingLocked()

	scr := t.screens[t.screenIdx]
	if t.questionIdx < len(scr.Questions)-1 {
		t.questionIdx++
		t.narrateLocked()
		return nil
	}

	if next := firstPresentableFrom(t.screens, t.screenIdx+1); next >= 0 {
		t.screenIdx = next
		t.questionIdx = 0
		t.narrateLocked()
		return nil
	}

	t.clearBufferLocked()
	return t.enterLevelLocked(ctx, t.level+1)
}

// scheduleAdvanceLocked arms the single delayed auto-advance for the given
// question. Any previously pending advance is cancelled first; when the
// timer fires it validates both its sequence number and that the cursor
// still points at the question it was issued for.
func (t *Traversal) scheduleAdvanceLocked(questionID int) {
	t.cancelPendingLocked()
	seq := t.pendingSeq

	t.pending = time.AfterFunc(t.advanceDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if t.ended || seq != t.pendingSeq {
			return
		}
		q, ok := t.currentQuestionLocked()
		if !ok || q.ID != questionID {
			return
		}
		if err := t.advanceLocked(t.ctx); err != nil {
			t.log.Warn().Err(err).Msg("Auto-advance failed")
		}
	})
}

// cancelPendingLocked stops any scheduled advance and invalidates timers
// that have already fired but not yet acquired the lock.
func (t *Traversal) cancelPendingLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.pendingSeq++
}

func (t *Traversal) endLocked() {
	if t.ended {
		return
	}
	t.ended = true
	t.screens = nil
	t.screenIdx = 0
	t.questionIdx = 0
	if t.onEnded != nil {
		go t.onEnded()
	}
}

func (t *Traversal) clearBufferLocked() {
	t.selected = make(map[int]int)
}

func (t *Traversal) currentQuestionLocked() (*model.Question, bool) {
	if t.ended || !t.started || t.screenIdx >= len(t.screens) {
		return nil, false
	}
	qs := t.screens[t.screenIdx].Questions
	if t.questionIdx >= len(qs) {
		return nil, false
	}
	return &qs[t.questionIdx], true
}

func (t *Traversal) imageOnCurrentScreenLocked(imageID int) bool {
	for _, img := range t.screens[t.screenIdx].Images {
		if img.ID == imageID {
			return true
		}
	}
	return false
}

// narrateLocked emits the presented question's prompt to the narration side
// channel. Fire-and-forget; narration failure never blocks traversal.
func (t *Traversal) narrateLocked() {
	q, ok := t.currentQuestionLocked()
	if !ok || t.narrator == nil {
		return
	}
	go t.narrator.Speak(t.patientID, q.Text)
}

func firstPresentableFrom(screens []model.Screen, from int) int {
	for i := from; i < len(screens); i++ {
		if screens[i].HasQuestions() {
			return i
		}
	}
	return -1
}

func lastPresentableBefore(screens []model.Screen, from int) int {
	for i := from; i >= 0; i-- {
		if i < len(screens) && screens[i].HasQuestions() {
			return i
		}
	}
	return -1
}
