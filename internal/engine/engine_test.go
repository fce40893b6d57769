package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pictalk/pictalk-backend/internal/model"
)

// ─── In-memory collaborators ────────────────────────────────────────

type fakeCatalog struct {
	mu     sync.Mutex
	levels map[int]*model.TestLevel
	// getLevelErr, when set, is returned by GetLevel for any ordinal.
	getLevelErr error
}

func newFakeCatalog(levels ...*model.TestLevel) *fakeCatalog {
	c := &fakeCatalog{levels: make(map[int]*model.TestLevel)}
	for _, lv := range levels {
		c.levels[lv.Level] = lv
	}
	return c
}

func (c *fakeCatalog) ListLevels(ctx context.Context) ([]model.TestLevel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ordinals := make([]int, 0, len(c.levels))
	for ord := range c.levels {
		ordinals = append(ordinals, ord)
	}
	sort.Ints(ordinals)
	out := make([]model.TestLevel, 0, len(ordinals))
	for _, ord := range ordinals {
		out = append(out, model.TestLevel{ID: c.levels[ord].ID, Level: ord})
	}
	return out, nil
}

func (c *fakeCatalog) GetLevel(ctx context.Context, level int) (*model.TestLevel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getLevelErr != nil {
		return nil, c.getLevelErr
	}
	lv, ok := c.levels[level]
	if !ok {
		return nil, fmt.Errorf("level %d: %w", level, ErrContentNotFound)
	}
	return lv, nil
}

func (c *fakeCatalog) GetQuestion(ctx context.Context, questionID int) (*model.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lv := range c.levels {
		for _, scr := range lv.Screens {
			for _, q := range scr.Questions {
				if q.ID == questionID {
					out := q
					out.Images = scr.Images
					return &out, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("question %d: %w", questionID, ErrContentNotFound)
}

func (c *fakeCatalog) deleteQuestion(questionID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lv := range c.levels {
		for si := range lv.Screens {
			qs := lv.Screens[si].Questions
			for qi := range qs {
				if qs[qi].ID == questionID {
					lv.Screens[si].Questions = append(qs[:qi], qs[qi+1:]...)
					return
				}
			}
		}
	}
}

type responseKey struct {
	patientID  int
	questionID int
}

type fakeStore struct {
	mu        sync.Mutex
	rows      map[responseKey]model.Response
	upserts   int
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[responseKey]model.Response)}
}

func (s *fakeStore) Upsert(ctx context.Context, resp *model.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.rows[responseKey{resp.PatientID, resp.QuestionID}] = *resp
	return nil
}

func (s *fakeStore) ListByPatient(ctx context.Context, patientID int) ([]model.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Response
	for key, row := range s.rows {
		if key.patientID == patientID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *fakeStore) get(patientID, questionID int) (model.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[responseKey{patientID, questionID}]
	return row, ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeReports struct {
	mu        sync.Mutex
	appended  []model.ScoreReport
	appendErr error
}

func (r *fakeReports) Append(ctx context.Context, report *model.ScoreReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.appended = append(r.appended, *report)
	return nil
}

func (r *fakeReports) List(ctx context.Context, patientID int, from, to *time.Time) ([]model.ScoreReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ScoreReport
	for _, rep := range r.appended {
		if rep.PatientID != patientID {
			continue
		}
		if from != nil && rep.TakenAt.Before(*from) {
			continue
		}
		if to != nil && rep.TakenAt.After(*to) {
			continue
		}
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

type fakeNarrator struct {
	mu     sync.Mutex
	spoken []string
}

func (n *fakeNarrator) Speak(patientID int, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.spoken = append(n.spoken, text)
}

func (n *fakeNarrator) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.spoken))
	copy(out, n.spoken)
	return out
}

// ─── Catalog builders ───────────────────────────────────────────────

func testImage(id int) model.Image {
	return model.Image{ID: id, URL: fmt.Sprintf("https://cdn.example.com/img/%d.jpg", id)}
}

func testImages(ids ...int) []model.Image {
	out := make([]model.Image, 0, len(ids))
	for _, id := range ids {
		out = append(out, testImage(id))
	}
	return out
}

func testQuestion(id int, text string, answerImageID int) model.Question {
	answer := answerImageID
	return model.Question{ID: id, Text: text, AnswerImageID: &answer}
}

func testScreen(id, number int, images []model.Image, questions ...model.Question) model.Screen {
	for i := range images {
		images[i].ScreenID = id
	}
	for i := range questions {
		questions[i].ScreenID = id
	}
	return model.Screen{ID: id, ScreenNumber: number, Images: images, Questions: questions}
}

func testLevel(ordinal int, screens ...model.Screen) *model.TestLevel {
	for i := range screens {
		screens[i].TestLevelID = ordinal
	}
	return &model.TestLevel{ID: ordinal, Level: ordinal, Screens: screens}
}
