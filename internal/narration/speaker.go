// Package narration carries question prompts to the presentation surface as
// speech events. The engine hands a prompt to the Speaker, which enqueues it
// in Redis; the narration worker relays queued events to the patient's
// PubSub channel, where the connected client performs the actual
// text-to-speech.
package narration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event is one narration request flowing through the queue.
type Event struct {
	PatientID int    `json:"patient_id"`
	Text      string `json:"text"`
	Lang      string `json:"lang"`
}

// Speaker implements the engine's narration side channel by enqueueing
// events in Redis. Best-effort: a failed enqueue is logged and dropped,
// never surfaced to the traversal.
type Speaker struct {
	rdb  *redis.Client
	lang string
	log  zerolog.Logger
}

// NewSpeaker creates a Speaker emitting events tagged with the given
// BCP 47 language.
func NewSpeaker(rdb *redis.Client, lang string, log zerolog.Logger) *Speaker {
	return &Speaker{
		rdb:  rdb,
		lang: lang,
		log:  log.With().Str("component", "speaker").Logger(),
	}
}

// Speak enqueues a narration event for the patient. Never blocks the
// traversal for long; the push is bounded by a short timeout.
func (s *Speaker) Speak(patientID int, text string) {
	if text == "" {
		return
	}

	payload, err := json.Marshal(Event{PatientID: patientID, Text: text, Lang: s.lang})
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal narration event failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.RPush(ctx, config.WorkerKey.NarrationQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Int("patient_id", patientID).Msg("Narration enqueue failed, dropping")
	}
}
