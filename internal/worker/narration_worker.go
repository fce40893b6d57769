package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/pictalk/pictalk-backend/internal/narration"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NarrationWorker consumes narration_queue and relays each event to the
// owning patient's PubSub channel, where the connected presentation client
// speaks it aloud.
type NarrationWorker struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewNarrationWorker creates a new NarrationWorker.
func NewNarrationWorker(rdb *redis.Client, log zerolog.Logger) *NarrationWorker {
	return &NarrationWorker{
		rdb: rdb,
		log: log.With().Str("component", "narration_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *NarrationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *NarrationWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.NarrationQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}
	w.publish(ctx, []byte(result[1]))
}

// publish relays one queued event. Narration is time-sensitive: a failed
// publish is dropped, not requeued, since a prompt spoken late is worse
// than one not spoken at all.
func (w *NarrationWorker) publish(ctx context.Context, raw []byte) {
	var event narration.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	channel := config.CacheKey.PatientNarrationChannel(event.PatientID)
	if err := w.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		w.log.Warn().Err(err).Int("patient_id", event.PatientID).Msg("Publish error, dropping event")
	}
}

// drain relays all remaining items in the queue before shutdown.
func (w *NarrationWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.NarrationQueue).Result()
		if err != nil {
			break
		}
		w.publish(ctx, []byte(result))
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
