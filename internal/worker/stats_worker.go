package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"competition-voting/internal/metrics"
)

type VoteEvent struct {
	CompetitionID uuid.UUID
	OptionID      uuid.UUID
	UserID        uuid.UUID
	At            time.Time
}

// Publish hands ev to the worker without blocking. A full queue drops the
// event.
func Publish(ch chan<- VoteEvent, ev VoteEvent) bool {
	if ch == nil {
		return false
	}
	select {
	case ch <- ev:
		return true
	default:
		metrics.IncVoteEventDropped()
		return false
	}
}

// StatsWorker keeps per-competition activity counters in process memory.
// They are informational only and never feed back into vote counts.
type StatsWorker struct {
	Ch     <-chan VoteEvent
	logger *slog.Logger

	mu       sync.RWMutex
	activity map[uuid.UUID]int64
	lastVote map[uuid.UUID]time.Time
}

func NewStatsWorker(ch <-chan VoteEvent, logger *slog.Logger) *StatsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsWorker{
		Ch:       ch,
		logger:   logger,
		activity: make(map[uuid.UUID]int64),
		lastVote: make(map[uuid.UUID]time.Time),
	}
}

func (w *StatsWorker) Run(ctx context.Context) {
	w.logger.Info("stats worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case ev, ok := <-w.Ch:
			if !ok {
				w.logger.Info("stats worker queue closed")
				return
			}
			w.handle(ev)
		}
	}
}

func (w *StatsWorker) handle(ev VoteEvent) {
	w.mu.Lock()
	w.activity[ev.CompetitionID]++
	if ev.At.After(w.lastVote[ev.CompetitionID]) {
		w.lastVote[ev.CompetitionID] = ev.At
	}
	w.mu.Unlock()

	metrics.IncVoteEventProcessed()
	w.logger.Debug("processed vote event",
		"competition_id", ev.CompetitionID,
		"option_id", ev.OptionID,
	)
}

// Activity returns the number of events seen for a competition and the
// time of the latest one.
func (w *StatsWorker) Activity(competitionID uuid.UUID) (int64, time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.activity[competitionID], w.lastVote[competitionID]
}
