package core

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper prunes expired job records on a fixed interval and deletes their
// work directories. Pruning goes through the history store's serialized
// mutation path, so it never races a job commit; disk deletion happens
// outside that critical section.
type Sweeper struct {
	history  *HistoryStore
	interval time.Duration
	stopCh   chan struct{}
	log      zerolog.Logger
}

func NewSweeper(history *HistoryStore, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		history:  history,
		interval: interval,
		stopCh:   make(chan struct{}),
		log:      log,
	}
}

func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	removed, err := s.history.PruneExpired(now)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to prune expired jobs")
	}

	for _, rec := range removed {
		if rec.WorkDir == "" {
			continue
		}
		if err := os.RemoveAll(rec.WorkDir); err != nil {
			s.log.Warn().Err(err).Str("job_id", rec.ID).Str("dir", rec.WorkDir).Msg("failed to delete expired job artifacts")
			continue
		}
		s.log.Debug().Str("job_id", rec.ID).Msg("expired job pruned")
	}
}
