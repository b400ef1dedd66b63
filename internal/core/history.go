package core

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FileResult is the per-file outcome within one conversion batch. Exactly
// one of the success/failure shapes is populated.
type FileResult struct {
	Success      bool   `json:"success"`
	Name         string `json:"name,omitempty"`
	OriginalName string `json:"originalName"`
	Error        string `json:"error,omitempty"`
}

// JobRecord is the durable result of one conversion batch. It is created
// once, immutable afterwards, and removed whole by the retention sweeper.
type JobRecord struct {
	ID            string
	Results       []FileResult
	Watermark     bool
	WatermarkText string
	ExpiresAt     *time.Time
	WorkDir       string
	CreatedAt     time.Time
}

// Expired reports whether the record's lifetime has passed. Records without
// an expiry never expire.
func (r *JobRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// JobSummary is the externally visible projection of a JobRecord. The work
// directory never leaves the store.
type JobSummary struct {
	ID            string       `json:"id"`
	Results       []FileResult `json:"results"`
	Watermark     bool         `json:"watermark"`
	WatermarkText string       `json:"watermarkText,omitempty"`
}

// HistoryStore holds the in-process job history. The in-memory slice is the
// read source of truth; every mutation runs on a serialized queue and is
// followed by a full rewrite of the sqlite representation, so a crash loses
// at most the latest mutation.
type HistoryStore struct {
	db    *sql.DB
	queue *serialQueue
	log   zerolog.Logger

	mu      sync.RWMutex
	records []*JobRecord
}

func NewHistoryStore(database *sql.DB, log zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		db:    database,
		queue: newSerialQueue("history", log),
		log:   log,
	}
}

// Load reads the persisted history into the in-memory mirror. Malformed
// rows are skipped and logged rather than failing startup.
func (s *HistoryStore) Load() error {
	rows, err := s.db.Query(`
		SELECT id, results_json, watermark, watermark_text, expires_at, work_dir, created_at
		FROM history_jobs
		ORDER BY position ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []*JobRecord
	for rows.Next() {
		rec := &JobRecord{}
		var resultsJSON string
		var expiresAt sql.NullTime
		if err := rows.Scan(&rec.ID, &resultsJSON, &rec.Watermark, &rec.WatermarkText, &expiresAt, &rec.WorkDir, &rec.CreatedAt); err != nil {
			s.log.Warn().Err(err).Msg("skipping unreadable history row")
			continue
		}
		if err := json.Unmarshal([]byte(resultsJSON), &rec.Results); err != nil {
			s.log.Warn().Err(err).Str("job_id", rec.ID).Msg("skipping history row with malformed results")
			continue
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			rec.ExpiresAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read history rows: %w", err)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	return nil
}

// Append commits a finished job to the history. The in-memory mirror is
// updated even when the durable write fails; the error is reported to the
// caller and the queue moves on to the next mutation.
func (s *HistoryStore) Append(rec *JobRecord) error {
	return s.queue.Do(func() error {
		s.mu.Lock()
		s.records = append(s.records, rec)
		s.mu.Unlock()

		if err := s.persist(); err != nil {
			return fmt.Errorf("failed to persist history after append: %w", err)
		}
		return nil
	})
}

// PruneExpired removes every record whose expiry has passed, preserving the
// order of survivors, and returns the removed records so the caller can
// delete their artifacts outside the critical section.
func (s *HistoryStore) PruneExpired(now time.Time) ([]*JobRecord, error) {
	var removed []*JobRecord
	err := s.queue.Do(func() error {
		s.mu.Lock()
		kept := s.records[:0]
		for _, rec := range s.records {
			if rec.Expired(now) {
				removed = append(removed, rec)
			} else {
				kept = append(kept, rec)
			}
		}
		s.records = kept
		s.mu.Unlock()

		if len(removed) == 0 {
			return nil
		}
		if err := s.persist(); err != nil {
			return fmt.Errorf("failed to persist history after prune: %w", err)
		}
		return nil
	})
	return removed, err
}

// persist rewrites the whole persisted history in one transaction. Runs
// only on the serialized queue.
func (s *HistoryStore) persist() error {
	s.mu.RLock()
	snapshot := make([]*JobRecord, len(s.records))
	copy(snapshot, s.records)
	s.mu.RUnlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM history_jobs"); err != nil {
		return err
	}

	for i, rec := range snapshot {
		resultsJSON, err := json.Marshal(rec.Results)
		if err != nil {
			return err
		}
		var expiresAt interface{}
		if rec.ExpiresAt != nil {
			expiresAt = *rec.ExpiresAt
		}
		if _, err := tx.Exec(`
			INSERT INTO history_jobs (id, position, results_json, watermark, watermark_text, expires_at, work_dir, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, i, string(resultsJSON), rec.Watermark, rec.WatermarkText, expiresAt, rec.WorkDir, rec.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListActive returns the non-expired jobs in insertion order, projected to
// the external shape.
func (s *HistoryStore) ListActive(now time.Time) []JobSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]JobSummary, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Expired(now) {
			continue
		}
		summaries = append(summaries, JobSummary{
			ID:            rec.ID,
			Results:       rec.Results,
			Watermark:     rec.Watermark,
			WatermarkText: rec.WatermarkText,
		})
	}
	return summaries
}

// FindByID returns the record with the given id, or ErrNotFound.
func (s *HistoryStore) FindByID(id string) (*JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *HistoryStore) Close() {
	s.queue.Close()
}
