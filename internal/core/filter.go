package core

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/paperpress/paperpress/internal/naming"
)

// FilterMode controls how a custom post-processing filter composes with the
// built-in default filter.
type FilterMode string

const (
	// FilterModeOverride applies only the custom filter.
	FilterModeOverride FilterMode = "override"
	// FilterModeAdditional applies the custom filter after the default.
	FilterModeAdditional FilterMode = "additional"
)

// CustomFilterConfig is the single process-wide custom filter record. When
// Enabled is true a filter file matching Name exists on disk.
type CustomFilterConfig struct {
	Name    string
	Mode    FilterMode
	Enabled bool
}

// SaveFilterRequest carries a filter save. Mode and Enabled distinguish
// "omitted" from their zero values.
type SaveFilterRequest struct {
	Name    string
	Code    string
	Mode    *string
	Enabled *bool
}

// FilterStore owns the custom filter config row and its on-disk source
// file. All saves run on a serialized queue so the config/file pair is
// never torn by interleaved writers; reads come from the in-memory cache,
// which is only updated after the durable write succeeds.
type FilterStore struct {
	db    *sql.DB
	dir   string
	queue *serialQueue
	log   zerolog.Logger

	mu      sync.RWMutex
	current *CustomFilterConfig
}

func NewFilterStore(database *sql.DB, dir string, log zerolog.Logger) (*FilterStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create filters directory: %w", err)
	}

	s := &FilterStore{
		db:    database,
		dir:   dir,
		queue: newSerialQueue("filter", log),
		log:   log,
	}
	s.loadPersisted()
	return s, nil
}

// loadPersisted primes the cache from the database. Malformed persisted
// state is treated as "no filter saved" and logged.
func (s *FilterStore) loadPersisted() {
	var cfg CustomFilterConfig
	var mode string
	err := s.db.QueryRow(`
		SELECT name, mode, enabled FROM custom_filter WHERE id = 1
	`).Scan(&cfg.Name, &mode, &cfg.Enabled)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load saved filter config, treating as absent")
		return
	}

	cfg.Mode = FilterMode(mode)
	if cfg.Name == "" || (cfg.Mode != FilterModeOverride && cfg.Mode != FilterModeAdditional) {
		s.log.Warn().Str("name", cfg.Name).Str("mode", mode).Msg("saved filter config is malformed, treating as absent")
		return
	}

	s.current = &cfg
}

// Load returns the last successfully saved config, or nil when none exists.
func (s *FilterStore) Load() *CustomFilterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	cfg := *s.current
	return &cfg
}

// FilePath returns the on-disk location of the filter source for a given
// filter name.
func (s *FilterStore) FilePath(name string) string {
	return filepath.Join(s.dir, name+".lua")
}

// Code reads the saved filter source for the given name.
func (s *FilterStore) Code(name string) (string, error) {
	data, err := os.ReadFile(s.FilePath(name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Save validates and persists a filter change. Calls are serialized: each
// waits for the prior save (success or failure) before starting.
func (s *FilterStore) Save(req SaveFilterRequest) (string, error) {
	var savedName string
	err := s.queue.Do(func() error {
		name, err := s.save(req)
		savedName = name
		return err
	})
	return savedName, err
}

func (s *FilterStore) save(req SaveFilterRequest) (string, error) {
	if req.Mode != nil {
		if m := FilterMode(*req.Mode); m != FilterModeOverride && m != FilterModeAdditional {
			return "", &ValidationError{Msg: fmt.Sprintf("mode must be %q or %q", FilterModeOverride, FilterModeAdditional)}
		}
	}

	prev := s.Load()
	disableOnly := req.Enabled != nil && !*req.Enabled && req.Name == "" && req.Code == ""

	var cfg CustomFilterConfig
	if disableOnly {
		if prev == nil {
			return "", ErrNoExistingFilter
		}
		cfg = *prev
		cfg.Enabled = false
		if req.Mode != nil {
			cfg.Mode = FilterMode(*req.Mode)
		}
	} else {
		if strings.TrimSpace(req.Name) == "" {
			return "", &ValidationError{Msg: "filter name is required"}
		}
		if strings.TrimSpace(req.Code) == "" {
			return "", &ValidationError{Msg: "filter code is required"}
		}

		cfg = CustomFilterConfig{
			Name:    naming.SanitizeBaseName(req.Name),
			Mode:    FilterModeAdditional,
			Enabled: true,
		}
		if req.Mode != nil {
			cfg.Mode = FilterMode(*req.Mode)
		} else if prev != nil {
			cfg.Mode = prev.Mode
		}
		if req.Enabled != nil {
			cfg.Enabled = *req.Enabled
		}

		if prev != nil && prev.Name != cfg.Name {
			if err := os.Remove(s.FilePath(prev.Name)); err != nil && !os.IsNotExist(err) {
				s.log.Warn().Err(err).Str("name", prev.Name).Msg("failed to remove renamed filter file")
			}
		}
	}

	if strings.TrimSpace(req.Code) != "" {
		if err := os.WriteFile(s.FilePath(cfg.Name), []byte(req.Code), 0o644); err != nil {
			return "", fmt.Errorf("failed to write filter file: %w", err)
		}
	}

	if _, err := s.db.Exec(`
		INSERT INTO custom_filter (id, name, mode, enabled, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mode = excluded.mode,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP
	`, cfg.Name, string(cfg.Mode), cfg.Enabled); err != nil {
		return "", fmt.Errorf("failed to persist filter config: %w", err)
	}

	// Cache only follows a successful durable write.
	s.mu.Lock()
	s.current = &cfg
	s.mu.Unlock()

	return cfg.Name, nil
}

func (s *FilterStore) Close() {
	s.queue.Close()
}
