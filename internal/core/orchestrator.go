package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paperpress/paperpress/internal/naming"
)

// UploadedFile is one decoded multipart file part.
type UploadedFile struct {
	Name string
	Data []byte
}

// BatchOptions are the caller-supplied options shared by every file in a
// batch.
type BatchOptions struct {
	Orientation   string
	PaperSize     string
	Watermark     bool
	WatermarkText string
}

// Orchestrator turns a batch of uploaded files into a committed JobRecord:
// it reads the filter store once per batch, provisions at most one
// watermark, drives the converter per file, and commits the aggregate to
// history.
type Orchestrator struct {
	workRoot   string
	converter  *Converter
	filters    *FilterStore
	history    *HistoryStore
	watermarks *WatermarkProvisioner
	retention  time.Duration
	log        zerolog.Logger
}

func NewOrchestrator(workRoot string, converter *Converter, filters *FilterStore, history *HistoryStore, watermarks *WatermarkProvisioner, retention time.Duration, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		workRoot:   workRoot,
		converter:  converter,
		filters:    filters,
		history:    history,
		watermarks: watermarks,
		retention:  retention,
		log:        log,
	}
}

// newJobID returns a short random token. Collisions across live jobs are
// assumed negligible; ids are never reused.
func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// RunBatch converts every uploaded file under a fresh job work directory.
// Per-file failures are recorded in the results and never abort siblings;
// precondition failures (work directory, enabled-but-unreadable filter,
// watermark provisioning) abort the whole batch with best-effort cleanup.
// Results preserve input file order.
func (o *Orchestrator) RunBatch(files []UploadedFile, opts BatchOptions) (*JobRecord, error) {
	id := newJobID()
	workDir := filepath.Join(o.workRoot, id)

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, &ConfigurationError{Msg: "failed to create work directory", Err: err}
	}

	convOpts := ConvertOptions{
		Orientation: NormalizeOrientation(opts.Orientation),
		PaperSize:   NormalizePaperSize(opts.PaperSize),
	}

	// The custom filter is resolved once for the whole batch. An enabled
	// filter whose file is unreadable fails the batch before any file is
	// touched.
	if cfg := o.filters.Load(); cfg != nil && cfg.Enabled {
		path := o.filters.FilePath(cfg.Name)
		if f, err := os.Open(path); err != nil {
			o.removeWorkDir(workDir)
			return nil, &ConfigurationError{Msg: "custom filter " + cfg.Name + " is enabled but unreadable", Err: err}
		} else {
			f.Close()
		}
		convOpts.CustomFilterPath = path
		convOpts.FilterMode = cfg.Mode
	}

	watermarkText := ""
	if opts.Watermark {
		watermarkText = strings.TrimSpace(opts.WatermarkText)
		if watermarkText == "" {
			watermarkText = defaultWatermarkTxt
		}

		wmPath, err := o.watermarks.Provision(workDir, watermarkText)
		if err != nil {
			o.removeWorkDir(workDir)
			return nil, &ConfigurationError{Msg: "failed to provision watermark", Err: err}
		}
		convOpts.WatermarkPath = wmPath
	}

	results := make([]FileResult, 0, len(files))
	for _, f := range files {
		results = append(results, o.convertOne(workDir, f, convOpts))
	}

	// The watermark directive is transient: gone whether the batch
	// succeeded or not.
	if convOpts.WatermarkPath != "" {
		if err := os.Remove(convOpts.WatermarkPath); err != nil && !os.IsNotExist(err) {
			o.log.Warn().Err(err).Str("job_id", id).Msg("failed to remove transient watermark file")
		}
	}

	rec := &JobRecord{
		ID:            id,
		Results:       results,
		Watermark:     opts.Watermark,
		WatermarkText: watermarkText,
		WorkDir:       workDir,
		CreatedAt:     time.Now(),
	}
	if o.retention > 0 {
		expiresAt := rec.CreatedAt.Add(o.retention)
		rec.ExpiresAt = &expiresAt
	}

	if err := o.history.Append(rec); err != nil {
		// The record is live in memory; the durable write will catch up
		// on the next mutation.
		o.log.Error().Err(err).Str("job_id", id).Msg("failed to persist job record")
	}

	return rec, nil
}

// convertOne persists one uploaded file into the work directory and runs
// the converter on it. Failures stay inside the returned result.
func (o *Orchestrator) convertOne(workDir string, f UploadedFile, opts ConvertOptions) FileResult {
	name := naming.SanitizeBaseName(f.Name)
	if name == "" {
		name = "document.md"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".md") {
		name += ".md"
	}

	if err := os.WriteFile(filepath.Join(workDir, name), f.Data, 0o644); err != nil {
		return FileResult{OriginalName: f.Name, Error: "failed to save upload: " + err.Error()}
	}

	outPath, err := o.converter.Convert(workDir, name, opts)
	if err != nil {
		msg := err.Error()
		var convErr *ConversionError
		if errors.As(err, &convErr) {
			msg = convErr.Detail
		}
		o.log.Warn().Str("file", f.Name).Str("error", msg).Msg("file conversion failed")
		return FileResult{OriginalName: f.Name, Error: msg}
	}

	return FileResult{Success: true, Name: filepath.Base(outPath), OriginalName: f.Name}
}

func (o *Orchestrator) removeWorkDir(workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		o.log.Warn().Err(err).Str("dir", workDir).Msg("failed to clean up work directory")
	}
}
