package core

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/paperpress/paperpress/internal/naming"
)

const (
	defaultPaperSize   = "letter"
	defaultOrientation = "portrait"
)

var allowedPaperSizes = map[string]bool{
	"letter":  true,
	"legal":   true,
	"tabloid": true,
	"a3":      true,
	"a4":      true,
	"a5":      true,
}

// NormalizePaperSize validates against the allow-list and falls back to
// letter.
func NormalizePaperSize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if allowedPaperSizes[s] {
		return s
	}
	return defaultPaperSize
}

// NormalizeOrientation falls back to portrait on anything unrecognized.
func NormalizeOrientation(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "landscape") {
		return "landscape"
	}
	return defaultOrientation
}

// CommandRunner abstracts subprocess execution so argument composition can
// be tested without pandoc installed.
type CommandRunner interface {
	Run(name string, args ...string) (stdout string, stderr string, err error)
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(name string, args ...string) (string, string, error) {
	cmd := exec.Command(name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// ConvertOptions are the composed per-batch options handed to the driver
// for each file.
type ConvertOptions struct {
	WatermarkPath    string
	CustomFilterPath string
	FilterMode       FilterMode
	Orientation      string
	PaperSize        string
}

// Converter drives the external typesetting tool for one input document at
// a time.
type Converter struct {
	PandocPath        string
	DefaultFilterPath string
	Runner            CommandRunner
}

func NewConverter(pandocPath, defaultFilterPath string) *Converter {
	return &Converter{
		PandocPath:        pandocPath,
		DefaultFilterPath: defaultFilterPath,
		Runner:            &ExecRunner{},
	}
}

// filterPaths applies the composition policy: an override custom filter
// replaces the default, an additional one runs after it.
func (c *Converter) filterPaths(opts ConvertOptions) []string {
	if opts.CustomFilterPath != "" && opts.FilterMode == FilterModeOverride {
		return []string{opts.CustomFilterPath}
	}

	paths := []string{c.DefaultFilterPath}
	if opts.CustomFilterPath != "" && opts.FilterMode == FilterModeAdditional {
		paths = append(paths, opts.CustomFilterPath)
	}
	return paths
}

// BuildArgs composes the pandoc invocation. Pure: no filesystem access, so
// the argument grammar is testable on its own.
func (c *Converter) BuildArgs(inputPath, outputPath string, opts ConvertOptions) []string {
	args := []string{inputPath}

	for _, f := range c.filterPaths(opts) {
		args = append(args, "--lua-filter", f)
	}

	args = append(args,
		"-o", outputPath,
		"--pdf-engine=xelatex",
		"-V", "geometry:margin=1in",
		"-V", "papersize:"+NormalizePaperSize(opts.PaperSize),
	)

	if NormalizeOrientation(opts.Orientation) == "landscape" {
		args = append(args, "-V", "geometry:landscape")
	}

	args = append(args,
		"-V", "mainfont=Libertinus Serif",
		"-V", "monofont=Libertinus Mono",
		"--variable=documentclass:article",
		"--variable=parskip:12pt",
	)

	if opts.WatermarkPath != "" {
		args = append(args, "-H", opts.WatermarkPath)
	}

	return args
}

// Convert runs the typesetting tool for one markdown file under workDir and
// returns the output artifact path. Any spawn failure or non-zero exit
// surfaces as a ConversionError carrying the tool's diagnostics; there is
// no retry.
func (c *Converter) Convert(workDir, mdFileName string, opts ConvertOptions) (string, error) {
	outDir := filepath.Join(workDir, "pdf_output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", &ConversionError{File: mdFileName, Detail: "failed to create output directory", Err: err}
	}

	outPath := filepath.Join(outDir, naming.OutputBase(mdFileName)+".pdf")
	args := c.BuildArgs(filepath.Join(workDir, mdFileName), outPath, opts)

	_, stderr, err := c.Runner.Run(c.PandocPath, args...)
	if err != nil {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return "", &ConversionError{File: mdFileName, Detail: detail, Err: err}
	}

	return outPath, nil
}
