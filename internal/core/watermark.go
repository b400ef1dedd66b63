package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	watermarkFileName   = "watermark.tex"
	watermarkMaxRunes   = 200
	defaultWatermarkTxt = "DRAFT"
)

// latexEscaper escapes the characters LaTeX treats specially in watermark
// text. A single-pass replacer means earlier escapes are never re-escaped
// by later rules.
var latexEscaper = strings.NewReplacer(
	`\`, `\\`,
	"{", `\{`,
	"}", `\}`,
	"^", `\^{}`,
	"~", `\~{}`,
	"$", `\$`,
	"#", `\#`,
	"%", `\%`,
	"&", `\&`,
	"_", `\_`,
)

// EscapeLatexText makes arbitrary user text safe for a LaTeX text
// directive.
func EscapeLatexText(s string) string {
	return latexEscaper.Replace(s)
}

// WatermarkProvisioner produces the per-job watermark directive file.
// When OverridePath names a readable file its contents are used verbatim;
// otherwise a draftwatermark preamble is synthesized from the user text.
type WatermarkProvisioner struct {
	OverridePath string
}

// Provision writes the watermark directive into the job work directory and
// returns its path. The file is transient: the orchestrator removes it once
// the batch finishes, so it never becomes part of the job's artifacts.
func (p *WatermarkProvisioner) Provision(workDir, text string) (string, error) {
	dest := filepath.Join(workDir, watermarkFileName)

	if p.OverridePath != "" {
		if data, err := os.ReadFile(p.OverridePath); err == nil {
			if err := os.WriteFile(dest, data, 0o644); err != nil {
				return "", fmt.Errorf("failed to copy watermark override: %w", err)
			}
			return dest, nil
		}
	}

	escaped := EscapeLatexText(text)
	if runes := []rune(escaped); len(runes) > watermarkMaxRunes {
		escaped = string(runes[:watermarkMaxRunes])
	}
	if escaped == "" {
		escaped = defaultWatermarkTxt
	}

	var b strings.Builder
	b.WriteString("\\usepackage{draftwatermark}\n")
	fmt.Fprintf(&b, "\\SetWatermarkText{%s}\n", escaped)
	b.WriteString("\\SetWatermarkScale{1.25}\n")
	b.WriteString("\\SetWatermarkColor[gray]{0.85}\n")

	if err := os.WriteFile(dest, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write watermark file: %w", err)
	}
	return dest, nil
}
