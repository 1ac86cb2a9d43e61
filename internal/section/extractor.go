// Package section splits raw backend output into named, ordered sections
// and scores each (backend, section) pair. Both operations are pure
// string heuristics over immutable inputs, so they are reproducible in
// tests and need no synchronization.
package section

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/lexfuse/lexfuse/pkg/models"
)

// Implicit section names used when no heading applies.
const (
	PreambleSection = "preamble"
	BodySection     = "body"
)

// Heading marker hierarchy, in match priority order. A marker alone is
// not enough: the line must also pass the length and punctuation guards.
var (
	numericHeading  = regexp.MustCompile(`^\s*\d+(\.\d+)*[.)]\s+\S`)
	romanHeading    = regexp.MustCompile(`^\s*[IVXLCDM]+[.)]\s+\S`)
	letteredHeading = regexp.MustCompile(`^\s*[A-Z][.)]\s+\S`)
	markerPrefix    = regexp.MustCompile(`^\s*([0-9IVXLCDM]+(\.[0-9]+)*|[A-Z])[.)]\s+`)
)

// ExtractorConfig tunes heading recognition.
type ExtractorConfig struct {
	// MaxHeadingWords rejects long lines as headings. Quoted citations
	// inside legal text often start with roman numerals; the length and
	// punctuation guards keep them out.
	MaxHeadingWords int
}

// Extractor splits one backend's raw output into ordered sections.
type Extractor struct {
	maxWords int
}

// NewExtractor creates an extractor. A zero MaxHeadingWords defaults to 12.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	maxWords := cfg.MaxHeadingWords
	if maxWords <= 0 {
		maxWords = 12
	}
	return &Extractor{maxWords: maxWords}
}

// Extract scans raw line by line. A recognized heading starts a new
// section that accumulates lines until the next heading. Text before the
// first heading becomes the implicit "preamble" section. If no heading
// is recognized at all, the entire input becomes one "body" section, so
// a successful outcome always yields at least one section.
func Extract(raw string) []models.Section {
	return NewExtractor(ExtractorConfig{}).Extract(raw)
}

// Extract implements the scan described on the package-level Extract.
func (e *Extractor) Extract(raw string) []models.Section {
	lines := strings.Split(raw, "\n")

	var ordered []models.Section
	index := make(map[string]int) // name → position in ordered

	appendText := func(name, heading, text string) {
		if i, ok := index[name]; ok {
			if ordered[i].Text == "" {
				ordered[i].Text = text
			} else if text != "" {
				ordered[i].Text += "\n" + text
			}
			return
		}
		index[name] = len(ordered)
		ordered = append(ordered, models.Section{Name: name, Heading: heading, Text: text})
	}

	current := ""
	currentHeading := ""
	var buf []string
	sawHeading := false

	flush := func() {
		text := strings.Join(buf, "\n")
		buf = buf[:0]
		if current == "" {
			// Preamble only exists if it has content.
			if strings.TrimSpace(text) == "" {
				return
			}
			appendText(PreambleSection, "", strings.TrimRight(text, "\n"))
			return
		}
		appendText(current, currentHeading, strings.TrimSpace(text))
	}

	for _, line := range lines {
		if e.isHeading(line) {
			flush()
			sawHeading = true
			current = normalizeName(line)
			currentHeading = strings.TrimSpace(line)
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if !sawHeading {
		// Fallback: the whole text is one body section, byte for byte.
		return []models.Section{{Name: BodySection, Text: raw}}
	}
	return ordered
}

// isHeading applies the marker hierarchy plus two guards: the line must
// be short, and must not end in sentence punctuation (quoted citations
// frequently look like headings otherwise).
func (e *Extractor) isHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if len(strings.Fields(trimmed)) > e.maxWords {
		return false
	}
	if endsInSentencePunct(trimmed) {
		return false
	}

	if numericHeading.MatchString(trimmed) ||
		romanHeading.MatchString(trimmed) ||
		letteredHeading.MatchString(trimmed) {
		return true
	}
	return isAllCapsLine(trimmed)
}

func endsInSentencePunct(line string) bool {
	switch line[len(line)-1] {
	case '.', '!', '?', ';', ':', ',':
		return true
	}
	return false
}

// isAllCapsLine reports whether the line contains letters and none of
// them are lowercase. Accented capitals count, digits are allowed.
func isAllCapsLine(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// normalizeName derives the canonical section name from a heading line:
// marker stripped, lower-cased, whitespace collapsed.
func normalizeName(line string) string {
	name := markerPrefix.ReplaceAllString(strings.TrimSpace(line), "")
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return BodySection
	}
	return name
}
