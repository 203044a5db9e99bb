package extract

import (
	"regexp"
	"strings"
)

const (
	maxRawTextLen = 500

	// LowConfidenceFloor is the engine confidence below which results are
	// flagged for manual review.
	LowConfidenceFloor = 25.0
)

// Fields is the structured result of heuristic field extraction. Values are
// best-effort and always subject to human confirmation.
type Fields struct {
	Name           string `json:"name"`
	DOB            string `json:"dob"`
	DocumentNumber string `json:"document_number"`
	RawText        string `json:"raw_text,omitempty"`
}

// Empty reports whether no field was extracted (raw text aside).
func (f Fields) Empty() bool {
	return f.Name == "" && f.DOB == "" && f.DocumentNumber == ""
}

// LowConfidence applies the review policy: results from a low-confidence scan
// or with no detected name are returned but flagged so the caller steers the
// user toward manual entry.
func LowConfidence(f Fields, confidence float64) bool {
	return confidence < LowConfidenceFloor || f.Name == ""
}

// Uppercase tokens that appear on documents but are never part of a name.
var boilerplateWords = []string{
	"REPUBLIC", "KINGDOM", "STATES", "NATIONAL", "IDENTITY",
	"DRIVING", "LICENSE", "LICENCE", "DOCUMENT", "PASSPORT",
	"CARD", "EXPIRY", "ISSUED", "VALIDITY", "NATIONALITY",
}

var docNumberBoilerplate = []string{
	"REPUBLIC", "KINGDOM", "STATES", "NATIONAL", "IDENTITY",
	"DRIVING", "LICENSE", "LICENCE", "PASSPORT",
}

var nameLabelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:surname|last\s*name|nom)[:\s]+(.+)`),
	regexp.MustCompile(`(?i)^(?:given\s*names?|first\s*name|pr[eé]nom)[:\s]+(.+)`),
	regexp.MustCompile(`(?i)^(?:full\s*name|name|nom\s*complet)[:\s]+(.+)`),
}

var allCapsNameLine = regexp.MustCompile(`^[A-Z]{2,20}( [A-Z]{2,20}){1,3}$`)

// Ordered first-match-wins. Order carries the precedence semantics, so this
// stays a slice, never a map.
var dobPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:date of birth|birth date|dob|né(?:\(e\))? le|geboren am)[:\s]*(\d{1,2}[./\- ]\d{1,2}[./\- ]\d{2,4})`),
	regexp.MustCompile(`(?i)\b(?:date of birth|birth date|dob)[:\s]*(\d{1,2}\s+[a-z]{3,9}\s+\d{2,4})`),
	regexp.MustCompile(`(?i)\b(?:date of birth|birth date|dob)[:\s]*(\d{4}[./\-]\d{1,2}[./\-]\d{1,2})`),
	regexp.MustCompile(`\b(\d{2}[./\-]\d{2}[./\-]\d{4})\b`),
	regexp.MustCompile(`\b(\d{4}[./\-]\d{2}[./\-]\d{2})\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{4})\b`),
}

var docNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:document|passport|licen[cs]e|card|id)\s*(?:no|nr|number|#)[.:\s]*([A-Z0-9]{6,15})`),
	regexp.MustCompile(`\b([A-Z]{1,2}\d{6,8})\b`),
	regexp.MustCompile(`\b([A-Z0-9]{8,14})\b`),
}

var nameSanitizer = regexp.MustCompile(`[^A-Za-z \-']`)

// ExtractFields turns raw recognized text into a structured field set. Pure
// string processing: same text in, same fields out. The document type hint is
// accepted for parity with the recognition boundary; the heuristics are
// shared across types.
func ExtractFields(text, docType string) Fields {
	_ = docType

	lines := splitLines(text)

	return Fields{
		Name:           strings.TrimSpace(nameSanitizer.ReplaceAllString(extractName(lines), "")),
		DOB:            strings.TrimSpace(extractDOB(text)),
		DocumentNumber: strings.TrimSpace(extractDocumentNumber(text)),
		RawText:        truncate(text, maxRawTextLen),
	}
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if trimmed := strings.TrimSpace(l); len(trimmed) > 1 {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// extractName tries three strategies in strict precedence order: MRZ line,
// labeled fields, then a positional all-caps heuristic.
func extractName(lines []string) string {
	if name := nameFromMRZ(lines); name != "" {
		return name
	}
	if name := nameFromLabels(lines); name != "" {
		return name
	}
	return nameFromCapsLine(lines)
}

// nameFromMRZ parses a machine-readable-zone name line of the form
// SURNAME<<GIVEN<MIDDLE<<<<. Runs of filler collapse to nothing; single '<'
// separators become spaces.
func nameFromMRZ(lines []string) string {
	for _, line := range lines {
		if !strings.Contains(line, "<<") {
			continue
		}
		namePart := strings.Map(func(r rune) rune {
			if (r >= 'A' && r <= 'Z') || r == '<' {
				return r
			}
			return -1
		}, line)
		sep := strings.Index(namePart, "<<")
		if sep <= 0 {
			continue
		}
		surname := namePart[:sep]
		var given []string
		for _, part := range strings.Split(namePart[sep+2:], "<") {
			if part != "" {
				given = append(given, part)
			}
		}
		if len(given) == 0 {
			return surname
		}
		return surname + " " + strings.Join(given, " ")
	}
	return ""
}

func nameFromLabels(lines []string) string {
	for _, line := range lines {
		for _, pattern := range nameLabelPatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if value := strings.TrimSpace(m[1]); len(value) > 2 {
				return value
			}
		}
	}
	return ""
}

// nameFromCapsLine picks the first line of two to four uppercase tokens that
// is not document boilerplate. Typical for the holder line on ID cards.
func nameFromCapsLine(lines []string) string {
	for _, line := range lines {
		if !allCapsNameLine.MatchString(line) {
			continue
		}
		if containsAny(line, boilerplateWords) {
			continue
		}
		return line
	}
	return ""
}

func extractDOB(text string) string {
	for _, pattern := range dobPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// extractDocumentNumber walks the pattern cascade. A candidate containing
// boilerplate or shorter than six characters rejects to the next pattern
// rather than aborting the cascade.
func extractDocumentNumber(text string) string {
	for _, pattern := range docNumberPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.ToUpper(strings.TrimSpace(m[1]))
		if containsAny(candidate, docNumberBoilerplate) || len(candidate) < 6 {
			continue
		}
		return candidate
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
