package document

import (
	"slices"

	"github.com/hpungsan/proofd/internal/checker"
)

// Position is a zero-based line and byte column.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a span between two positions. End is exclusive for edits and
// inclusive for caret intersection tests.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextChangeEvent is one editor edit. A nil Range replaces the whole buffer.
type TextChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// DiagnosticSeverity uses the LSP numbering.
type DiagnosticSeverity int

const (
	SeverityError       DiagnosticSeverity = 1
	SeverityWarning     DiagnosticSeverity = 2
	SeverityInformation DiagnosticSeverity = 3
	SeverityHint        DiagnosticSeverity = 4
)

// Diagnostic is the editor-facing rendering of one rule match.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity"`
	Code     string             `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// CheckResult is the matches and fragments of one check.
type CheckResult = checker.Result

// Snapshot is an immutable view of one document version.
type Snapshot struct {
	URI        string
	LanguageID string
	Version    int
	Text       string

	lineStarts []int
}

// NewSnapshot builds a snapshot and its line index.
func NewSnapshot(uri, languageID string, version int, text string) *Snapshot {
	return &Snapshot{
		URI:        uri,
		LanguageID: languageID,
		Version:    version,
		Text:       text,
		lineStarts: lineStarts(text),
	}
}

// lineStarts returns the offset of every line. "\r\n" counts as a single
// terminator.
func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		}
	}
	return starts
}

// LineCount returns the number of lines, which is one more than the number
// of line terminators.
func (s *Snapshot) LineCount() int {
	return len(s.lineStarts)
}

// LineStarts returns a copy of the line-start table.
func (s *Snapshot) LineStarts() []int {
	return slices.Clone(s.lineStarts)
}

// OffsetOf converts a position to a byte offset. Out-of-range positions are
// clamped; a column never lands inside a line terminator.
func (s *Snapshot) OffsetOf(p Position) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(s.lineStarts) {
		return len(s.Text)
	}

	start := s.lineStarts[p.Line]
	end := len(s.Text)
	if p.Line+1 < len(s.lineStarts) {
		end = s.lineStarts[p.Line+1]
	}
	if end > start && s.Text[end-1] == '\n' {
		end--
	}
	if end > start && s.Text[end-1] == '\r' {
		end--
	}

	switch {
	case p.Character < 0:
		return start
	case p.Character > end-start:
		return end
	default:
		return start + p.Character
	}
}

// PositionOf converts a byte offset to a position, clamping the offset to
// the text.
func (s *Snapshot) PositionOf(offset int) Position {
	offset = max(0, min(offset, len(s.Text)))
	line, found := slices.BinarySearch(s.lineStarts, offset)
	if !found {
		line--
	}
	return Position{Line: line, Character: offset - s.lineStarts[line]}
}

// OffsetsOf converts a range to offsets. An end before the start collapses
// to the start.
func (s *Snapshot) OffsetsOf(r Range) (from, to int) {
	from = s.OffsetOf(r.Start)
	to = max(from, s.OffsetOf(r.End))
	return from, to
}

// RangeOf converts a pair of offsets to a range.
func (s *Snapshot) RangeOf(from, to int) Range {
	return Range{Start: s.PositionOf(from), End: s.PositionOf(to)}
}

// Before reports whether a comes strictly before b.
func (a Position) Before(b Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}

// Intersects reports whether two closed ranges share at least one position.
func (r Range) Intersects(other Range) bool {
	return !r.End.Before(other.Start) && !other.End.Before(r.Start)
}
