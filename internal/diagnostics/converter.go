package diagnostics

import (
	"strings"

	"github.com/hpungsan/proofd/internal/checker"
	"github.com/hpungsan/proofd/internal/document"
	"github.com/hpungsan/proofd/internal/settings"
)

// Source is the diagnostic source reported to clients.
const Source = "proofd"

var suggestionMarkup = strings.NewReplacer("<suggestion>", "“", "</suggestion>", "”")

// Converter renders rule matches as diagnostics using the current settings.
type Converter struct {
	settings *settings.Manager
}

// NewConverter creates a Converter.
func NewConverter(mgr *settings.Manager) *Converter {
	return &Converter{settings: mgr}
}

// ToDiagnostic implements document.DiagnosticConverter.
func (c *Converter) ToDiagnostic(m checker.RuleMatch, snap *document.Snapshot) document.Diagnostic {
	return document.Diagnostic{
		Range:    snap.RangeOf(m.FromPos, m.ToPos),
		Severity: SeverityOf(c.settings.Current().DiagnosticSeverity),
		Code:     m.RuleID,
		Source:   Source,
		Message:  Message(m),
	}
}

// Message renders the match message, turning <suggestion> markup into
// quotes.
func Message(m checker.RuleMatch) string {
	msg := strings.TrimSpace(suggestionMarkup.Replace(m.Message))
	if msg == "" {
		msg = strings.TrimSpace(m.ShortMessage)
	}
	if msg == "" {
		msg = m.RuleID
	}
	return msg
}

// SeverityOf maps a configured severity to the LSP value. Unknown names
// fall back to information.
func SeverityOf(s settings.Severity) document.DiagnosticSeverity {
	switch s {
	case settings.SeverityError:
		return document.SeverityError
	case settings.SeverityWarning:
		return document.SeverityWarning
	case settings.SeverityHint:
		return document.SeverityHint
	default:
		return document.SeverityInformation
	}
}
