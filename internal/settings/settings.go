package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Severity is the configured diagnostic severity name.
type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
	SeverityHint        Severity = "hint"
)

// CheckFrequency controls when documents are checked automatically.
type CheckFrequency string

const (
	CheckOnEdit   CheckFrequency = "edit"   // check after open and every change
	CheckOnSave   CheckFrequency = "save"   // check after open and every save
	CheckManually CheckFrequency = "manual" // only explicit check requests
)

// DefaultEnabled lists the language IDs checked when "enabled" is true or unset.
var DefaultEnabled = []string{
	"gitcommit", "html", "latex", "markdown", "org", "plaintext", "restructuredtext", "text",
}

// HiddenFalsePositive hides matches of Rule whose sentence matches the
// Sentence regular expression.
type HiddenFalsePositive struct {
	Rule     string `json:"rule"`
	Sentence string `json:"sentence"`
}

// Settings is one immutable settings value. Per-language lists are keyed by
// language short code (e.g. "en-US").
type Settings struct {
	Enabled                         []string
	Language                        string
	Dictionary                      map[string][]string
	DisabledRules                   map[string][]string
	EnabledRules                    map[string][]string
	HiddenFalsePositives            map[string][]HiddenFalsePositive
	DiagnosticSeverity              Severity
	CheckFrequency                  CheckFrequency
	LanguageToolHTTPServerURI       string
	MotherTongue                    string
	EnablePickyRules                bool
	ClearDiagnosticsWhenClosingFile bool
}

// Default returns the settings used before any configuration was applied.
func Default() Settings {
	return Settings{
		Enabled:                         slices.Clone(DefaultEnabled),
		Language:                        "en-US",
		Dictionary:                      map[string][]string{},
		DisabledRules:                   map[string][]string{},
		EnabledRules:                    map[string][]string{},
		HiddenFalsePositives:            map[string][]HiddenFalsePositive{},
		DiagnosticSeverity:              SeverityInformation,
		CheckFrequency:                  CheckOnEdit,
		ClearDiagnosticsWhenClosingFile: true,
	}
}

// rawSettings mirrors the editor-side JSON section.
type rawSettings struct {
	Enabled                         json.RawMessage              `json:"enabled"`
	Language                        *string                      `json:"language"`
	Dictionary                      map[string][]string          `json:"dictionary"`
	DisabledRules                   map[string][]string          `json:"disabledRules"`
	EnabledRules                    map[string][]string          `json:"enabledRules"`
	HiddenFalsePositives            map[string][]json.RawMessage `json:"hiddenFalsePositives"`
	DiagnosticSeverity              *string                      `json:"diagnosticSeverity"`
	CheckFrequency                  *string                      `json:"checkFrequency"`
	LanguageToolHTTPServerURI       *string                      `json:"languageToolHttpServerUri"`
	ClearDiagnosticsWhenClosingFile *bool                        `json:"clearDiagnosticsWhenClosingFile"`
	AdditionalRules                 struct {
		MotherTongue     *string `json:"motherTongue"`
		EnablePickyRules *bool   `json:"enablePickyRules"`
	} `json:"additionalRules"`
}

// rawWorkspaceSettings mirrors the workspace-specific JSON.
type rawWorkspaceSettings struct {
	Dictionary           map[string][]string          `json:"dictionary"`
	DisabledRules        map[string][]string          `json:"disabledRules"`
	EnabledRules         map[string][]string          `json:"enabledRules"`
	HiddenFalsePositives map[string][]json.RawMessage `json:"hiddenFalsePositives"`
}

// Parse builds settings from the editor configuration section and the
// optional workspace-specific configuration. Either may be empty or null.
func Parse(config, workspaceConfig json.RawMessage) (Settings, error) {
	s := Default()

	var raw rawSettings
	if !isEmptyJSON(config) {
		if err := json.Unmarshal(config, &raw); err != nil {
			return s, fmt.Errorf("parse configuration: %w", err)
		}
	}
	var ws rawWorkspaceSettings
	if !isEmptyJSON(workspaceConfig) {
		if err := json.Unmarshal(workspaceConfig, &ws); err != nil {
			return s, fmt.Errorf("parse workspace configuration: %w", err)
		}
	}

	enabled, err := parseEnabled(raw.Enabled)
	if err != nil {
		return s, err
	}
	s.Enabled = enabled

	if raw.Language != nil && strings.TrimSpace(*raw.Language) != "" {
		s.Language = strings.TrimSpace(*raw.Language)
	}
	if raw.DiagnosticSeverity != nil {
		severity, err := ParseSeverity(*raw.DiagnosticSeverity)
		if err != nil {
			return s, err
		}
		s.DiagnosticSeverity = severity
	}
	if raw.CheckFrequency != nil {
		freq, err := ParseCheckFrequency(*raw.CheckFrequency)
		if err != nil {
			return s, err
		}
		s.CheckFrequency = freq
	}
	if raw.LanguageToolHTTPServerURI != nil {
		s.LanguageToolHTTPServerURI = strings.TrimRight(strings.TrimSpace(*raw.LanguageToolHTTPServerURI), "/")
	}
	if raw.ClearDiagnosticsWhenClosingFile != nil {
		s.ClearDiagnosticsWhenClosingFile = *raw.ClearDiagnosticsWhenClosingFile
	}
	if raw.AdditionalRules.MotherTongue != nil {
		s.MotherTongue = strings.TrimSpace(*raw.AdditionalRules.MotherTongue)
	}
	if raw.AdditionalRules.EnablePickyRules != nil {
		s.EnablePickyRules = *raw.AdditionalRules.EnablePickyRules
	}

	s.Dictionary = mergeLists(raw.Dictionary, ws.Dictionary)
	s.DisabledRules = mergeLists(raw.DisabledRules, ws.DisabledRules)
	s.EnabledRules = mergeLists(raw.EnabledRules, ws.EnabledRules)

	s.HiddenFalsePositives = map[string][]HiddenFalsePositive{}
	for _, source := range []map[string][]json.RawMessage{raw.HiddenFalsePositives, ws.HiddenFalsePositives} {
		for lang, entries := range source {
			for _, entry := range entries {
				hfp, err := parseHiddenFalsePositive(entry)
				if err != nil {
					return s, err
				}
				if !slices.Contains(s.HiddenFalsePositives[lang], hfp) {
					s.HiddenFalsePositives[lang] = append(s.HiddenFalsePositives[lang], hfp)
				}
			}
		}
	}

	return s, nil
}

// parseEnabled accepts either a boolean or a list of language IDs.
func parseEnabled(raw json.RawMessage) ([]string, error) {
	if isEmptyJSON(raw) {
		return slices.Clone(DefaultEnabled), nil
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		if flag {
			return slices.Clone(DefaultEnabled), nil
		}
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("enabled must be a boolean or a list of language IDs")
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// parseHiddenFalsePositive accepts an object or a JSON-encoded object string.
func parseHiddenFalsePositive(raw json.RawMessage) (HiddenFalsePositive, error) {
	var hfp HiddenFalsePositive
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	if err := json.Unmarshal(raw, &hfp); err != nil {
		return hfp, fmt.Errorf("invalid hidden false positive %s: %w", string(raw), err)
	}
	if hfp.Rule == "" {
		return hfp, fmt.Errorf("hidden false positive %s has no rule", string(raw))
	}
	return hfp, nil
}

// mergeLists concatenates per-language lists in order. An entry "-word"
// removes "word" from what came before it.
func mergeLists(sources ...map[string][]string) map[string][]string {
	result := map[string][]string{}
	for _, source := range sources {
		for _, lang := range slices.Sorted(maps.Keys(source)) {
			list := result[lang]
			for _, entry := range source[lang] {
				entry = strings.TrimSpace(entry)
				switch {
				case entry == "":
				case strings.HasPrefix(entry, "-"):
					list = slices.DeleteFunc(list, func(s string) bool { return s == entry[1:] })
				case !slices.Contains(list, entry):
					list = append(list, entry)
				}
			}
			result[lang] = list
		}
	}
	return result
}

// ParseSeverity validates a severity name.
func ParseSeverity(name string) (Severity, error) {
	switch s := Severity(strings.ToLower(strings.TrimSpace(name))); s {
	case SeverityError, SeverityWarning, SeverityInformation, SeverityHint:
		return s, nil
	case "info":
		return SeverityInformation, nil
	default:
		return "", fmt.Errorf("unknown diagnostic severity %q", name)
	}
}

// ParseCheckFrequency validates a check frequency name.
func ParseCheckFrequency(name string) (CheckFrequency, error) {
	switch f := CheckFrequency(strings.ToLower(strings.TrimSpace(name))); f {
	case CheckOnEdit, CheckOnSave, CheckManually:
		return f, nil
	default:
		return "", fmt.Errorf("unknown check frequency %q", name)
	}
}

// IsEnabled reports whether documents with the given language ID are checked.
func (s Settings) IsEnabled(languageID string) bool {
	return slices.Contains(s.Enabled, languageID)
}

// DictionaryFor returns the effective dictionary for a language.
func (s Settings) DictionaryFor(lang string) map[string]bool {
	words := make(map[string]bool, len(s.Dictionary[lang]))
	for _, w := range s.Dictionary[lang] {
		words[w] = true
	}
	return words
}

// DisabledRulesFor returns the disabled rule IDs for a language.
func (s Settings) DisabledRulesFor(lang string) []string {
	return slices.Clone(s.DisabledRules[lang])
}

// EnabledRulesFor returns the explicitly enabled rule IDs for a language.
func (s Settings) EnabledRulesFor(lang string) []string {
	return slices.Clone(s.EnabledRules[lang])
}

// HiddenFalsePositivesFor returns the hidden false positives for a language.
func (s Settings) HiddenFalsePositivesFor(lang string) []HiddenFalsePositive {
	return slices.Clone(s.HiddenFalsePositives[lang])
}

// Differences lists the names of the fields that differ between a and b.
func Differences(a, b Settings) []string {
	var diff []string
	if !slices.Equal(a.Enabled, b.Enabled) {
		diff = append(diff, "enabled")
	}
	if a.Language != b.Language {
		diff = append(diff, "language")
	}
	if !maps.EqualFunc(a.Dictionary, b.Dictionary, slices.Equal) {
		diff = append(diff, "dictionary")
	}
	if !maps.EqualFunc(a.DisabledRules, b.DisabledRules, slices.Equal) {
		diff = append(diff, "disabledRules")
	}
	if !maps.EqualFunc(a.EnabledRules, b.EnabledRules, slices.Equal) {
		diff = append(diff, "enabledRules")
	}
	if !maps.EqualFunc(a.HiddenFalsePositives, b.HiddenFalsePositives, slices.Equal) {
		diff = append(diff, "hiddenFalsePositives")
	}
	if a.DiagnosticSeverity != b.DiagnosticSeverity {
		diff = append(diff, "diagnosticSeverity")
	}
	if a.CheckFrequency != b.CheckFrequency {
		diff = append(diff, "checkFrequency")
	}
	if a.LanguageToolHTTPServerURI != b.LanguageToolHTTPServerURI {
		diff = append(diff, "languageToolHttpServerUri")
	}
	if a.MotherTongue != b.MotherTongue {
		diff = append(diff, "motherTongue")
	}
	if a.EnablePickyRules != b.EnablePickyRules {
		diff = append(diff, "enablePickyRules")
	}
	if a.ClearDiagnosticsWhenClosingFile != b.ClearDiagnosticsWhenClosingFile {
		diff = append(diff, "clearDiagnosticsWhenClosingFile")
	}
	return diff
}

// engineFields are the fields an engine is constructed from; everything
// else is passed per check.
var engineFields = []string{"languageToolHttpServerUri"}

// EngineDifferences lists the differences that require rebuilding the engine.
func EngineDifferences(a, b Settings) []string {
	var diff []string
	for _, name := range Differences(a, b) {
		if slices.Contains(engineFields, name) {
			diff = append(diff, name)
		}
	}
	return diff
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
