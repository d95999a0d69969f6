package document

// nextVersion keeps versions strictly increasing even when the editor
// resends an old number.
func nextVersion(current, requested int) int {
	if requested > current {
		return requested
	}
	return current + 1
}

// ApplyTextChangeEvents applies edits in order. Ranges refer to the buffer
// as it is before each individual event and are clamped, never rejected.
func (s *Session) ApplyTextChangeEvents(version int, events []TextChangeEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lastCaretChange := s.lastCaretChange
	snap := s.snap
	for _, ev := range events {
		snap = s.applyEvent(snap, ev)
	}
	// A batch cannot be attributed to one caret movement.
	if len(events) > 1 {
		s.caret = nil
		s.lastCaretChange = lastCaretChange
	}

	s.snap = NewSnapshot(snap.URI, snap.LanguageID, nextVersion(s.snap.Version, version), snap.Text)
	s.invalidate()
}

// SetText replaces the whole buffer.
func (s *Session) SetText(version int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snap
	s.snap = NewSnapshot(old.URI, old.LanguageID, nextVersion(old.Version, version), text)
	s.setGuessedCaret(guessCaretAfterReplace(old.Text, s.snap))
	s.invalidate()
}

// applyEvent returns the snapshot after ev and updates the caret guess.
// Caller holds s.mu.
func (s *Session) applyEvent(old *Snapshot, ev TextChangeEvent) *Snapshot {
	if ev.Range == nil {
		updated := NewSnapshot(old.URI, old.LanguageID, old.Version, ev.Text)
		s.setGuessedCaret(guessCaretAfterReplace(old.Text, updated))
		return updated
	}

	from, to := old.OffsetsOf(*ev.Range)
	updated := NewSnapshot(old.URI, old.LanguageID, old.Version, old.Text[:from]+ev.Text+old.Text[to:])
	s.setGuessedCaret(guessCaretAfterEdit(updated, from, to, ev.Text))
	return updated
}

// setGuessedCaret stores a caret guess. Caller holds s.mu.
func (s *Session) setGuessedCaret(caret *Position) {
	s.caret = caret
	if caret != nil {
		s.lastCaretChange = s.now()
	}
}
