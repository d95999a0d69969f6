package document

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// CheckAndPublishWithCache publishes diagnostics, reusing cached ones.
func (s *Session) CheckAndPublishWithCache(ctx context.Context, rng *Range) (bool, error) {
	return s.CheckAndPublish(ctx, rng, true)
}

// CheckAndPublishWithoutCache checks again and publishes diagnostics.
func (s *Session) CheckAndPublishWithoutCache(ctx context.Context, rng *Range) (bool, error) {
	return s.CheckAndPublish(ctx, rng, false)
}

// CheckAndPublish publishes the diagnostics that do not touch the caret.
// If some were withheld, the full set is published once the caret has
// rested for the publish delay. It reports whether anything was published.
func (s *Session) CheckAndPublish(ctx context.Context, rng *Range, useCache bool) (bool, error) {
	client := s.host.Client()
	if client == nil {
		return false, nil
	}

	if _, err := s.checkAndGetDiagnostics(ctx, rng, useCache); err != nil {
		return false, err
	}

	s.mu.Lock()
	uri := s.snap.URI
	cache, caret := s.diagnostics, copyPosition(s.caret)
	s.mu.Unlock()

	// Invalidated by an edit while checking.
	if cache == nil {
		return false, nil
	}

	visible := diagnosticsNotAtCaret(cache, caret)
	if err := client.PublishDiagnostics(ctx, uri, visible); err != nil {
		return false, err
	}
	publishesTotal.WithLabelValues("immediate").Inc()

	if len(visible) < len(cache) {
		hiddenAtCaret.Add(float64(len(cache) - len(visible)))
		s.scheduleDelayedPublish(ctx, client, uri)
	}
	return true, nil
}

// checkAndGetDiagnostics returns cached diagnostics or converts a fresh
// check result. Diagnostics are cached only for the version they describe.
func (s *Session) checkAndGetDiagnostics(ctx context.Context, rng *Range, useCache bool) ([]Diagnostic, error) {
	s.mu.Lock()
	if useCache && s.diagnostics != nil {
		cached := slices.Clone(s.diagnostics)
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	result, snap, err := s.check(ctx, rng, useCache)
	if err != nil {
		return nil, err
	}

	converter := s.host.Converter()
	diagnostics := make([]Diagnostic, 0, len(result.Matches))
	for _, m := range result.Matches {
		diagnostics = append(diagnostics, converter.ToDiagnostic(m, snap))
	}

	s.mu.Lock()
	if s.snap.Version == snap.Version {
		s.diagnostics = diagnostics
	}
	s.mu.Unlock()

	return diagnostics, nil
}

// diagnosticsNotAtCaret drops diagnostics that intersect the column before
// the caret and the caret itself.
func diagnosticsNotAtCaret(diagnostics []Diagnostic, caret *Position) []Diagnostic {
	if caret == nil {
		return slices.Clone(diagnostics)
	}
	caretRange := Range{
		Start: Position{Line: caret.Line, Character: max(caret.Character-1, 0)},
		End:   *caret,
	}
	visible := make([]Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		if !d.Range.Intersects(caretRange) {
			visible = append(visible, d)
		}
	}
	return visible
}

// scheduleDelayedPublish starts a detached publisher that waits for the
// caret to rest and then publishes whatever diagnostics are cached at that
// moment.
func (s *Session) scheduleDelayedPublish(ctx context.Context, client Client, uri string) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.closed() {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		for {
			wait := s.LastCaretChange().Add(s.publishDelay).Sub(s.now())
			if wait <= 0 {
				break
			}
			timer := time.NewTimer(wait)
			select {
			case <-s.done:
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		if s.closed() {
			return
		}
		diagnostics := s.DiagnosticsCache()
		if diagnostics == nil {
			return
		}
		if err := client.PublishDiagnostics(ctx, uri, diagnostics); err != nil {
			s.logger.Warn("delayed publish failed", slog.String("error", err.Error()))
			return
		}
		publishesTotal.WithLabelValues("delayed").Inc()
	}()
}
