package document

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/proofd/internal/checker"
	"github.com/hpungsan/proofd/internal/errors"
)

// ConfigurationSection is the configuration section fetched before checks.
const ConfigurationSection = "proofd"

// progressToken identifies one check's progress notifications.
type progressToken struct {
	URI       string `json:"uri"`
	Operation string `json:"operation"`
	UUID      string `json:"uuid"`
}

// CheckWithCache returns the cached result if there is one.
func (s *Session) CheckWithCache(ctx context.Context, rng *Range) (CheckResult, error) {
	return s.Check(ctx, rng, true)
}

// CheckWithoutCache always runs the checker.
func (s *Session) CheckWithoutCache(ctx context.Context, rng *Range) (CheckResult, error) {
	return s.Check(ctx, rng, false)
}

// Check fetches configuration, applies it, runs the checker and caches the
// result for the version it was computed from. Without a client the result
// is empty and no error is returned. Concurrent uncached checks are not
// serialized; for the same version the last one to finish is cached.
func (s *Session) Check(ctx context.Context, rng *Range, useCache bool) (CheckResult, error) {
	result, _, err := s.check(ctx, rng, useCache)
	return result, err
}

// check also returns the snapshot the result describes.
func (s *Session) check(ctx context.Context, rng *Range, useCache bool) (CheckResult, *Snapshot, error) {
	s.mu.Lock()
	snap, cached := s.snap, s.result
	s.mu.Unlock()

	if useCache && cached != nil {
		checksTotal.WithLabelValues("cached").Inc()
		return *cached, snap, nil
	}

	client := s.host.Client()
	if client == nil {
		checksTotal.WithLabelValues("no_client").Inc()
		return CheckResult{Matches: []checker.RuleMatch{}, Fragments: []checker.Fragment{}}, snap, nil
	}

	ctx, span := startCheckSpan(ctx, snap, useCache)
	defer span.End()
	start := time.Now()

	result, err := s.runCheck(ctx, client, snap, rng)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("check failed", slog.Int("version", snap.Version), slog.String("error", err.Error()))
	} else {
		s.mu.Lock()
		if s.snap.Version == snap.Version {
			s.result = &result
			s.diagnostics = nil
		} else {
			outcome = "stale"
		}
		s.mu.Unlock()
	}

	setCheckSpanResult(span, outcome, len(result.Matches))
	checksTotal.WithLabelValues(outcome).Inc()
	checkDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if outcome == "stale" {
		s.logger.Debug("discarding result for superseded version", slog.Int("version", snap.Version))
	}
	return result, snap, err
}

func (s *Session) runCheck(ctx context.Context, client Client, snap *Snapshot, rng *Range) (CheckResult, error) {
	if token := s.beginProgress(ctx, client, snap.URI); token != nil {
		defer s.endProgress(ctx, client, token)
	}

	config, workspaceConfig, err := s.fetchConfiguration(ctx, client, snap.URI)
	if err != nil {
		return CheckResult{}, errors.NewCheckFailed("configuration", err)
	}
	if err := s.host.Settings().Apply(config, workspaceConfig); err != nil {
		return CheckResult{}, errors.NewCheckFailed("settings", err)
	}

	req := checker.Request{URI: snap.URI, LanguageID: snap.LanguageID, Text: snap.Text}
	if rng != nil {
		from, to := snap.OffsetsOf(*rng)
		req.Span = &checker.Span{Start: from, End: to}
	}
	result, err := s.host.Checker().Check(ctx, req)
	if err != nil {
		return CheckResult{}, errors.NewCheckFailed("check", err)
	}
	return result, nil
}

// beginProgress opens a progress indication. It returns nil when the client
// has no progress support or refused the token.
func (s *Session) beginProgress(ctx context.Context, client Client, uri string) json.RawMessage {
	if !client.Capabilities().WorkDoneProgress {
		return nil
	}
	token, err := json.Marshal(progressToken{
		URI:       uri,
		Operation: "checkDocument",
		UUID:      ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String(),
	})
	if err != nil {
		return nil
	}
	if err := client.CreateProgress(ctx, token); err != nil {
		s.logger.Debug("progress unavailable", slog.String("error", err.Error()))
		return nil
	}
	if err := client.NotifyProgress(ctx, token, Progress{Kind: ProgressBegin, Title: "Checking " + uri}); err != nil {
		s.logger.Debug("progress begin failed", slog.String("error", err.Error()))
	}
	return token
}

func (s *Session) endProgress(ctx context.Context, client Client, token json.RawMessage) {
	if err := client.NotifyProgress(context.WithoutCancel(ctx), token, Progress{Kind: ProgressEnd}); err != nil {
		s.logger.Debug("progress end failed", slog.String("error", err.Error()))
	}
}

// fetchConfiguration fetches the document configuration and, when the
// client supports it, the workspace-specific configuration concurrently.
func (s *Session) fetchConfiguration(ctx context.Context, client Client, uri string) (config, workspaceConfig json.RawMessage, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		config, err = client.FetchConfiguration(gctx, uri, ConfigurationSection)
		return err
	})
	if client.Capabilities().WorkspaceConfiguration {
		g.Go(func() error {
			var err error
			workspaceConfig, err = client.FetchWorkspaceConfiguration(gctx, uri)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return config, workspaceConfig, nil
}
