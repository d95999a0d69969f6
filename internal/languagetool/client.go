package languagetool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hpungsan/proofd/internal/checker"
	"github.com/hpungsan/proofd/internal/errors"
)

// DefaultTimeout bounds a single request to the server.
const DefaultTimeout = 30 * time.Second

// DefaultRate is the sustained request rate allowed against one server.
const DefaultRate = rate.Limit(10)

// Client checks text against a LanguageTool HTTP server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	flight     singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets the request rate and burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// New creates a client for the server at baseURL (e.g. http://localhost:8081).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(DefaultRate, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type checkResponse struct {
	Matches []struct {
		Message      string `json:"message"`
		ShortMessage string `json:"shortMessage"`
		Offset       int    `json:"offset"`
		Length       int    `json:"length"`
		Sentence     string `json:"sentence"`
		Replacements []struct {
			Value string `json:"value"`
		} `json:"replacements"`
		Rule struct {
			ID       string `json:"id"`
			Category struct {
				ID string `json:"id"`
			} `json:"category"`
		} `json:"rule"`
	} `json:"matches"`
}

// Check implements checker.Engine. Identical concurrent requests share one
// round trip.
func (c *Client) Check(ctx context.Context, text string, opts checker.Options) ([]checker.RuleMatch, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", orDefault(opts.Language, "auto"))
	if opts.MotherTongue != "" {
		form.Set("motherTongue", opts.MotherTongue)
	}
	if len(opts.EnabledRules) > 0 {
		form.Set("enabledRules", strings.Join(opts.EnabledRules, ","))
	}
	if len(opts.DisabledRules) > 0 {
		form.Set("disabledRules", strings.Join(opts.DisabledRules, ","))
	}
	if opts.Picky {
		form.Set("level", "picky")
	}
	key := form.Encode()

	// The flight outlives the caller that started it; others may be waiting.
	ch := c.flight.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
		defer cancel()
		if err := c.limiter.Wait(flightCtx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		return c.check(flightCtx, text, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]checker.RuleMatch)), nil
	}
}

// check runs one request. The caller has already waited for the limiter.
func (c *Client) check(ctx context.Context, text, body string) ([]checker.RuleMatch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/check", strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewEngineUnavailable(c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("languagetool returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	offsets := utf16ToByteOffsets(text)
	matches := make([]checker.RuleMatch, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		replacements := make([]string, 0, len(m.Replacements))
		for _, r := range m.Replacements {
			replacements = append(replacements, r.Value)
		}
		matches = append(matches, checker.RuleMatch{
			RuleID:       m.Rule.ID,
			Category:     m.Rule.Category.ID,
			Message:      m.Message,
			ShortMessage: m.ShortMessage,
			Sentence:     m.Sentence,
			FromPos:      offsets.at(m.Offset),
			ToPos:        offsets.at(m.Offset + m.Length),
			Replacements: replacements,
		})
	}
	return matches, nil
}

// Ready reports whether the server answers.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/languages", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewEngineUnavailable(c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.NewEngineUnavailable(c.baseURL, fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// byteOffsets maps UTF-16 code unit indexes to byte offsets.
type byteOffsets []int

func utf16ToByteOffsets(text string) byteOffsets {
	offsets := make(byteOffsets, 0, len(text)+1)
	for i, r := range text {
		offsets = append(offsets, i)
		if r >= 0x10000 {
			// Second half of a surrogate pair points at the same rune.
			offsets = append(offsets, i)
		}
	}
	return append(offsets, len(text))
}

func (o byteOffsets) at(utf16Index int) int {
	return o[max(0, min(utf16Index, len(o)-1))]
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

var _ checker.Engine = (*Client)(nil)
