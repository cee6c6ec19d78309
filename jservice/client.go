/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package jservice is a client for jService-compatible trivia APIs, which
// serve categories at {base}/categories?count=N and a category with all of
// its clues at {base}/category?id=N.
package jservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Seednode/triviaboard/trivia"
)

const (
	DefaultBaseURL = "https://jservice.io/api/"

	maxBodySize = 8 << 20
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	base       *url.URL
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
	userAgent  string
}

type Option func(*Client)

// WithTimeout bounds each individual request, not the retry sequence.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithAttempts sets the total number of tries per request, including the
// first. Values below one are treated as one.
func WithAttempts(n uint) Option {
	return func(c *Client) {
		c.attempts = max(n, 1)
	}
}

// WithRetryDelay sets the base delay for exponential backoff between tries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.delay = d
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: missing host", baseURL)
	}

	c := &Client{
		base:       u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		attempts:   3,
		delay:      250 * time.Millisecond,
		userAgent:  "triviaboard",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type apiCategory struct {
	ID    int       `json:"id"`
	Title string    `json:"title"`
	Clues []apiClue `json:"clues,omitempty"`
}

type apiClue struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ListCategories returns up to count categories from the API's listing.
func (c *Client) ListCategories(ctx context.Context, count int) ([]trivia.CategorySummary, error) {
	var cats []apiCategory
	if err := c.getJSON(ctx, "categories", url.Values{"count": {strconv.Itoa(count)}}, &cats); err != nil {
		return nil, err
	}

	return lo.Map(cats, func(a apiCategory, _ int) trivia.CategorySummary {
		return trivia.CategorySummary{ID: a.ID, Title: a.Title}
	}), nil
}

// Category returns a category together with all of its clues.
func (c *Client) Category(ctx context.Context, id int) (trivia.CategoryDetail, error) {
	var cat apiCategory
	if err := c.getJSON(ctx, "category", url.Values{"id": {strconv.Itoa(id)}}, &cat); err != nil {
		return trivia.CategoryDetail{}, err
	}

	return trivia.CategoryDetail{
		ID:    cat.ID,
		Title: cat.Title,
		Clues: lo.Map(cat.Clues, func(a apiClue, _ int) trivia.RawClue {
			return trivia.RawClue{ID: a.ID, Question: a.Question, Answer: a.Answer}
		}),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()
	target := u.String()

	return retry.Do(
		func() error {
			return c.fetch(ctx, target, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("n", n).Str("url", target).Msg("quiz-api-retry")
		}),
	)
}

func (c *Client) fetch(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	startTime := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

		return &StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return &decodeError{url: target, err: err}
	}

	log.Debug().Str("url", target).Dur("took", time.Since(startTime)).Msg("quiz-api-fetch")

	return nil
}

type decodeError struct {
	url string
	err error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("GET %s: malformed response: %v", e.url, e.err)
}

func (e *decodeError) Unwrap() error {
	return e.err
}

func retryable(err error) bool {
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	return true
}
