// Package codeforces is a signed, retrying client for the Codeforces read API.
package codeforces

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "https://codeforces.com/api"
	defaultTimeout        = 15 * time.Second
	defaultMaxAttempts    = 3
	defaultRetryDelay     = 500 * time.Millisecond
	defaultRateLimitDelay = time.Second
)

type Options struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	Timeout        time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
	RateLimitDelay time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	// Now and Nonce default to the wall clock and a random 6-digit string.
	Now   func() time.Time
	Nonce func() string
}

type Client struct {
	opts Options
	http *http.Client
	log  *slog.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, ErrNotConfigured
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.RateLimitDelay == 0 {
		opts.RateLimitDelay = defaultRateLimitDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Nonce == nil {
		opts.Nonce = func() string { return fmt.Sprintf("%06d", rand.IntN(1000000)) }
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{opts: opts, http: hc, log: logger}, nil
}

func (c *Client) UserInfo(ctx context.Context, handle string) (*User, error) {
	var users []User
	if err := c.call(ctx, "user.info", url.Values{"handles": {handle}}, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, &APIError{Method: "user.info", Comment: "handles: User with handle " + handle + " not found", kind: ErrHandleNotFound}
	}
	return &users[0], nil
}

// UserStatus returns submissions newest first.
func (c *Client) UserStatus(ctx context.Context, handle string, from, count int) ([]Submission, error) {
	params := url.Values{"handle": {handle}}
	if from > 0 {
		params.Set("from", strconv.Itoa(from))
	}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	var subs []Submission
	if err := c.call(ctx, "user.status", params, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *Client) UserRating(ctx context.Context, handle string) ([]RatingChange, error) {
	var changes []RatingChange
	if err := c.call(ctx, "user.rating", url.Values{"handle": {handle}}, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

func (c *Client) ContestList(ctx context.Context, gym bool) ([]Contest, error) {
	var contests []Contest
	if err := c.call(ctx, "contest.list", url.Values{"gym": {strconv.FormatBool(gym)}}, &contests); err != nil {
		return nil, err
	}
	return contests, nil
}

func (c *Client) ContestStandings(ctx context.Context, contestID, from, count int) (*Standings, error) {
	params := url.Values{
		"contestId": {strconv.Itoa(contestID)},
		"from":      {strconv.Itoa(from)},
		"count":     {strconv.Itoa(count)},
	}
	var st Standings
	if err := c.call(ctx, "contest.standings", params, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		result, err := c.do(ctx, method, params)
		if err == nil {
			if err := json.Unmarshal(result, out); err != nil {
				return fmt.Errorf("codeforces %s: decode result: %w", method, err)
			}
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if attempt == c.opts.MaxAttempts {
			break
		}
		delay := c.opts.RetryDelay
		if errors.Is(err, ErrRateLimited) {
			delay = c.opts.RateLimitDelay * time.Duration(attempt)
		}
		c.log.Warn("Codeforces call failed, retrying",
			"method", method, "attempt", attempt, "delay", delay, "error", err)
		if err := sleepCtx(ctx, delay); err != nil {
			return fmt.Errorf("codeforces %s: %w", method, err)
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrAPIUnavailable, method, c.opts.MaxAttempts, lastErr)
}

// do performs one signed request and returns the raw result of an OK envelope.
func (c *Client) do(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	query := c.sign(method, params)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.opts.BaseURL+"/"+method+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("codeforces %s: build request: %w", method, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("codeforces %s: %w", method, ctx.Err())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s timed out: %v", ErrTransport, method, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrTransport, method, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s returned 429", ErrRateLimited, method)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Status == "" {
		return nil, fmt.Errorf("%w: %s returned HTTP %d without a valid envelope", ErrTransport, method, resp.StatusCode)
	}
	if env.Status == "OK" {
		return env.Result, nil
	}
	return nil, classify(method, env.Comment)
}

func classify(method, comment string) error {
	lower := strings.ToLower(comment)
	switch {
	case strings.Contains(lower, "call limit exceeded"):
		return fmt.Errorf("%w: %s: %s", ErrRateLimited, method, comment)
	case strings.Contains(lower, "not found"):
		return &APIError{Method: method, Comment: comment, kind: ErrHandleNotFound}
	default:
		return &APIError{Method: method, Comment: comment, kind: ErrInvalidParameter}
	}
}

// sign returns the encoded query string including apiKey, time and apiSig.
func (c *Client) sign(method string, params url.Values) string {
	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{k, v})
		}
	}
	pairs = append(pairs,
		pair{"apiKey", c.opts.APIKey},
		pair{"time", strconv.FormatInt(c.opts.Now().Unix(), 10)},
	)
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	raw := make([]string, len(pairs))
	for i, p := range pairs {
		raw[i] = p.k + "=" + p.v
	}
	canonical := strings.Join(raw, "&")

	nonce := c.opts.Nonce()
	sum := sha512.Sum512([]byte(nonce + "/" + method + "?" + canonical + "#" + c.opts.APISecret))

	q := url.Values{}
	for _, p := range pairs {
		q.Add(p.k, p.v)
	}
	q.Set("apiSig", nonce+hex.EncodeToString(sum[:]))
	return q.Encode()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
