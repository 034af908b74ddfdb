// Package fetcher talks to the campus utility portal that reports the room's
// remaining electricity balance.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrUnauthorized is returned when the portal rejects a request even after a
// fresh login.
var ErrUnauthorized = errors.New("unauthorized")

// LoginError reports a rejected login. It is not retryable.
type LoginError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("login rejected (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("login rejected (status %d, code %d)", e.StatusCode, e.Code)
}

// Config holds portal settings.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// MinInterval is the minimum spacing between requests to the portal.
	MinInterval time.Duration
}

// Client fetches readings, logging in on demand and re-logging in once when
// the session expires. It is safe for concurrent use.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter
	now      func() time.Time

	mu       sync.Mutex
	loggedIn bool
}

// Option customizes a Client.
type Option func(*Client)

// WithClock replaces time.Now for reading timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a portal client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("service url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse service url: %w", err)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("username and password are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout, Jar: jar},
		// Burst of two lets a login and the following fetch go out together.
		limiter: rate.NewLimiter(limit, 2),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Code    int             `json:"e"`
	Message string          `json:"m"`
	Data    json.RawMessage `json:"d"`
}

type bedroom struct {
	RetCode         int             `json:"retcode"`
	Msg             string          `json:"msg"`
	RemainingEnergy decimal.Decimal `json:"sydl"`
	RemainingMoney  decimal.Decimal `json:"syje"`
	MeterRoomID     string          `json:"dffjbh"`
	RoomName        string          `json:"roomName"`
	RoomID          string          `json:"roomId"`
	BuildingID      string          `json:"buiId"`
	CampusID        string          `json:"areaid"`
	RoomNumber      string          `json:"fjh"`
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	c.loggedIn = false
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &LoginError{StatusCode: resp.StatusCode, Message: readSnippet(resp.Body)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if env.Code != 0 {
		return &LoginError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	c.loggedIn = true
	return nil
}

// Fetch returns the current reading. A nil reading with a nil error means the
// portal had no data for the room.
func (c *Client) Fetch(ctx context.Context) (*model.Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	r, err := c.fetch(ctx)
	if !errors.Is(err, ErrUnauthorized) {
		return r, err
	}

	// Session expired; log in again and retry once.
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	return c.fetch(ctx)
}

func (c *Client) fetch(ctx context.Context) (*model.Reading, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/site/bedroom", nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.loggedIn = false
		return nil, fmt.Errorf("fetch returned status %d: %w", resp.StatusCode, ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode fetch response: %w", err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("portal error %d: %s", env.Code, env.Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}

	var b bedroom
	if err := json.Unmarshal(env.Data, &b); err != nil {
		return nil, fmt.Errorf("decode bedroom data: %w", err)
	}
	if b.RetCode != 0 {
		return nil, fmt.Errorf("portal retcode %d: %s", b.RetCode, b.Msg)
	}

	return &model.Reading{
		ID:              uuid.New().String(),
		RemainingMoney:  b.RemainingMoney,
		RemainingEnergy: b.RemainingEnergy,
		MeterRoomID:     b.MeterRoomID,
		RoomDisplayName: b.RoomName,
		RoomID:          b.RoomID,
		BuildingID:      b.BuildingID,
		CampusID:        b.CampusID,
		RoomNumber:      b.RoomNumber,
		Timestamp:       c.now(),
	}, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
