// Package xui is an HTTP client for the 3x-ui panel API, the system of
// record for tunnel credentials.
package xui

import (
	"bytes"
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

	"github.com/wiregram/wiregram-server/internal/logger"
	"github.com/wiregram/wiregram-server/internal/model"
)

var _ model.Panel = (*Client)(nil)

const defaultFlow = "xtls-rprx-vision"

type Config struct {
	Host     string
	Username string
	Password string
	BasePort int
	MaxPorts int
	Timeout  time.Duration
	Reality  Reality
}

type Client struct {
	baseURL  string
	username string
	password string
	basePort int
	maxPorts int
	reality  Reality
	http     *http.Client
	logger   *logger.Logger

	mu       sync.Mutex
	loggedIn bool
}

func NewClient(cfg Config, logger *logger.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.Host, "/"),
		username: cfg.Username,
		password: cfg.Password,
		basePort: cfg.BasePort,
		maxPorts: cfg.MaxPorts,
		reality:  cfg.Reality,
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

// apiResponse is the panel's uniform response envelope.
type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// inbound is the panel's listening allocation. Settings and
// StreamSettings arrive as JSON-encoded strings, not objects.
type inbound struct {
	ID             int    `json:"id"`
	Remark         string `json:"remark"`
	Port           int    `json:"port"`
	Protocol       string `json:"protocol"`
	Settings       string `json:"settings"`
	StreamSettings string `json:"streamSettings"`
}

type inboundClient struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Enable     bool   `json:"enable"`
	Flow       string `json:"flow"`
	ExpiryTime int64  `json:"expiryTime"`
}

type inboundSettings struct {
	Clients []inboundClient `json:"clients"`
}

func (c *Client) login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to login to panel: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("panel login failed: %s %s", resp.Status, body)
	}
	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("panel login rejected: %s", env.Msg)
	}

	c.loggedIn = true
	return nil
}

// staleSessionError marks responses that can follow a server-side
// session drop: auth statuses, the login-page redirect body, and
// unsuccessful envelopes. The panel expires cookies on its own
// schedule, so one re-login retry covers all of them.
type staleSessionError struct{ err error }

func (e *staleSessionError) Error() string { return e.err.Error() }
func (e *staleSessionError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, path string, payload any) (*apiResponse, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	env, err := c.attempt(ctx, method, path, payload)
	var stale *staleSessionError
	if !errors.As(err, &stale) {
		return env, err
	}

	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()
	c.logger.Debug("panel call failed, retrying with a fresh session", "path", path, "error", stale.err)
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	env, err = c.attempt(ctx, method, path, payload)
	var again *staleSessionError
	if errors.As(err, &again) {
		return nil, again.err
	}
	return env, err
}

func (c *Client) attempt(ctx context.Context, method, path string, payload any) (*apiResponse, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("panel request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &staleSessionError{fmt.Errorf("panel request failed: %s %s %s", path, resp.Status, raw)}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("panel request failed: %s %s %s", path, resp.Status, raw)
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &staleSessionError{fmt.Errorf("failed to decode panel response: %w", err)}
	}
	if !env.Success {
		return nil, &staleSessionError{fmt.Errorf("panel rejected %s: %s", path, env.Msg)}
	}

	return &env, nil
}

func (c *Client) listInbounds(ctx context.Context) ([]inbound, error) {
	env, err := c.do(ctx, http.MethodGet, "/panel/api/inbounds/list", nil)
	if err != nil {
		return nil, err
	}

	var inbounds []inbound
	if err := json.Unmarshal(env.Obj, &inbounds); err != nil {
		return nil, fmt.Errorf("failed to decode inbound list: %w", err)
	}

	return inbounds, nil
}

// FreePort returns the lowest unused port in [basePort, basePort+maxPorts].
func (c *Client) FreePort(ctx context.Context) (int, error) {
	inbounds, err := c.listInbounds(ctx)
	if err != nil {
		return 0, err
	}

	maxPort := c.basePort + c.maxPorts
	used := make(map[int]bool, len(inbounds))
	for _, ib := range inbounds {
		if ib.Port >= c.basePort && ib.Port <= maxPort {
			used[ib.Port] = true
		}
	}

	for port := c.basePort; port <= maxPort; port++ {
		if !used[port] {
			return port, nil
		}
	}

	return 0, model.ErrNoFreePorts
}

// EnsureInbound finds the inbound by remark or creates it on the given
// port with the panel's reality transport defaults.
func (c *Client) EnsureInbound(ctx context.Context, name string, port int) (int, error) {
	inbounds, err := c.listInbounds(ctx)
	if err != nil {
		return 0, err
	}
	for _, ib := range inbounds {
		if ib.Remark == name {
			c.logger.Debug("inbound already exists", "remark", name, "id", ib.ID)
			return ib.ID, nil
		}
	}

	settings, err := json.Marshal(inboundSettings{Clients: []inboundClient{}})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal inbound settings: %w", err)
	}
	stream, err := c.streamSettings()
	if err != nil {
		return 0, err
	}
	sniffing, err := c.sniffing()
	if err != nil {
		return 0, err
	}
	payload := map[string]any{
		"enable":         true,
		"remark":         name,
		"port":           port,
		"protocol":       "vless",
		"listen":         "",
		"total":          0,
		"expiryTime":     0,
		"settings":       string(settings),
		"streamSettings": stream,
		"sniffing":       sniffing,
	}
	if _, err := c.do(ctx, http.MethodPost, "/panel/api/inbounds/add", payload); err != nil {
		return 0, err
	}

	inbounds, err = c.listInbounds(ctx)
	if err != nil {
		return 0, err
	}
	for _, ib := range inbounds {
		if ib.Remark == name {
			return ib.ID, nil
		}
	}

	return 0, fmt.Errorf("inbound %q not found after creation", name)
}

// findClient locates a client by email across all inbounds.
func (c *Client) findClient(ctx context.Context, email string) (inboundClient, inbound, error) {
	inbounds, err := c.listInbounds(ctx)
	if err != nil {
		return inboundClient{}, inbound{}, err
	}

	for _, ib := range inbounds {
		var settings inboundSettings
		if err := json.Unmarshal([]byte(ib.Settings), &settings); err != nil {
			continue
		}
		for _, cl := range settings.Clients {
			if cl.Email == email {
				return cl, ib, nil
			}
		}
	}

	return inboundClient{}, inbound{}, model.ErrNotFound
}

// CreateClient adds a credential to the inbound. The client id is
// derived from the email, so repeated creation attempts produce the
// same credential and the existing one is returned unchanged.
func (c *Client) CreateClient(ctx context.Context, inboundID int, email string, expiry time.Time) (uuid.UUID, error) {
	existing, _, err := c.findClient(ctx, email)
	if err == nil {
		c.logger.Debug("panel client already exists", "email", email)
		return uuid.Parse(existing.ID)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return uuid.Nil, err
	}

	clientID := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(email))
	settings, err := json.Marshal(inboundSettings{Clients: []inboundClient{{
		ID:         clientID.String(),
		Email:      email,
		Enable:     true,
		Flow:       defaultFlow,
		ExpiryTime: expiry.UnixMilli(),
	}}})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal client settings: %w", err)
	}

	payload := map[string]any{
		"id":       inboundID,
		"settings": string(settings),
	}
	if _, err := c.do(ctx, http.MethodPost, "/panel/api/inbounds/addClient", payload); err != nil {
		return uuid.Nil, err
	}

	return clientID, nil
}

func (c *Client) Client(ctx context.Context, email string) (model.PanelClient, error) {
	cl, ib, err := c.findClient(ctx, email)
	if err != nil {
		return model.PanelClient{}, err
	}

	id, err := uuid.Parse(cl.ID)
	if err != nil {
		return model.PanelClient{}, fmt.Errorf("failed to parse client id: %w", err)
	}

	return model.PanelClient{
		ID:        id,
		Email:     cl.Email,
		InboundID: ib.ID,
		Expiry:    time.UnixMilli(cl.ExpiryTime),
	}, nil
}

func (c *Client) UpdateClientExpiry(ctx context.Context, email string, expiry time.Time) error {
	cl, ib, err := c.findClient(ctx, email)
	if err != nil {
		return err
	}

	cl.Enable = true
	cl.Flow = defaultFlow
	cl.ExpiryTime = expiry.UnixMilli()
	settings, err := json.Marshal(inboundSettings{Clients: []inboundClient{cl}})
	if err != nil {
		return fmt.Errorf("failed to marshal client settings: %w", err)
	}

	payload := map[string]any{
		"id":       ib.ID,
		"settings": string(settings),
	}
	_, err = c.do(ctx, http.MethodPost, "/panel/api/inbounds/updateClient/"+cl.ID, payload)
	return err
}

func (c *Client) DeleteClient(ctx context.Context, email string) error {
	cl, ib, err := c.findClient(ctx, email)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodPost, fmt.Sprintf("/panel/api/inbounds/%d/delClient/%s", ib.ID, cl.ID), struct{}{})
	return err
}

// ConnectionLink derives the vless:// connection string from the
// client's inbound transport parameters.
func (c *Client) ConnectionLink(ctx context.Context, email string) (string, error) {
	cl, ib, err := c.findClient(ctx, email)
	if err != nil {
		return "", err
	}

	var stream struct {
		Network         string `json:"network"`
		Security        string `json:"security"`
		RealitySettings struct {
			ServerNames []string `json:"serverNames"`
			ShortIDs    []string `json:"shortIds"`
			Settings    struct {
				PublicKey   string `json:"publicKey"`
				Fingerprint string `json:"fingerprint"`
				SpiderX     string `json:"spiderX"`
			} `json:"settings"`
		} `json:"realitySettings"`
	}
	if err := json.Unmarshal([]byte(ib.StreamSettings), &stream); err != nil {
		return "", fmt.Errorf("failed to decode stream settings: %w", err)
	}
	if len(stream.RealitySettings.ServerNames) == 0 || len(stream.RealitySettings.ShortIDs) == 0 {
		return "", fmt.Errorf("inbound %d has no reality parameters", ib.ID)
	}

	host, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse panel host: %w", err)
	}

	q := url.Values{}
	q.Set("type", stream.Network)
	q.Set("security", stream.Security)
	q.Set("pbk", stream.RealitySettings.Settings.PublicKey)
	q.Set("fp", stream.RealitySettings.Settings.Fingerprint)
	q.Set("sni", stream.RealitySettings.ServerNames[0])
	q.Set("sid", stream.RealitySettings.ShortIDs[0])
	q.Set("spx", stream.RealitySettings.Settings.SpiderX)
	q.Set("flow", cl.Flow)

	return fmt.Sprintf("vless://%s@%s:%d?%s#%s-%s",
		cl.ID, host.Hostname(), ib.Port, q.Encode(), ib.Remark, cl.Email), nil
}
