// Package firebase publishes snapshots to a Firebase Realtime Database over its REST API
// and streams force commands from it.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agro-simulator/internal/sensors/application"
	sensors "agro-simulator/internal/sensors/domain"
)

const (
	DefaultDatabaseURL  = "https://utfpr-iot-trabalho-final-default-rtdb.firebaseio.com"
	DefaultSensorsPath  = "/agro/algodao/sensores"
	DefaultCommandsPath = "/agro/algodao/comandos"

	defaultReconnectDelay = 5 * time.Second
)

// ErrPermissionDenied is returned when the database rules reject a request.
var ErrPermissionDenied = errors.New("firebase: permission denied")

// Config configures the client.
type Config struct {
	DatabaseURL     string
	SensorsPath     string
	CommandsPath    string
	CredentialsFile string
	ReconnectDelay  time.Duration
	HTTPClient      *http.Client
}

// Client is a Realtime Database REST client implementing application.Publisher.
type Client struct {
	baseURL        string
	sensorsPath    string
	commandsPath   string
	tokens         *tokenSource
	client         *http.Client
	streamClient   *http.Client
	reconnectDelay time.Duration
	logger         *log.Logger
}

var _ application.Publisher = (*Client)(nil)

// NewClient constructs a client. Unusable credentials switch it to unauthenticated
// development mode.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDatabaseURL
	}
	if cfg.SensorsPath == "" {
		cfg.SensorsPath = DefaultSensorsPath
	}
	if cfg.CommandsPath == "" {
		cfg.CommandsPath = DefaultCommandsPath
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if _, err := url.Parse(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("firebase: invalid database url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		baseURL:        strings.TrimRight(cfg.DatabaseURL, "/"),
		sensorsPath:    normalizePath(cfg.SensorsPath),
		commandsPath:   normalizePath(cfg.CommandsPath),
		client:         httpClient,
		streamClient:   &http.Client{Transport: httpClient.Transport},
		reconnectDelay: cfg.ReconnectDelay,
		logger:         logger,
	}

	account, err := LoadServiceAccount(cfg.CredentialsFile)
	if err == nil {
		c.tokens, err = newTokenSource(account, httpClient)
	}
	if err != nil {
		logger.Printf("firebase: credentials unavailable: %v", err)
		logger.Printf("firebase: WARNING development mode, requests are unauthenticated; database rules must allow public read/write")
		return c, nil
	}
	logger.Printf("firebase: service account project=%s email=%s", account.ProjectID, account.ClientEmail)
	return c, nil
}

// DevMode reports whether the client runs without credentials.
func (c *Client) DevMode() bool { return c.tokens == nil }

// TestConnection performs a shallow read of the sensors node.
func (c *Client) TestConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("shallow", "true")
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, c.sensorsPath, query, nil, &out); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			c.logger.Printf("firebase: database rules denied access to %s; for development set rules to {\"rules\":{\".read\":true,\".write\":true}}", c.sensorsPath)
		}
		return err
	}
	c.logger.Printf("firebase: connection ok dev_mode=%v", c.DevMode())
	return nil
}

// PublishSnapshot merges the snapshot into the sensors node; painel_forcado is left alone.
func (c *Client) PublishSnapshot(ctx context.Context, snapshot sensors.Snapshot) error {
	return c.doJSON(ctx, http.MethodPatch, c.sensorsPath, nil, snapshot.Fields(), nil)
}

// SetOverlay writes the forced panel record.
func (c *Client) SetOverlay(ctx context.Context, overlay sensors.PanelOverlay) error {
	return c.doJSON(ctx, http.MethodPut, c.overlayPath(), nil, overlay, nil)
}

// ClearOverlay removes the forced panel record.
func (c *Client) ClearOverlay(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, c.overlayPath(), nil, nil, nil)
}

func (c *Client) overlayPath() string {
	return c.sensorsPath + "/" + sensors.KeyOverlay
}

func (c *Client) endpoint(path string, query url.Values) string {
	endpoint := c.baseURL + path + ".json"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return endpoint
}

// authorize adds the access token header; dev mode sends requests unauthenticated.
func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	return c.tokens.authorize(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return err
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("firebase: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := statusError(method, path, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(method, path string, resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s %s: %s", ErrPermissionDenied, method, path, strings.TrimSpace(string(data)))
	}
	return fmt.Errorf("firebase: %s %s status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
}

func normalizePath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return ""
	}
	return "/" + path
}
