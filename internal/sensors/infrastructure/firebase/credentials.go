package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauthjwt "golang.org/x/oauth2/jwt"
)

const (
	placeholderKey = "YOUR_PRIVATE_KEY_HERE"
	refreshMargin  = time.Minute
)

var databaseScopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ErrInvalidCredentials is returned when a service account file is unusable.
var ErrInvalidCredentials = errors.New("firebase: invalid service account")

// ServiceAccount is the subset of a Google service account key file checked before use.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`

	raw []byte
}

// LoadServiceAccount reads and validates a service account key file.
func LoadServiceAccount(path string) (ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return ServiceAccount{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := account.Validate(); err != nil {
		return ServiceAccount{}, err
	}
	account.raw = data
	return account, nil
}

// Validate rejects missing or placeholder fields.
func (a ServiceAccount) Validate() error {
	if a.PrivateKey == "" || strings.Contains(a.PrivateKey, placeholderKey) {
		return fmt.Errorf("%w: private_key missing or placeholder", ErrInvalidCredentials)
	}
	if a.ClientEmail == "" || a.ProjectID == "" {
		return fmt.Errorf("%w: client_email or project_id missing", ErrInvalidCredentials)
	}
	return nil
}

// tokenSource hands out the service account access token, refreshed a minute before
// it expires.
type tokenSource struct {
	config *oauthjwt.Config
	ctx    context.Context

	mu     sync.Mutex
	source oauth2.TokenSource
}

func newTokenSource(account ServiceAccount, client *http.Client) (*tokenSource, error) {
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	config, err := google.JWTConfigFromJSON(account.raw, databaseScopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	ts := &tokenSource{
		config: config,
		ctx:    context.WithValue(context.Background(), oauth2.HTTPClient, client),
	}
	ts.reset()
	return ts, nil
}

func (ts *tokenSource) reset() {
	ts.source = oauth2.ReuseTokenSourceWithExpiry(nil, ts.config.TokenSource(ts.ctx), refreshMargin)
}

// authorize sets the bearer header on req.
func (ts *tokenSource) authorize(req *http.Request) error {
	ts.mu.Lock()
	source := ts.source
	ts.mu.Unlock()
	token, err := source.Token()
	if err != nil {
		return fmt.Errorf("firebase: access token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

// invalidate drops the cached token so the next request fetches a new one.
func (ts *tokenSource) invalidate() {
	ts.mu.Lock()
	ts.reset()
	ts.mu.Unlock()
}
