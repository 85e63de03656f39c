package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries HTTP state between the steps of one scenario.
type TestContext struct {
	BaseURL    string
	SigningKey string
	Issuer     string
	Audience   string

	client     *http.Client
	adminToken string
	lastStatus int
	lastBody   []byte
	saved      map[string]string
}

// NewTestContext reads the target server from ORGAPI_E2E_BASE_URL and the
// token settings from the same ORGAPI_AUTH__* variables the server uses.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:    envOr("ORGAPI_E2E_BASE_URL", "http://localhost:8080"),
		SigningKey: envOr("ORGAPI_AUTH__JWT_SIGNING_KEY", "e2e-signing-key-0123456789"),
		Issuer:     envOr("ORGAPI_AUTH__ISSUER", "orgapi"),
		Audience:   envOr("ORGAPI_AUTH__AUDIENCE", "orgapi-admin"),
		client:     &http.Client{Timeout: 10 * time.Second},
		saved:      map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.adminToken = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.saved = map[string]string{}
}

func (tc *TestContext) LoginAsAdmin(subject string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": "admin",
		"iss":  tc.Issuer,
		"aud":  tc.Audience,
		"iat":  now.Unix(),
		"exp":  now.Add(5 * time.Minute).Unix(),
		"jti":  fmt.Sprintf("e2e-%d", now.UnixNano()),
	})
	signed, err := token.SignedString([]byte(tc.SigningKey))
	if err != nil {
		return fmt.Errorf("sign admin token: %w", err)
	}
	tc.adminToken = signed
	return nil
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.Do(http.MethodPost, path, body)
}

func (tc *TestContext) GET(path string) error {
	return tc.Do(http.MethodGet, path, nil)
}

func (tc *TestContext) Do(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, strings.TrimRight(tc.BaseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.adminToken)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

// GetResponseField returns a top-level field of the last JSON object response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	value, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", field, tc.lastBody)
	}
	return value, nil
}

func (tc *TestContext) Save(key, value string) {
	tc.saved[key] = value
}

func (tc *TestContext) Saved(key string) (string, error) {
	value, ok := tc.saved[key]
	if !ok {
		return "", fmt.Errorf("nothing saved under %q", key)
	}
	return value, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
