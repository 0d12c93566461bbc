package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"consentbroker/internal/consent/models"
	jwttoken "consentbroker/internal/jwt_token"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	Signer           *jwttoken.JWTService
	LastResponse     *http.Response
	LastResponseBody []byte

	token    string
	aliases  map[string]string
	consents map[string]string
}

// NewTestContext creates a new test context against baseURL. Tokens are
// signed with signingKey, which must match the server's JWT_SIGNING_KEY.
func NewTestContext(baseURL, signingKey string) *TestContext {
	return &TestContext{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Signer:   jwttoken.NewJWTService(signingKey, "consentbroker", time.Hour),
		aliases:  make(map[string]string),
		consents: make(map[string]string),
	}
}

// AuthenticateAs signs a token for subject and uses it on later requests.
func (tc *TestContext) AuthenticateAs(subject string, role models.Role) error {
	token, err := tc.Signer.Sign(subject, role, time.Now())
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	tc.token = token
	return nil
}

// ClearAuth drops the bearer token.
func (tc *TestContext) ClearAuth() {
	tc.token = ""
}

// Do sends a request with the current bearer token and stores the response.
func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a top-level field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	return strings.Contains(string(tc.LastResponseBody), text)
}

// Alias maps a scenario name such as "Olivia" onto a directory ID.
func (tc *TestContext) Alias(name string) (string, error) {
	if v, ok := tc.aliases[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown name %q", name)
}

func (tc *TestContext) SetAlias(name, value string) {
	tc.aliases[name] = value
}

// RememberConsent records the consent ID last seen for an item name.
func (tc *TestContext) RememberConsent(item, consentID string) {
	tc.consents[item] = consentID
}

func (tc *TestContext) ConsentFor(item string) (string, error) {
	if v, ok := tc.consents[item]; ok {
		return v, nil
	}
	return "", fmt.Errorf("no consent seen for item %q", item)
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}
