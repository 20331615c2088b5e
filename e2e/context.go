// Package e2e drives a running etatcivil server through its HTTP API with
// godog scenarios. Set E2E_BASE_URL to run it.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext carries HTTP state across the steps of one scenario.
type TestContext struct {
	baseURL string
	client  *http.Client

	lastStatus  int
	lastBody    []byte
	lastHeaders http.Header

	tokens       map[string]string
	vars         map[string]string
	forwardedFor string
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		tokens:  make(map[string]string),
		vars:    make(map[string]string),
	}
}

// Do sends a JSON request as actor ("" for anonymous) and records the response.
func (tc *TestContext) Do(method, path, actor string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tc.tokens[actor]; actor != "" && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if tc.forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", tc.forwardedFor)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	return nil
}

func (tc *TestContext) POST(path, actor string, body any) error {
	return tc.Do(http.MethodPost, path, actor, body)
}

func (tc *TestContext) GET(path, actor string) error {
	return tc.Do(http.MethodGet, path, actor, nil)
}

func (tc *TestContext) PATCH(path, actor string, body any) error {
	return tc.Do(http.MethodPatch, path, actor, body)
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	return tc.lastHeaders.Get(name)
}

// GetResponseField walks a dotted path ("data.user.id") through the last JSON body.
func (tc *TestContext) GetResponseField(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		if doc, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %q not found in %s", path, tc.lastBody)
		}
	}
	return doc, nil
}

func (tc *TestContext) SetToken(actor, token string) {
	tc.tokens[actor] = token
}

func (tc *TestContext) Remember(key, value string) {
	tc.vars[key] = value
}

func (tc *TestContext) Recall(key string) string {
	return tc.vars[key]
}

func (tc *TestContext) SetForwardedFor(ip string) {
	tc.forwardedFor = ip
}
