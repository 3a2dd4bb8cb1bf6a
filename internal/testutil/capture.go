package testutil

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Capture represents a captured HTTP request with timestamp.
type Capture struct {
	Method      string
	Path        string
	Headers     http.Header
	Body        []byte
	ContentType string
	Timestamp   time.Time
}

// APIMethod returns the last path segment, the API method name.
func (c *Capture) APIMethod() string {
	if i := strings.LastIndexByte(c.Path, '/'); i >= 0 {
		return c.Path[i+1:]
	}
	return c.Path
}

// AssertPath verifies the request path.
func (c *Capture) AssertPath(t *testing.T, expected string) {
	t.Helper()
	assert.Equal(t, expected, c.Path, "unexpected path")
}

// AssertMethod verifies the HTTP method.
func (c *Capture) AssertMethod(t *testing.T, expected string) {
	t.Helper()
	assert.Equal(t, expected, c.Method, "unexpected method")
}

// AssertContentType verifies the Content-Type header contains expected value.
func (c *Capture) AssertContentType(t *testing.T, expected string) {
	t.Helper()
	assert.Contains(t, c.ContentType, expected, "unexpected content-type")
}

// AssertHeaderExists verifies a header exists (with any value).
func (c *Capture) AssertHeaderExists(t *testing.T, key string) {
	t.Helper()
	assert.NotEmpty(t, c.Headers.Get(key), "header should exist: "+key)
}

// AssertJSONField verifies a top-level field in the JSON body.
func (c *Capture) AssertJSONField(t *testing.T, field string, expected any) {
	t.Helper()
	body := c.BodyMap(t)
	assert.Equal(t, expected, body[field], "unexpected value for field: "+field)
}

// AssertJSONFieldAbsent verifies a field does NOT exist in the JSON body.
func (c *Capture) AssertJSONFieldAbsent(t *testing.T, field string) {
	t.Helper()
	body := c.BodyMap(t)
	assert.NotContains(t, body, field, "field should be absent: "+field)
}

// AssertJSONPath verifies a nested field addressed with dot notation,
// e.g. "stickerset.short_name". Numbers decode as float64.
func (c *Capture) AssertJSONPath(t *testing.T, path string, expected any) {
	t.Helper()
	var cur any = c.BodyMap(t)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			t.Errorf("path %q: %q is not an object", path, part)
			return
		}
		cur, ok = m[part]
		if !ok {
			t.Errorf("path %q: field %q not found", path, part)
			return
		}
	}
	assert.Equal(t, expected, cur, "unexpected value for path: "+path)
}

// BodyJSON decodes the body as JSON into target.
func (c *Capture) BodyJSON(t *testing.T, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(c.Body, target), "failed to decode JSON body")
}

// BodyMap returns the body as a map.
func (c *Capture) BodyMap(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(c.Body, &m), "failed to decode JSON body")
	return m
}

// BodyString returns the body as a string.
func (c *Capture) BodyString() string {
	return string(c.Body)
}
