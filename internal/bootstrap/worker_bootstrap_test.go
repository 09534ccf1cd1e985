package bootstrap

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"travel_server/config"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:          "test",
		StoreBackend:         config.StoreFile,
		StoreFilePath:        filepath.Join(t.TempDir(), "trips.json"),
		LLMProvider:          config.LLMNone,
		MalformedStartPolicy: "now",
		RateLimitPerMin:      2,
	}
}

func TestNewDependencies_FileStore(t *testing.T) {
	deps, cleanup, err := NewDependencies(context.Background(), testConfig(t), Options{SkipMail: true})
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Store)
	assert.NotNil(t, deps.Classifier)
	assert.Nil(t, deps.Extractor)
	assert.Nil(t, deps.MailSource)
	assert.Nil(t, deps.DigestSender)
	assert.False(t, deps.ScanService.HasMailSource())
}

func TestNewDependencies_BadKeywordsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeywordsFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, _, err := NewDependencies(context.Background(), cfg, Options{SkipMail: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load keyword tables")
}

func TestNewAPI_Routes(t *testing.T) {
	deps, cleanup, err := NewDependencies(context.Background(), testConfig(t), Options{SkipMail: true})
	require.NoError(t, err)
	defer cleanup()
	app := NewAPI(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req := httptest.NewRequest("POST", "/api/v1/classify",
		strings.NewReader(`{"subject":"Weekly newsletter","body":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Accepted bool `json:"accepted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	assert.True(t, env.Success)
	assert.False(t, env.Data.Accepted)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestNewAPI_RateLimitsSummary(t *testing.T) {
	deps, cleanup, err := NewDependencies(context.Background(), testConfig(t), Options{SkipMail: true})
	require.NoError(t, err)
	defer cleanup()
	app := NewAPI(deps)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/users/u1/summary", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// trips is not limited
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/users/u1/trips", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
