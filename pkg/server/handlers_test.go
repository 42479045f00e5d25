package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/observability"
	"github.com/cortexkit/cortex/pkg/reasoner"
)

func TestRootEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	status, body := getJSON(t, api.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cortex cognitive engine", body["message"])
	assert.Equal(t, "running", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestHealthEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	status, body := getJSON(t, api.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["configured"])
	assert.Equal(t, true, body["memory_enabled"])
	assert.Equal(t, float64(len(reasoner.Types)), body["agents_available"])
}

func TestQueryEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	status, body := postJSON(t, api.URL+"/query", map[string]any{
		"text": "Which ferry should I take to reach the island before breakfast?",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["job_id"])
	assert.Empty(t, body["error"])

	result, ok := body["result"].(map[string]any)
	require.True(t, ok, "result must be an object")
	assert.Equal(t, testAnswer, result["final_answer"])
	assert.Equal(t, "concise", result["mode"])
	assert.NotEmpty(t, result["iteration_trace"])
	assert.NotEmpty(t, result["meta_report"])
}

func TestQueryEndpointHonorsModeAndDepth(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	status, body := postJSON(t, api.URL+"/query", map[string]any{
		"text":       "Plan the crossing in detail.",
		"mode":       "detailed",
		"loop_depth": 2,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])

	result := body["result"].(map[string]any)
	assert.Equal(t, "detailed", result["mode"])
	trace := result["iteration_trace"].([]any)
	assert.Len(t, trace, 2)
}

func TestQueryEndpointRejectsEmptyText(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	status, body := postJSON(t, api.URL+"/query", map[string]any{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEqual(t, true, body["success"])
	assert.Contains(t, body["error"], "query is empty")
}

func TestQueryEndpointRejectsUnknownMode(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	status, body := postJSON(t, api.URL+"/query", map[string]any{
		"text": "hello",
		"mode": "warp",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], `invalid mode "warp"`)
}

func TestQueryEndpointRejectsMalformedJSON(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	resp, err := http.Post(api.URL+"/query", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "invalid JSON body")
}

func TestQueryStreamEmitsLifecycleFrames(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	resp, err := http.Post(api.URL+"/query/stream", "application/json",
		strings.NewReader(`{"text": "Which ferry runs at dawn?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var frames []map[string]any
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		frames = append(frames, frame)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, frames, 3)
	assert.Equal(t, "start", frames[0]["type"])
	assert.NotEmpty(t, frames[0]["job_id"])

	assert.Equal(t, "result", frames[1]["type"])
	data := frames[1]["data"].(map[string]any)
	assert.Equal(t, testAnswer, data["final_answer"])

	assert.Equal(t, "done", frames[2]["type"])
}

func TestQueryStreamReportsProcessingErrors(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	resp, err := http.Post(api.URL+"/query/stream", "application/json",
		strings.NewReader(`{"text": ""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, `"type":"start"`)
	assert.Contains(t, body, `"type":"error"`)
	assert.Contains(t, body, "query is empty")
	assert.Contains(t, body, `"type":"done"`)
	assert.NotContains(t, body, `"type":"result"`)
}

func TestAgentsEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	resp, err := http.Get(api.URL + "/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var agents []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agents))
	require.Len(t, agents, len(reasoner.Types))

	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a["name"].(string))
		assert.NotEmpty(t, a["description"])
	}
	assert.Contains(t, names, "logical")
	assert.Contains(t, names, "verifier")
}

func TestConfigEndpointMasksSecrets(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.LLM.APIKey = "super-secret-key-123"
	api, _ := newTestAPI(t, cfg)

	status, body := getJSON(t, api.URL+"/config")
	require.Equal(t, http.StatusOK, status)

	llmSection := body["llm"].(map[string]any)
	assert.Equal(t, "supe****", llmSection["api_key"])
	assert.Equal(t, "mock", llmSection["provider"])

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret-key-123")
}

func TestConfigSchemaEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	resp, err := http.Get(api.URL + "/config/schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var schema map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schema))
	assert.Equal(t, "Cortex Configuration Schema", schema["title"])
	assert.NotEmpty(t, schema["properties"])
}

func TestMetricsEndpointDisabled(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	resp, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpointEnabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Observability.Metrics.Enabled = true

	mgr := observability.NewManager(cfg.Observability)
	require.NoError(t, mgr.Initialize(context.Background()))
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	eng := newTestEngineWithObs(t, cfg, mgr)
	t.Cleanup(func() { _ = eng.Close() })

	srv, err := New(Options{Config: cfg, Engine: eng})
	require.NoError(t, err)
	api := newHTTPTestServer(t, srv)

	resp, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	req, err := http.NewRequest(http.MethodOptions, api.URL+"/query", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestMemoryRoutesRejectWhenDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Memory.Enabled = config.BoolPtr(false)
	api, _ := newTestAPI(t, cfg)

	status, body := postJSON(t, api.URL+"/memory/search", map[string]any{"query": "ferry"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body["error"], "memory is disabled")
}
