package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/observability"
	"github.com/rodysim/rody/pkg/store"
)

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	srv := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestCreateRunDefaultScenario(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := postJSON(t, srv.URL+"/v1/runs", `{}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rec := decode[store.Record](t, resp)
	assert.True(t, store.ValidID(rec.ID))
	assert.Equal(t, "/v1/runs/"+rec.ID, resp.Header.Get("Location"))
	assert.Equal(t, " -0.100  0.000  0.000  -1.000  0.000  0.000 \n", rec.Output)
	assert.Equal(t, 1, rec.Summary.Steps)
	assert.EqualValues(t, "text", rec.Format)
}

func TestCreateRunOverridesScenario(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := postJSON(t, srv.URL+"/v1/runs", `{
		"scenario": {
			"timeline": {"min": 0, "max": 1, "steps": 10},
			"output": {"select": "px", "decimals": 1}
		},
		"format": "csv"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rec := decode[store.Record](t, resp)
	lines := strings.Split(strings.TrimSpace(rec.Output), "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "index,px", lines[0])
	assert.Equal(t, "10,-1.0", lines[10])
	assert.Equal(t, [3]float64{-1, 0, 0}, rec.Scenario.Block.Velocity, "unset fields keep defaults")
}

func TestCreateRunTOML(t *testing.T) {
	srv := newTestServer(t, Config{})

	body := "[timeline]\nmax = 0.2\nsteps = 2\n\n[output]\nselect = \"vx\"\n"
	resp, err := http.Post(srv.URL+"/v1/runs?format=json", "application/toml; charset=utf-8", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rec := decode[store.Record](t, resp)
	assert.EqualValues(t, "json", rec.Format)
	assert.Equal(t, 2, strings.Count(rec.Output, "\n"))
	assert.Contains(t, rec.Output, `"vx":-1`)
}

func TestCreateRunErrors(t *testing.T) {
	srv := newTestServer(t, Config{MaxSteps: 100})

	tests := []struct {
		name   string
		body   string
		status int
		code   errors.Code
	}{
		{"malformed", `{"scenario":`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"zero steps", `{"scenario":{"timeline":{"steps":0}}}`, http.StatusBadRequest, errors.ErrCodeInvalidTimeline},
		{"too many steps", `{"scenario":{"timeline":{"steps":101}}}`, http.StatusBadRequest, errors.ErrCodeInvalidTimeline},
		{"bad format", `{"format":"xml"}`, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"strict geometry", `{"strict":true,"scenario":{"block":{"lengths":[0,1,1]}}}`, http.StatusBadRequest, errors.ErrCodeInvalidGeometry},
		{"strict selector", `{"strict":true,"scenario":{"output":{"select":"px nope"}}}`, http.StatusBadRequest, errors.ErrCodeInvalidSelector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/v1/runs", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.Equal(t, string(tt.code), body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestCreateRunRejectsNonFiniteBlock(t *testing.T) {
	srv := newTestServer(t, Config{})

	for _, body := range []string{
		"[block]\nmass_density = nan\n",
		"[block]\nvelocity = [inf, 0.0, 0.0]\n",
	} {
		resp, err := http.Post(srv.URL+"/v1/runs", "application/toml", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, string(errors.ErrCodeInvalidInput), decode[errorBody](t, resp).Error.Code, body)
	}
}

func TestCreateRunLenientWarnings(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := postJSON(t, srv.URL+"/v1/runs", `{"scenario":{"block":{"lengths":[0,1,1]}}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[store.Record](t, resp)
	assert.NotEmpty(t, rec.Warnings)
}

func TestGetListDeleteRun(t *testing.T) {
	st := store.NewMemoryStore()
	srv := newTestServer(t, Config{Store: st})

	created := decode[store.Record](t, postJSON(t, srv.URL+"/v1/runs", `{"scenario":{"output":{"select":"px"}}}`))

	resp, err := http.Get(srv.URL + "/v1/runs/" + created.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[store.Record](t, resp)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Output, got.Output)

	out, err := http.Get(srv.URL + "/v1/runs/" + created.ID + "/output")
	require.NoError(t, err)
	defer out.Body.Close()
	raw, _ := io.ReadAll(out.Body)
	assert.Equal(t, " -0.100 \n", string(raw))
	assert.Contains(t, out.Header.Get("Content-Type"), "text/plain")

	list, err := http.Get(srv.URL + "/v1/runs?limit=10")
	require.NoError(t, err)
	defer list.Body.Close()
	runs := decode[struct {
		Runs []store.Record `json:"runs"`
	}](t, list)
	require.Len(t, runs.Runs, 1)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/runs/"+created.ID, nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	gone, err := http.Get(srv.URL + "/v1/runs/" + created.ID)
	require.NoError(t, err)
	defer gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestGetRunBadID(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + "/v1/runs/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(errors.ErrCodeNotFound), decode[errorBody](t, resp).Error.Code)
}

func TestListRunsBadLimit(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + "/v1/runs?limit=ten")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + "/v2/nothing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	counters := observability.NewCounters()
	observability.SetHTTPHooks(counters)
	observability.SetSimulationHooks(counters)
	defer observability.Reset()

	srv := newTestServer(t, Config{Counters: counters})
	postJSON(t, srv.URL+"/v1/runs", `{}`)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decode[observability.Snapshot](t, resp)
	assert.EqualValues(t, 1, snap.Runs)
	assert.EqualValues(t, 1, snap.Routes["/v1/runs"])
	assert.EqualValues(t, 1, snap.Statuses[http.StatusCreated])
}

func TestMetricsDisabled(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidTimeline, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeInvalidScenario, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeNotFound, "x"), http.StatusNotFound},
		{errors.New(errors.ErrCodeCanceled, "x"), http.StatusServiceUnavailable},
		{errors.New(errors.ErrCodeInternal, "x"), http.StatusInternalServerError},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "StatusFor(%v)", tt.err)
	}
}

func TestBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, Config{MaxBodyBytes: 16})

	resp := postJSON(t, srv.URL+"/v1/runs", `{"scenario":{"timeline":{"steps":5}}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
