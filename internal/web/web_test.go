package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"rostercal/internal/config"
	"rostercal/internal/roster"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.UploadRatePerMin = 0 // no rate limit unless a test opts in
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(cfg, roster.NewPDFExtractor()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func rosterText() string {
	return strings.Join([]string{
		"Roster produced by NetLine/Crews on 15Mar24 08:31",
		"Period: 20Mar24 19Apr24 issued for SMITH JOHN",
		"date H duty R dep arr AC info",
		"20. Wed C/I 0700 WAW",
		"20. Wed LO 135 WAW 0800 1030 LHR",
		"C/O 1100 LHR",
		"21. Thu OFF",
	}, "\n")
}

// uploadRequest builds a multipart POST to /api/convert with the given
// roster payload and extra form fields.
func uploadRequest(t *testing.T, url, filename, payload string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("roster", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(payload))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/api/convert", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestConvertUpload(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := uploadRequest(t, srv.URL, "roster.txt", rosterText(), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "20240320_20240419_flights.ics")
	// One flight plus one off day.
	assert.Equal(t, "2", resp.Header.Get("X-Duty-Days"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")
	assert.Contains(t, string(body), "DTSTART:20240320T070000Z")
}

func TestConvertUploadWithCutoff(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := uploadRequest(t, srv.URL, "roster.txt", rosterText(), map[string]string{
		"cutoff": "2024-03-21",
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// The day-20 flight falls before the cutoff; only the off day remains.
	assert.NotContains(t, string(body), "LO135")
	assert.Contains(t, string(body), "Day off")
}

func TestConvertMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, err := http.Get(srv.URL + "/api/convert")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestConvertMissingFile(t *testing.T) {
	srv := newTestServer(t, testConfig())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("cutoff", "2024-03-21"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/convert", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConvertBadRoster(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := uploadRequest(t, srv.URL, "roster.txt", "not a roster\nat all\nthree lines", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Contains(t, e.Error, "check-in/check-out")
}

func TestConvertBadTimezone(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := uploadRequest(t, srv.URL, "roster.txt", rosterText(), map[string]string{
		"timezone": "Mars/Olympus",
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConvertBadCutoffFormat(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := uploadRequest(t, srv.URL, "roster.txt", rosterText(), map[string]string{
		"cutoff": "21-03-2024",
	})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConvertRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.UploadRatePerMin = 1
	srv := newTestServer(t, cfg)

	first, err := http.DefaultClient.Do(uploadRequest(t, srv.URL, "roster.txt", rosterText(), nil))
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.DefaultClient.Do(uploadRequest(t, srv.URL, "roster.txt", rosterText(), nil))
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestLimiterPrunesIdleClients(t *testing.T) {
	cfg := testConfig()
	cfg.UploadRatePerMin = 1
	s := NewServer(cfg, roster.NewPDFExtractor())

	s.limiterMu.Lock()
	s.limiters["10.0.0.1"] = &clientLimiter{
		lim:      rate.NewLimiter(rate.Every(time.Minute), 1),
		lastSeen: time.Now().Add(-2 * limiterIdleTTL),
	}
	s.limiterMu.Unlock()

	assert.True(t, s.allowClient("10.0.0.2"))

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	assert.NotContains(t, s.limiters, "10.0.0.1")
	assert.Contains(t, s.limiters, "10.0.0.2")
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "crew", Password: "secret"}
	srv := newTestServer(t, cfg)

	t.Run("rejects missing credentials", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/config")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/config", nil)
		require.NoError(t, err)
		req.SetBasicAuth("crew", "wrong")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("accepts valid credentials", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/config", nil)
		require.NoError(t, err)
		req.SetBasicAuth("crew", "secret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health stays open", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestConfigEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Europe/Warsaw"
	srv := newTestServer(t, cfg)

	resp, err := http.Get(srv.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto struct {
		Timezone       string `json:"timezone"`
		MaxUploadMB    int    `json:"max_upload_mb"`
		TrackerBaseURL string `json:"tracker_base_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dto))
	assert.Equal(t, "Europe/Warsaw", dto.Timezone)
	assert.NotZero(t, dto.MaxUploadMB)
}

func TestAPIPathsNeverServeStatic(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, err := http.Get(srv.URL + "/api/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticIndex(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<form")
}
