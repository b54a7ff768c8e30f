package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rostercal/internal/config"
	"rostercal/internal/convert"
	"rostercal/internal/ics"
	appLog "rostercal/internal/log"
	"rostercal/internal/roster"
	"rostercal/internal/tzconv"
)

// Server provides the upload UI and the conversion API. Conversions are
// processed fully in memory; nothing about a request outlives the
// response.
type Server struct {
	cfg       *config.Config
	extractor roster.TextExtractor
	mux       *http.ServeMux

	// Per-client token buckets for /api/convert; idle entries are
	// evicted on access.
	limiterMu sync.Mutex
	limiters  map[string]*clientLimiter
}

// clientLimiter pairs a token bucket with its last use, for eviction.
type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterIdleTTL is how long a client limiter may sit unused before it is
// dropped.
const limiterIdleTTL = time.Hour

// embeddedStatic contains the upload form UI.
//
//go:embed static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, extractor roster.TextExtractor) *Server {
	s := &Server{
		cfg:       cfg,
		extractor: extractor,
		limiters:  make(map[string]*clientLimiter),
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials are treated as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="rostercal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves HTTP on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, extractor roster.TextExtractor) error {
	s := NewServer(cfg, extractor)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/convert", s.handleConvert)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleConvert accepts a multipart roster upload and answers with the
// generated calendar file.
//
// POST /api/convert
//   - roster:   the roster document (PDF, or already-extracted text)
//   - cutoff:   optional YYYY-MM-DD; duties before it are excluded
//   - timezone: optional IANA zone override for the roster's clock times
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.allowClient(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "conversion rate limit exceeded; retry later")
		return
	}

	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("roster")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing roster file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}

	opts := convert.Options{
		Timezone:       s.cfg.Timezone,
		TrackerBaseURL: s.cfg.Tracker.BaseURL,
	}
	if tz := r.FormValue("timezone"); tz != "" {
		opts.Timezone = tz
	}
	if c := r.FormValue("cutoff"); c != "" {
		cutoff, err := time.Parse("2006-01-02", c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cutoff must be YYYY-MM-DD")
			return
		}
		opts.Cutoff = cutoff
	}

	lines, err := s.documentLines(header.Filename, data)
	if err != nil {
		s.writeConversionError(w, err)
		return
	}

	res, err := convert.Run(lines, opts)
	if err != nil {
		s.writeConversionError(w, err)
		return
	}

	// Collapsed standby/off blocks make the event count undersell the
	// roster; report the expanded day span alongside the download.
	dutyDays := 0
	for _, ev := range res.Events {
		span, err := ics.BlockDays(ev)
		if err != nil {
			s.writeConversionError(w, err)
			return
		}
		dutyDays += len(span)
	}

	appLog.Info("upload converted",
		"file", header.Filename,
		"bytes", len(data),
		"events", len(res.Events),
		"duty_days", dutyDays,
	)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	w.Header().Set("X-Duty-Days", strconv.Itoa(dutyDays))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.ICS)
}

// documentLines extracts text lines from an upload, going through the PDF
// extractor when the payload is a PDF and splitting plain text otherwise.
func (s *Server) documentLines(filename string, data []byte) ([]string, error) {
	isPDF := strings.EqualFold(filepath.Ext(filename), ".pdf") ||
		bytes.HasPrefix(data, []byte("%PDF"))
	if isPDF {
		return s.extractor.ExtractLines(bytes.NewReader(data), int64(len(data)))
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(text, "\n"), nil
}

// writeConversionError maps pipeline errors onto HTTP statuses: client
// documents that cannot be parsed are 422s, unknown timezones 400s, and
// anything else a 500.
func (s *Server) writeConversionError(w http.ResponseWriter, err error) {
	var parseErr *roster.ParseError
	var structErr *roster.StructureError
	var tzErr *tzconv.TimezoneError

	switch {
	case errors.As(err, &parseErr), errors.As(err, &structErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &tzErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("conversion failed", err)
		writeError(w, http.StatusInternalServerError, "conversion failed")
	}
}

// handleConfig exposes the effective configuration without credentials.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type configDTO struct {
		Timezone       string `json:"timezone"`
		MaxUploadMB    int    `json:"max_upload_mb"`
		TrackerBaseURL string `json:"tracker_base_url"`
	}
	writeJSON(w, http.StatusOK, configDTO{
		Timezone:       s.cfg.Timezone,
		MaxUploadMB:    s.cfg.MaxUploadMB,
		TrackerBaseURL: s.cfg.Tracker.BaseURL,
	})
}

// allowClient applies the per-client conversion rate limit.
func (s *Server) allowClient(key string) bool {
	perMin := s.cfg.UploadRatePerMin
	if perMin <= 0 {
		return true
	}

	now := time.Now()
	s.limiterMu.Lock()
	s.pruneIdleLocked(now)
	entry, ok := s.limiters[key]
	if !ok {
		entry = &clientLimiter{
			lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		}
		s.limiters[key] = entry
	}
	entry.lastSeen = now
	s.limiterMu.Unlock()

	return entry.lim.Allow()
}

// pruneIdleLocked drops limiters unused for longer than limiterIdleTTL.
// Caller holds limiterMu.
func (s *Server) pruneIdleLocked(now time.Time) {
	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}
}

// clientKey identifies the client for rate limiting purposes.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// staticFileServer serves the embedded upload form.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API paths never fall through to the static UI.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
