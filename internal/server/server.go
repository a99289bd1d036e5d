// Package server provides the HTTP REST API for the placement portal.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/applications"
	"github.com/roshankumar101/Portal-sub001/internal/auth"
	"github.com/roshankumar101/Portal-sub001/internal/jobs"
	"github.com/roshankumar101/Portal-sub001/internal/metrics"
	"github.com/roshankumar101/Portal-sub001/internal/notifications"
	"github.com/roshankumar101/Portal-sub001/internal/resumes"
	"github.com/roshankumar101/Portal-sub001/internal/server/middleware"
	"github.com/roshankumar101/Portal-sub001/internal/server/ratelimit"
	"github.com/roshankumar101/Portal-sub001/internal/students"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// Services are the domain services behind the API.
type Services struct {
	Auth          *auth.Service
	Students      *students.Service
	Jobs          *jobs.Service
	Applications  *applications.Service
	Notifications *notifications.Service
	Resumes       *resumes.Service
}

// Config holds server configuration
type Config struct {
	Port            int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	// MaxUploadBytes bounds multipart resume uploads.
	MaxUploadBytes int64
	// KeepAlive is the SSE comment interval; zero selects 25s.
	KeepAlive time.Duration
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	svc         Services
	cfg         Config
	rateLimiter ratelimit.Allower
	logger      *zap.Logger
	handler     http.Handler
}

// New creates a new server instance. A nil limiter disables rate limiting.
func New(cfg Config, svc Services, limiter ratelimit.Allower, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(&ratelimit.Config{Enabled: false})
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 25 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	s := &Server{
		svc:         svc,
		cfg:         cfg,
		rateLimiter: limiter,
		logger:      logger.Named("http"),
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = s.withMetrics(s.withRateLimit(s.withLogging(s.withCORS(mux))))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout stays zero: application streams are long lived.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(mux *http.ServeMux) {
	authed := middleware.RequireAuth(s.svc.Auth)
	staff := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRole(types.RoleAdmin, types.RoleRecruiter)(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRole(types.RoleAdmin)(h))
	}
	user := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("POST /auth/logout", user(s.handleLogout))
	mux.Handle("GET /auth/me", user(s.handleMe))
	mux.HandleFunc("POST /auth/password-reset", s.handleRequestPasswordReset)
	mux.HandleFunc("POST /auth/password-reset/confirm", s.handleConfirmPasswordReset)

	// Students
	mux.Handle("GET /students", admin(s.handleListStudents))
	mux.Handle("GET /students/{id}", user(s.handleGetStudent))
	mux.Handle("PUT /students/{id}", user(s.handleUpdateStudent))
	mux.Handle("GET /students/{id}/stats", user(s.handleGetStats))
	mux.Handle("POST /students/{id}/{section}", user(s.handleAddSectionEntry))
	mux.Handle("PUT /students/{id}/{section}/{entryId}", user(s.handleUpdateSectionEntry))
	mux.Handle("DELETE /students/{id}/{section}/{entryId}", user(s.handleRemoveSectionEntry))
	mux.Handle("GET /students/{id}/records/{kind}", user(s.handleListRecords))
	mux.Handle("POST /students/{id}/records/{kind}", user(s.handleCreateRecord))
	mux.Handle("DELETE /records/{kind}/{id}", user(s.handleDeleteRecord))

	// Jobs and companies
	mux.Handle("GET /jobs", user(s.handleListJobs))
	mux.Handle("POST /jobs", staff(s.handleCreateJob))
	mux.Handle("GET /jobs/{id}", user(s.handleGetJob))
	mux.Handle("PUT /jobs/{id}", staff(s.handleUpdateJob))
	mux.Handle("POST /jobs/{id}/close", staff(s.handleCloseJob))
	mux.Handle("POST /companies", staff(s.handleCreateCompany))
	mux.Handle("GET /companies/{id}", user(s.handleGetCompany))

	// Applications
	mux.Handle("POST /jobs/{id}/apply", authed(middleware.RequireRole(types.RoleStudent)(http.HandlerFunc(s.handleApply))))
	mux.Handle("GET /jobs/{id}/applications", staff(s.handleListJobApplications))
	mux.Handle("GET /applications/{id}", user(s.handleGetApplication))
	mux.Handle("PUT /applications/{id}/status", staff(s.handleUpdateApplicationStatus))
	mux.Handle("GET /students/{id}/applications", user(s.handleListStudentApplications))
	mux.Handle("GET /students/{id}/applications/stream", user(s.handleStreamStudentApplications))
	mux.Handle("POST /students/{id}/reconcile", admin(s.handleReconcileStudent))

	// Email notifications
	mux.HandleFunc("GET /unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("POST /unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("POST /resubscribe", s.handleResubscribe)
	mux.Handle("POST /email-events", admin(s.handleEmailEvent))

	// Inbox
	mux.Handle("GET /notifications", user(s.handleListNotifications))
	mux.Handle("POST /notifications/{id}/read", user(s.handleMarkNotificationRead))

	// Resumes
	mux.Handle("GET /students/{id}/resume-data", user(s.handleGetResumeData))
	mux.Handle("PUT /students/{id}/resume-data", user(s.handleSaveResumeData))
	mux.Handle("GET /students/{id}/resume", user(s.handleGetResume))
	mux.Handle("POST /students/{id}/resume", user(s.handleUploadResume))
	mux.Handle("DELETE /students/{id}/resume", user(s.handleDeleteResume))
	mux.Handle("GET /students/{id}/resume/download", user(s.handleDownloadResume))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.code()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// withMetrics records request counts and latency by route pattern.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// serviceError maps a service error to its status and logs unexpected failures.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	s.errorResponse(w, status, ErrorMessage(err))
}

// decodeJSON reads a JSON request body into v, writing a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID),
		zap.Int("limit", info.Limit),
	)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
