package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"feedtrack/internal/auth"
	"feedtrack/internal/config"
	"feedtrack/internal/model"
	"feedtrack/internal/repository"
	"feedtrack/internal/revocation"
)

type Server struct {
	cfg      config.Config
	store    repository.Repository
	revoker  revocation.Revoker
	logger   *zap.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewServer(cfg config.Config, store repository.Repository, revoker revocation.Revoker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if revoker == nil {
		revoker = revocation.FromStore(store)
	}
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedtrack",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedtrack",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	registry.MustRegister(requests, latency, collectors.NewGoCollector())

	return &Server{
		cfg:      cfg,
		store:    store,
		revoker:  revoker,
		logger:   logger,
		registry: registry,
		requests: requests,
		latency:  latency,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.With(s.authMiddleware).Post("/logout", s.handleLogout)
		r.With(s.authMiddleware).Get("/user", s.handleGetSelf)
		r.With(s.authMiddleware, s.requireManager).Get("/users", s.handleListUsers)
		r.With(s.authMiddleware, s.requireManager).Get("/users/{userId}", s.handleGetUser)
	})

	r.Route("/project", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListProjects)
		r.With(s.requireManager).Post("/", s.handleCreateProject)

		r.Route("/{projectId}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.With(s.requireManager).Put("/", s.handleUpdateProject)
			r.With(s.requireManager).Delete("/", s.handleDeleteProject)

			r.Get("/enrollment", s.handleListEnrollments)
			r.With(s.requireManager).Post("/enrollment", s.handleEnroll)
			r.With(s.requireManager).Delete("/enrollment", s.handleUnenroll)

			r.Get("/feedback", s.handleListFeedback)
			r.Post("/feedback", s.handleCreateFeedback)
			r.Route("/feedback/{feedbackId}", func(r chi.Router) {
				r.Get("/", s.handleGetFeedback)
				r.Put("/", s.handleUpdateFeedback)
				r.Delete("/", s.handleDeleteFeedback)

				r.Get("/labels", s.handleListLabels)
				r.With(s.requireManager).Post("/labels", s.handleAttachLabel)
				r.With(s.requireManager).Delete("/labels/{labelId}", s.handleDetachLabel)

				r.Get("/comments", s.handleListComments)
				r.Post("/comments", s.handleCreateComment)
				r.Put("/comments/{commentId}", s.handleUpdateComment)
				r.Delete("/comments/{commentId}", s.handleDeleteComment)
			})
		})
	})

	return r
}

// observe records request counts and latency keyed by the matched route
// pattern, and logs server errors.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		revoked, err := s.revoker.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			s.logger.Warn("revocation lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if revoked {
			writeError(w, http.StatusUnauthorized, "revoked_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || !isManager(claims) {
			writeError(w, http.StatusForbidden, "teacher_or_admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func isManager(claims *auth.Claims) bool {
	if claims == nil {
		return false
	}
	return model.Role(claims.Role).CanManage()
}

// userID is only called behind authMiddleware, which has already checked
// that the subject parses.
func userID(claims *auth.Claims) int64 {
	id, _ := claims.UserID()
	return id
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError answers with the machine code in "error" and a readable form of
// it in "message"; clients display the latter.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": strings.ReplaceAll(code, "_", " "),
	})
}
