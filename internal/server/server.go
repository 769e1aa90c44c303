// Package server exposes the JSON API consumed by the presentation layer.
// Routing uses net/http method patterns; every /api/article route requires a
// valid session cookie.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"readlater/internal/config"
	"readlater/internal/domain"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "_app_auth"

type Articles interface {
	SaveArticle(ctx context.Context, userID int64, url string) (*domain.Article, error)
	ApplyPatch(ctx context.Context, userID int64, uniqueID string, patch domain.Patch) (*domain.Article, error)
	AddTags(ctx context.Context, userID int64, articleID string, tags []string) ([]string, error)
	ListArticles(ctx context.Context, userID int64) ([]domain.Article, error)
	SearchByTag(ctx context.Context, userID int64, tag string) ([]domain.Article, error)
	DeleteArticle(ctx context.Context, userID int64, url string) (bool, error)
	DeleteAll(ctx context.Context) error
}

type Auth interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type Server struct {
	articles   Articles
	auth       Auth
	logger     *slog.Logger
	sessionTTL time.Duration
	dev        bool
	handler    http.Handler
}

func New(articles Articles, auth Auth, cfg config.ServerConfig, logger *slog.Logger) *Server {
	s := &Server{
		articles:   articles,
		auth:       auth,
		logger:     logger.With("component", "http"),
		sessionTTL: cfg.SessionTTL,
		dev:        cfg.Dev,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.Handle("GET /api/article/list", s.requireAuth(s.handleList))
	mux.Handle("PUT /api/article/save", s.requireAuth(s.handleSave))
	mux.Handle("POST /api/article/add-tags", s.requireAuth(s.handleAddTags))
	mux.Handle("POST /api/article/search-articles", s.requireAuth(s.handleSearch))
	mux.Handle("PATCH /api/article/{articleId}", s.requireAuth(s.handlePatch))
	mux.Handle("DELETE /api/article", s.requireAuth(s.handleDelete))
	mux.Handle("DELETE /api/article/all", s.requireAuth(s.handleDeleteAll))

	s.handler = s.logRequests(mux)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

type ctxKey string

const userKey ctxKey = "user"

// requireAuth resolves the session cookie to a user and stores it in the
// request context; requests without a live session never reach the handler.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			token = cookie.Value
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("Not allowed."))
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func currentUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userKey).(*domain.User)
	return user
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, user *domain.User) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    user.SessionToken,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
