package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gastrochef/internal/auth"
	"gastrochef/internal/catalog"
	"gastrochef/internal/game"
	"gastrochef/internal/store"
	"gastrochef/internal/tuning"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Server is the request/response side of the game: account management,
// catalog browsing, purchases, lab experiments and financial reports. The
// real-time order channel lives in transport/ws.
type Server struct {
	store   *store.Store
	catalog *catalog.Catalog
	auth    *auth.TokenAuthority
	tune    tuning.Tuning
	journal game.Journal
	log     *log.Logger
	mux     *chi.Mux
}

func New(st *store.Store, cat *catalog.Catalog, authority *auth.TokenAuthority, tune tuning.Tuning, jr game.Journal, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		store:   st,
		catalog: cat,
		auth:    authority,
		tune:    tune,
		journal: jr,
		log:     logger,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/ingredients", s.handleIngredients)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/save", s.handleSave)
			r.Get("/economy/overview", s.handleOverview)
			r.Post("/economy/buy", s.handleBuy)
			r.Get("/economy/recipes", s.handleRecipes)
			r.Post("/lab/experiment", s.handleExperiment)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		claims, err := s.auth.Verify(token, time.Now())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token.")
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

func withClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

func claimsFrom(r *http.Request) auth.Claims {
	c, _ := r.Context().Value(claimsContextKey).(auth.Claims)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}
