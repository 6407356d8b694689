// Package handlers contains the HTTP handler logic for the eventhub API.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE — package structure
// ────────────────────────────────────────────────────────────────────
// All handler files share the same "handlers" package so they can call
// each other's helpers freely without exporting them. The files are
// split by resource (auth, events, sessions, registrations, ...) purely
// for readability.
//
// The central type is Server. It holds everything a handler needs: the
// store, the aggregation engine, the notification dispatcher, the
// scheduler and the token issuer. Putting shared dependencies on a struct
// (instead of global variables) makes the code easier to test: each test
// creates its own Server with its own in-memory database.
package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/auth"
	"github.com/campushub/eventhub/internal/config"
	"github.com/campushub/eventhub/internal/middleware"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/notify"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/scheduler"
	"github.com/campushub/eventhub/internal/store"
)

// Server holds shared dependencies for all handlers.
type Server struct {
	Store     *store.Store
	Engine    *aggregate.Engine
	Notify    *notify.Dispatcher
	Hub       *notify.Hub
	Scheduler *scheduler.Scheduler
	Issuer    *auth.Issuer
	Config    config.Config
	Log       *slog.Logger
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// New wires a Server over an open, migrated database.
func New(cfg config.Config, database *sql.DB, log *slog.Logger) (*Server, error) {
	st := store.New(database)
	iss := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
	engine := aggregate.New(st, log.With("component", "aggregate"), cfg.AnalyticsRetention)
	hub := notify.NewHub(log.With("component", "ws"), iss.Verify, cfg.ClientOrigin)
	sched, err := scheduler.New(engine, log.With("component", "scheduler"))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return &Server{
		Store:     st,
		Engine:    engine,
		Notify:    notify.NewDispatcher(st, hub, log.With("component", "notify"), cfg.NotificationRetention),
		Hub:       hub,
		Scheduler: sched,
		Issuer:    iss,
		Config:    cfg,
		Log:       log,
		Now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// envelope is the uniform response body.
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// respond writes the envelope as JSON with the given HTTP status code.
// Setting Content-Type before WriteHeader is important: once WriteHeader
// is called the headers are flushed and cannot be changed.
func respond(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// A client that disconnected mid-write is not worth logging.
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, msg string, data any) {
	respond(w, http.StatusOK, envelope{Success: true, Message: msg, Data: data})
}

func created(w http.ResponseWriter, msg string, data any) {
	respond(w, http.StatusCreated, envelope{Success: true, Message: msg, Data: data})
}

// Health handles GET /health. It only pings the database; the detailed
// report lives behind /api/admin/db/health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DB().PingContext(r.Context()); err != nil {
		s.fail(w, r, apperr.Internal("database unreachable", err))
		return
	}
	ok(w, "ok", map[string]any{"env": s.Config.Env, "time": s.Now().UTC()})
}

// fail translates err into the failure envelope. Unclassified errors are
// logged and reported as a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusOf(err)
	if status >= 500 {
		s.Log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	respond(w, status, envelope{
		Success: false,
		Message: apperr.PublicMessage(err),
		Errors:  apperr.FieldsOf(err),
	})
}

// decode reads a JSON request body into v. Unknown fields are ignored so
// older clients keep working.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON: " + err.Error())
	}
	return nil
}

// bind decodes and validates a request body.
func bind(r *http.Request, v any) error {
	if err := decode(r, v); err != nil {
		return err
	}
	return check(v)
}

// caller returns the authenticated principal. Routes behind Authenticate
// always have one.
func caller(r *http.Request) policy.Principal {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p
}

func authorize(p policy.Principal, a policy.Action, own policy.Ownership) error {
	if policy.Allowed(p, a, own) {
		return nil
	}
	return apperr.Forbidden("you are not allowed to " + a.String())
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// pageFrom reads ?page= and ?limit= (1-based page).
func pageFrom(r *http.Request) (p store.Page, page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)
	return store.Page{Limit: limit, Offset: (page - 1) * limit}, page, limit
}

func paged[T any](items []T, total, page, limit int) models.Paged[T] {
	return models.Paged[T]{Items: items, Total: total, Page: page, Limit: limit,
		Pages: int(math.Ceil(float64(total) / float64(limit)))}
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation("invalid query parameter",
			apperr.FieldError{Field: key, Message: "must be true or false"})
	}
	return &b, nil
}

// queryTime parses an optional RFC 3339 or YYYY-MM-DD query parameter.
func queryTime(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation("invalid query parameter",
		apperr.FieldError{Field: key, Message: "must be an RFC 3339 time or YYYY-MM-DD date"})
}

// logDispatch records a failed notification write. Dispatch never fails
// the request that triggered it.
func (s *Server) logDispatch(what string, err error) {
	if err != nil {
		s.Log.Warn("notification dispatch failed", "what", what, "err", err)
	}
}

// codeAlphabet omits 0/O and 1/I so printed codes can be typed back.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// randomCode returns n characters drawn uniformly from codeAlphabet.
func randomCode(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
