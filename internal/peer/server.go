package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/peersync"
)

// maxBodyBytes caps inbound manifests and event batches.
const maxBodyBytes = 8 << 20

// Store is the storage the peer server reads and writes.
type Store interface {
	peersync.Store
	GetAllTasksIncludingDeleted(ctx context.Context) ([]models.Task, error)
}

type claimsKey struct{}

// Server exposes the manifest exchange to other devices of the same user.
type Server struct {
	store   Store
	rec     *peersync.Reconciler
	secret  []byte
	origins []string
	now     func() time.Time
	onApply func(models.Task)

	server *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAllowedOrigins sets the CORS origins. Defaults to none.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) { s.origins = origins }
}

// WithServerClock overrides time.Now for token checks.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// WithApplyHook is called for every inbound event that changed local state.
func WithApplyHook(fn func(models.Task)) ServerOption {
	return func(s *Server) { s.onApply = fn }
}

// NewServer builds a peer server.
func NewServer(store Store, rec *peersync.Reconciler, secret []byte, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		rec:    rec,
		secret: secret,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler with auth, logging and CORS.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/manifest", s.handleGetManifest).Methods(http.MethodGet)
	api.HandleFunc("/manifest", s.handleCompareManifest).Methods(http.MethodPost)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(loggingMiddleware(router))
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Peer server listening", "addr", l.Addr().String())
		errCh <- s.server.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("peer server shutdown: %w", err)
		}
		logger.Info("Peer server stopped")
		return nil
	}
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			respondError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		claims, err := ParseToken(s.secret, raw, s.now())
		if err != nil {
			respondError(w, http.StatusUnauthorized, err)
			return
		}
		if claims.UserID != s.rec.UserID() {
			logger.Warn("Rejected peer request for another user", "user_id", claims.UserID, "device_id", claims.DeviceID)
			respondError(w, http.StatusForbidden, errors.New("user mismatch"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// callerFrom returns the verified claims of the requesting device.
func callerFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"device_id": s.rec.DeviceID(),
		"version":   constants.Version,
	})
}

func (s *Server) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	local, err := s.store.GetAllTasksIncludingDeleted(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, s.rec.Manifest(local, s.now()))
}

func (s *Server) handleCompareManifest(w http.ResponseWriter, r *http.Request) {
	var msg peersync.ManifestMessage
	if err := decodeBody(w, r, &msg); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if msg.UserID != s.rec.UserID() {
		respondError(w, http.StatusForbidden, errors.New("manifest belongs to another user"))
		return
	}

	local, err := s.store.GetAllTasksIncludingDeleted(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	reply := s.rec.Respond(r.Context(), msg, local)
	logger.Debug("Answered peer manifest", "device_id", msg.DeviceID, "request", len(reply.Request), "advertise", len(reply.Events))
	respondJSON(w, http.StatusOK, reply)
}

// EventsResponse reports how many pushed events changed local state.
type EventsResponse struct {
	Applied int `json:"applied"`
	Dropped int `json:"dropped"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events []peersync.TaskEvent
	if err := decodeBody(w, r, &events); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := ApplyEvents(r.Context(), s.rec, s.store, events, s.onApply)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if caller := callerFrom(r.Context()); caller != nil {
		logger.Info("Received peer events", "device_id", caller.DeviceID, "applied", resp.Applied, "dropped", resp.Dropped)
	}
	respondJSON(w, http.StatusOK, resp)
}

// ApplyEvents runs every event through the reconciler. Malformed events
// are dropped and logged. Storage errors abort the batch.
func ApplyEvents(ctx context.Context, rec *peersync.Reconciler, store peersync.Store, events []peersync.TaskEvent, onApply func(models.Task)) (EventsResponse, error) {
	var resp EventsResponse
	for _, ev := range events {
		changed, err := rec.Apply(ctx, store, ev)
		if err != nil {
			if !errors.Is(err, peersync.ErrMalformedEvent) {
				return resp, err
			}
			logger.Warn("Dropping malformed peer event", "event_id", ev.ID, "error", err)
			resp.Dropped++
			continue
		}
		if !changed {
			resp.Dropped++
			continue
		}
		resp.Applied++
		if onApply != nil {
			if t, err := store.GetTaskRecord(ctx, ev.TaskID); err == nil {
				onApply(t)
			}
		}
	}
	return resp, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Peer request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "duration", time.Since(start))
	})
}
