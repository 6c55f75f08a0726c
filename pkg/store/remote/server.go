package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/pkg/store"
)

const (
	defaultMaxBody = 32 << 20
	watchBuffer    = 32
)

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithServerLogger attaches a logger.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxBody caps request bodies, uploads included.
func WithMaxBody(limit int64) ServerOption {
	return func(s *Server) {
		if limit > 0 {
			s.maxBody = limit
		}
	}
}

// WithOriginPatterns sets the websocket origins accepted by the watch route.
func WithOriginPatterns(patterns ...string) ServerOption {
	return func(s *Server) {
		s.origins = append([]string(nil), patterns...)
	}
}

// Server serves a DocumentStore, and optionally a BlobStore, over HTTP.
type Server struct {
	docs    store.DocumentStore
	blobs   store.BlobStore
	router  chi.Router
	logger  *zap.Logger
	maxBody int64
	origins []string
}

// NewServer builds the HTTP handler. blobs may be nil, in which case the
// upload route answers 404.
func NewServer(docs store.DocumentStore, blobs store.BlobStore, opts ...ServerOption) *Server {
	s := &Server{
		docs:    docs,
		blobs:   blobs,
		logger:  zap.NewNop(),
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRoutes mounts the store routes on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/collections/{collection}", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleSet)
			r.Patch("/", s.handleUpdate)
			r.Get("/watch", s.handleWatch)
		})
	})
	if s.blobs != nil {
		r.Put("/blobs/*", s.handleUpload)
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.RegisterRoutes(r)
	return r
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := s.decodeJSON(w, r, &data); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	id, err := s.docs.Create(r.Context(), chi.URLParam(r, "collection"), store.RestoreTimestamps(data))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createResponse{ID: id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.docs.Get(r.Context(), refFrom(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if err := s.docs.Set(r.Context(), refFrom(r), store.RestoreTimestamps(req.Data), req.Merge); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := s.decodeJSON(w, r, &partial); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if err := s.docs.Update(r.Context(), refFrom(r), store.RestoreTimestamps(partial)); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	ref, err := s.blobs.Upload(r.Context(), path, data, nil)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, uploadResponse{Reference: ref})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	ref := refFrom(r)
	if err := ref.Validate(); err != nil {
		s.storeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("remote: websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Nothing is read from the client; CloseRead cancels ctx when it leaves.
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan WatchMessage, watchBuffer)
	unsubscribe, err := s.docs.Subscribe(ctx, ref, func(snap store.Snapshot, err error) {
		select {
		case events <- toWatchMessage(snap, err):
		case <-ctx.Done():
		}
	})
	if err != nil {
		_ = wsjson.Write(ctx, conn, toWatchMessage(store.Snapshot{}, err))
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer unsubscribe()

	s.logger.Debug("remote: watch started", zap.String("ref", ref.String()))
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("remote: watch stopped", zap.String("ref", ref.String()))
			return
		case msg := <-events:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					s.logger.Debug("remote: watch write", zap.Error(err))
				}
				return
			}
		}
	}
}

func refFrom(r *http.Request) store.Ref {
	return store.Ref{
		Collection: chi.URLParam(r, "collection"),
		ID:         strings.TrimSuffix(chi.URLParam(r, "id"), "/"),
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("remote: encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	switch code {
	case CodeNotFound:
		s.writeError(w, http.StatusNotFound, code, err.Error())
	case CodeInvalidRef:
		s.writeError(w, http.StatusBadRequest, code, err.Error())
	case CodeClosed:
		s.writeError(w, http.StatusServiceUnavailable, code, err.Error())
	default:
		s.logger.Error("remote: store error", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, code, "internal server error")
	}
}
