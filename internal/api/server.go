// Package api provides the chartdeck data server: folder manifests, file
// payloads, round persistence, and load-progress events.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chartdeck/chartdeck/internal/auth"
	"github.com/chartdeck/chartdeck/internal/events"
	"github.com/chartdeck/chartdeck/internal/logging"
	"github.com/chartdeck/chartdeck/internal/metrics"
	"github.com/chartdeck/chartdeck/internal/protocol"
	"github.com/chartdeck/chartdeck/internal/scores"
	"github.com/chartdeck/chartdeck/internal/storage"
)

const maxUploadSize = 16 << 20

// Server is the HTTP server.
type Server struct {
	backend     storage.Backend
	auth        *auth.Auth    // nil disables authentication
	rounds      *scores.Store // nil disables the rounds endpoints
	broadcaster *events.Broadcaster
}

// NewServer creates a new server.
func NewServer(backend storage.Backend, authHandler *auth.Auth, rounds *scores.Store, broadcaster *events.Broadcaster) *Server {
	return &Server{
		backend:     backend,
		auth:        authHandler,
		rounds:      rounds,
		broadcaster: broadcaster,
	}
}

// Handler returns the HTTP handler with auth, logging, and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.auth != nil {
		mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/folders", s.handleFolders)
	protected.HandleFunc("GET /api/v1/file", s.handleFile)
	protected.HandleFunc("POST /api/v1/file/{key...}", s.handleUpload)
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	if s.rounds != nil {
		protected.HandleFunc("POST /api/v1/rounds", s.handleSaveRound)
		protected.HandleFunc("GET /api/v1/rounds", s.handleListRounds)
		protected.HandleFunc("GET /api/v1/stats", s.handleStats)
	}

	var guarded http.Handler = protected
	if s.auth != nil {
		guarded = s.auth.Middleware(protected)
	}
	mux.Handle("/api/v1/", guarded)

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "backend": s.backend.Type()})
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.backend.ListFolders(r.Context())
	if err != nil {
		logging.Error("list folders failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to list folders")
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.ManifestResponse{
		Success: true,
		Data:    &protocol.ManifestData{Folders: folders},
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("file")
	folder := r.URL.Query().Get("folder")
	if fileName == "" || folder == "" {
		s.sendError(w, http.StatusBadRequest, "file and folder query parameters required")
		return
	}

	key := folder + "/" + fileName
	reader, _, err := s.backend.GetObject(r.Context(), key)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "file not found: "+fileName)
		return
	}
	defer reader.Close()

	payload, err := io.ReadAll(io.LimitReader(reader, maxUploadSize))
	if err != nil {
		logging.Error("read object failed", zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	if !json.Valid(payload) {
		logging.Warn("stored object is not valid JSON", zap.String("key", key))
		s.sendError(w, http.StatusInternalServerError, "stored file is not valid JSON")
		return
	}

	nested, err := json.Marshal(protocol.FileData{
		Data:     payload,
		FileName: fileName,
		Folder:   folder,
	})
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.FileResponse{
		Success: true,
		Data:    nested,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if strings.Count(key, "/") < 1 {
		s.sendError(w, http.StatusBadRequest, "key must be <folder>/<ticker>/<name>.json")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize+1))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxUploadSize {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", maxUploadSize))
		return
	}
	if !json.Valid(body) {
		s.sendError(w, http.StatusBadRequest, "body must be valid JSON")
		return
	}

	if err := s.backend.PutObject(r.Context(), key, strings.NewReader(string(body)), int64(len(body))); err != nil {
		logging.Error("upload failed", zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	logging.Info("file uploaded", zap.String("key", key), zap.Int("size", len(body)))
	s.sendJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"key":     key,
		"size":    len(body),
	})
}

func (s *Server) handleSaveRound(w http.ResponseWriter, r *http.Request) {
	var round protocol.Round
	if err := json.NewDecoder(r.Body).Decode(&round); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid round body")
		return
	}
	if round.Folder == "" || round.Ticker == "" {
		s.sendError(w, http.StatusBadRequest, "folder and ticker required")
		return
	}

	if err := s.rounds.SaveRound(r.Context(), &round); err != nil {
		logging.Error("save round failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to save round")
		return
	}

	s.sendJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"id":      round.ID,
	})
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	rounds, err := s.rounds.ListRounds(r.Context(), folder, limit)
	if err != nil {
		logging.Error("list rounds failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.RoundsResponse{
		Success: true,
		Data:    rounds,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.rounds.FolderStats(r.Context(), r.URL.Query().Get("folder"))
	if err != nil {
		logging.Error("stats query failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    stats,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		s.sendError(w, http.StatusNotFound, "events not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Success: false,
		Message: message,
	})
}
