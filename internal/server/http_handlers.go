package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

// handleStatus reports the node identity and every key.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	keys := s.store.Keys()
	if keys == nil {
		keys = []string{}
	}
	s.writeHTTPResponse(w, http.StatusOK, StatusResponse{
		NodeID:   s.info.ID,
		TCPPort:  s.info.TCPPort,
		HTTPPort: s.info.HTTPPort,
		Keys:     keys,
	})
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(mux.Vars(r)["key"])
	if err != nil {
		s.writeHTTPText(w, http.StatusBadRequest, textBadRequest)
		return
	}

	value, found := s.store.Get(key)
	if !found {
		s.writeHTTPText(w, http.StatusNotFound, textNotFound)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, DataResponse{Key: key, Value: value})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == nil || req.Value == nil {
		s.writeHTTPText(w, http.StatusBadRequest, textBadRequest)
		return
	}

	if err := s.store.Set(*req.Key, *req.Value); err != nil {
		slog.Error("store error", "key", *req.Key, "error", err)
		s.writeHTTPText(w, http.StatusInternalServerError, textInternalError)
		return
	}
	s.writeHTTPText(w, http.StatusCreated, textOK)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Response helpers ---

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// writeHTTPText writes a bare string body, as every failure path does.
func (s *Server) writeHTTPText(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(message))
}
