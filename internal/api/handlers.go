package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hyperifyio/speakloud/internal/metadata"
	"github.com/hyperifyio/speakloud/internal/pipeline"
	"github.com/hyperifyio/speakloud/internal/tts"
)

const (
	defaultListLimit = 5
	maxRequestBytes  = 1 << 20
)

type processRequest struct {
	URL       string   `json:"url"`
	Hashtags  []string `json:"hashtags"`
	VoiceName string   `json:"voice_name"`
}

type batchRequest struct {
	URLs      []string `json:"urls"`
	Hashtags  []string `json:"hashtags"`
	VoiceName string   `json:"voice_name"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps pipeline failures to HTTP status codes.
func statusFor(err error) int {
	var ce *tts.ConversionError
	switch {
	case errors.Is(err, pipeline.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrExtractFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, metadata.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.svc.Process(r.Context(), strings.TrimSpace(req.URL), req.Hashtags, req.VoiceName)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		jsonError(w, "urls is required", http.StatusBadRequest)
		return
	}
	urls := make([]string, len(req.URLs))
	for i, u := range req.URLs {
		urls[i] = strings.TrimSpace(u)
	}
	reports := s.svc.ProcessBatch(r.Context(), urls, req.Hashtags, req.VoiceName)
	writeJSON(w, http.StatusOK, map[string]any{"results": reports, "failed": pipeline.Failed(reports)})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	u := strings.TrimSpace(r.URL.Query().Get("url"))
	if u == "" {
		jsonError(w, "url query parameter is required", http.StatusBadRequest)
		return
	}
	sum, err := s.svc.Preview(r.Context(), u)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		list []metadata.Article
		err  error
	)
	if tag := strings.TrimSpace(q.Get("hashtag")); tag != "" {
		list, err = s.store.ListByHashtag(r.Context(), tag)
	} else {
		limit := defaultListLimit
		if v := q.Get("limit"); v != "" {
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n < 0 {
				jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		list, err = s.store.List(r.Context(), limit)
	}
	if err != nil {
		jsonError(w, "failed to list articles: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": list})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateHashtags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hashtags []string `json:"hashtags"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Hashtags == nil {
		req.Hashtags = []string{}
	}
	id := chi.URLParam(r, "id")
	if err := s.store.Update(r.Context(), id, metadata.Patch{Hashtags: req.Hashtags}); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	a, err := s.store.Get(r.Context(), id)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleLogListen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.LogListen(r.Context(), id); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	s.writeListenCount(w, r, id)
}

func (s *Server) handleListenCount(w http.ResponseWriter, r *http.Request) {
	s.writeListenCount(w, r, chi.URLParam(r, "id"))
}

func (s *Server) writeListenCount(w http.ResponseWriter, r *http.Request, id string) {
	n, err := s.store.ListenCount(r.Context(), id)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "listens": n})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
