package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/docsink/internal/ingest"
	"github.com/hyperjump/docsink/internal/models"
	"github.com/hyperjump/docsink/internal/storage"
)

const defaultListLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	byStatus, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var total int64
	counts := map[string]int64{}
	for status, n := range byStatus {
		counts[string(status)] = n
		total += n
	}

	resp := map[string]interface{}{
		"documents": map[string]interface{}{
			"total":     total,
			"by_status": counts,
		},
	}

	if stats, err := s.store.ImageStats(ctx); err == nil {
		resp["images"] = stats
	} else {
		s.logger.Warn("status: image stats failed", zap.Error(err))
	}
	if s.queue != nil {
		resp["queue_pending"] = s.queue.Pending()
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	if diskBytes, err := storage.DiskUsageBytes(s.cfg.DatabasePath, s.cfg.Images.BasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"database_path": s.cfg.DatabasePath,
		"images_path":   s.cfg.Images.BasePath,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := models.DocumentStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	limit := queryInt(q.Get("limit"), defaultListLimit)
	offset := queryInt(q.Get("offset"), 0)

	docs, err := s.store.ListDocuments(r.Context(), status, limit, offset)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	meta, err := s.store.GetMetadata(r.Context(), id)
	if err != nil {
		s.logger.Warn("get metadata failed", zap.String("id", id), zap.Error(err))
		meta = map[string]string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"document": doc,
		"metadata": meta,
	})
}

func (s *Server) handleDocumentLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	q := r.URL.Query()
	level := models.LogLevel(q.Get("level"))
	if level != "" && !level.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid level filter")
		return
	}
	limit := queryInt(q.Get("limit"), 0)
	offset := queryInt(q.Get("offset"), 0)

	logs, err := s.store.ListLogs(r.Context(), id, level, limit, offset)
	if err != nil {
		s.logger.Error("list logs failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []*models.ProcessingLogEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

func (s *Server) handleDocumentImages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	images, err := s.store.ListImages(r.Context(), id)
	if err != nil {
		s.logger.Error("list images failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if images == nil {
		images = []*models.DocumentImage{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

type ingestRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.logger.Debug("ingest request", zap.String("path", req.Path))

	out, err := s.pipeline.IngestFileForced(r.Context(), req.Path)
	if err != nil {
		var verr *ingest.ValidationError
		switch {
		case errors.As(err, &verr):
			s.respondError(w, http.StatusBadRequest, verr.Reason)
		case errors.Is(err, os.ErrNotExist):
			s.respondError(w, http.StatusNotFound, "file not found")
		default:
			s.logger.Error("ingest failed", zap.String("path", req.Path), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": out.DocumentID,
		"status":      out.Status,
		"skipped":     out.Skipped,
		"warnings":    out.Warnings,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.pipeline.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("deletion failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
