package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/ingest"
	"github.com/pustakalab/pustaka/internal/models"
	"github.com/pustakalab/pustaka/internal/rag"
)

// maxMessageLen caps the chat message length in characters.
const maxMessageLen = 2000

type chatRequest struct {
	Message    string `json:"message"`
	SearchMode string `json:"search_mode"`
}

// decodeChatRequest parses and validates a chat request body, writing the
// error response itself when validation fails.
func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, http.StatusBadRequest, "message is required")
		return nil, false
	}
	if utf8.RuneCountInString(req.Message) > maxMessageLen {
		s.respondError(w, http.StatusBadRequest, "message must not exceed 2000 characters")
		return nil, false
	}
	return &req, true
}

// handleChat streams the answer as server-sent events, one JSON event per
// frame. Client disconnect cancels the in-flight provider request through the
// request context.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	mode := rag.ParseSearchMode(req.SearchMode)
	s.logger.Debug("chat request", zap.String("mode", string(mode)))

	stream := s.assistant.Ask(r.Context(), req.Message, mode)
	defer stream.Close()

	for {
		ev, ok := stream.Next()
		if !ok {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("failed to marshal stream event", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleChatAsk answers a question in a single JSON response.
func (s *Server) handleChatAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	result := s.assistant.AskSync(r.Context(), req.Message, rag.ParseSearchMode(req.SearchMode))
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	filter := models.BookFilter{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}
	books, err := s.storage.ListBooks(r.Context(), filter)
	if err != nil {
		s.logger.Error("list books failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"books": books})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := s.storage.GetBook(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}
	s.respondJSON(w, http.StatusOK, book)
}

type createBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	RackLocation  string `json:"rack_location"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	PublishedYear string `json:"published_year"`
}

// handleCreateBook adds a catalog record and embeds it into the index.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Author == "" {
		s.respondError(w, http.StatusBadRequest, "title and author are required")
		return
	}

	book := &models.Book{
		Title:         req.Title,
		Author:        req.Author,
		RackLocation:  req.RackLocation,
		Category:      req.Category,
		Description:   req.Description,
		PublishedYear: req.PublishedYear,
	}
	if err := s.storage.CreateBook(r.Context(), book); err != nil {
		s.logger.Error("create book failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := s.pipeline.IngestBook(r.Context(), book); err != nil {
		s.logger.Error("book ingestion failed", zap.Int64("book_id", book.ID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusCreated, book)
}

// handleIngestBook embeds one catalog record into the index.
func (s *Server) handleIngestBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := s.storage.GetBook(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}

	n, err := s.pipeline.IngestBook(r.Context(), book)
	if err != nil {
		s.logger.Error("book ingestion failed", zap.Int64("book_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      fmt.Sprintf("Book '%s' ingested successfully", book.Title),
		"chunks_count": n,
	})
}

func (s *Server) handleReingestBooks(w http.ResponseWriter, r *http.Request) {
	total, err := s.pipeline.ReingestBooks(r.Context())
	if err != nil {
		s.logger.Error("reingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "reingested", "vectors": total})
}

// handleUploadDocument accepts a multipart PDF upload, stores it under a
// generated name, and records it as pending.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds 20MB limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		s.respondError(w, http.StatusUnsupportedMediaType, "only PDF files are accepted")
		return
	}

	doc, err := s.pipeline.SaveUpload(r.Context(), file, header.Filename)
	if err != nil {
		s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.storage.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

// handleIngestDocument runs the pipeline for an uploaded document. A document
// already being processed is rejected with 409; a PDF with no extractable
// text with 422.
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if doc.Status == models.DocumentStatusProcessing {
		s.respondError(w, http.StatusConflict, "document is already being processed")
		return
	}

	result, err := s.pipeline.IngestDocument(r.Context(), doc)
	if err != nil {
		s.logger.Error("ingestion failed", zap.Int64("document_id", id), zap.Error(err))
		if errors.Is(err, ingest.ErrNoText) {
			s.respondError(w, http.StatusUnprocessableEntity, "no text could be extracted from the PDF")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	s.logger.Debug("delete document request", zap.Int64("id", id))
	if err := s.pipeline.DeleteDocument(r.Context(), id); err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	infos, err := s.models.ListModels(r.Context())
	if err != nil {
		s.logger.Error("list models failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"models": infos})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookCount, err := s.storage.CountBooks(ctx)
	if err != nil {
		s.logger.Error("status: count books failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"books":     bookCount,
		"documents": docCount,
		"config": map[string]interface{}{
			"chat_model":      s.config.Gemini.ChatModel,
			"embedding_model": s.config.Gemini.EmbeddingModel,
			"dimensions":      s.config.Gemini.Dimensions,
			"chunk_size":      s.config.Ingest.ChunkSize,
			"chunk_overlap":   s.config.Ingest.ChunkOverlap,
			"top_k":           s.config.Chat.TopK,
		},
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
