// Package api exposes the conversion and chat surface over HTTP for local
// frontends, plus an MCP server for agent integration. The HTTP routes
// mirror the conversion backend's own (/convert_async, /progress,
// /download) so a frontend written against the backend can point at the
// daemon unchanged.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaani-tts/vaani/internal/chat"
	"github.com/vaani-tts/vaani/internal/history"
	"github.com/vaani-tts/vaani/internal/openrouter"
	"github.com/vaani-tts/vaani/internal/pipeline"
)

const maxConvertBodySize = 10 << 20 // 10MB
const maxChatBodySize = 1 << 20     // 1MB

// DownloadName is the filename converted audio is served and saved under
// when the caller does not choose one.
const DownloadName = "mixed_tts_output.mp3"

// Deps holds what the HTTP handlers need.
type Deps struct {
	Converter *pipeline.Converter
	Session   *chat.Session
	History   *history.Store
	Token     string // optional; empty disables bearer auth
}

// NewHandler returns the daemon's HTTP handler.
func NewHandler(deps Deps) http.Handler {
	jobs := newJobRegistry()

	r := chi.NewRouter()
	if deps.Token != "" {
		r.Use(BearerAuth(deps.Token))
	}

	r.Get("/health", handleHealth)
	r.Post("/convert_async", handleConvertAsync(deps, jobs))
	r.Get("/progress/{job_id}", handleProgress(jobs))
	r.Get("/download/{job_id}", handleDownload(deps))
	r.Post("/chat", handleChat(deps))
	r.Post("/chat/reset", handleChatReset(deps))
	r.Post("/chat/speak", handleChatSpeak(deps, jobs))
	r.Get("/history", handleHistory(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleConvertAsync(deps Deps, jobs *jobRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxConvertBodySize)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(maxConvertBodySize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		req := pipeline.Request{
			Text: r.FormValue("text"),
		}
		source := "text"

		if file, header, err := r.FormFile("file"); err == nil {
			data, readErr := io.ReadAll(file)
			file.Close()
			if readErr != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "reading uploaded file: %v", readErr)
				return
			}
			req.File = &pipeline.FileInput{Name: header.Filename, Data: data}
			source = header.Filename
		}

		if instruction := r.FormValue("instruction"); instruction != "" {
			req.UseAI = true
			req.Instruction = instruction
		}

		switch backend := r.FormValue("backend"); backend {
		case "", string(pipeline.BackendAsync):
			req.Backend = pipeline.BackendAsync
		case string(pipeline.BackendSync):
			req.Backend = pipeline.BackendSync
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown backend %q", backend)
			return
		}

		if deps.Converter.Busy() {
			httpError(w, http.StatusConflict, "busy_error", "a conversion is already in progress")
			return
		}

		jobID := startConversion(deps, jobs, req, source)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
	}
}

// startConversion registers a local job and runs the conversion in the
// background, detached from the request context.
func startConversion(deps Deps, jobs *jobRegistry, req pipeline.Request, source string) string {
	jobID := uuid.New().String()
	jobs.create(jobID)
	if err := deps.History.CreateConversion(jobID, source, string(req.Backend)); err != nil {
		slog.Error("recording conversion", "job_id", jobID, "error", err)
	}

	go func() {
		jobs.setRunning(jobID)
		jobs.setMessage(jobID, "converting")
		if err := deps.History.MarkRunning(jobID); err != nil {
			slog.Error("marking conversion running", "job_id", jobID, "error", err)
		}

		ev := pipeline.Events{
			OnProgress: func(percent int) { jobs.setPercent(jobID, percent) },
		}
		art, err := deps.Converter.Convert(context.Background(), req, ev)
		if err != nil {
			jobs.fail(jobID, err.Error())
			if herr := deps.History.MarkFailed(jobID, err.Error()); herr != nil {
				slog.Error("marking conversion failed", "job_id", jobID, "error", herr)
			}
			slog.Warn("conversion failed", "job_id", jobID, "kind", pipeline.Classify(err), "error", err)
			return
		}

		// Persist the audio before the job reads as finished, so a download
		// issued right after a final progress poll never misses it.
		if herr := deps.History.MarkFinished(jobID, art.Data); herr != nil {
			slog.Error("marking conversion finished", "job_id", jobID, "error", herr)
		}
		jobs.finish(jobID)
		slog.Info("conversion finished", "job_id", jobID, "bytes", len(art.Data))
	}()

	return jobID
}

type progressResponse struct {
	Status  string `json:"status"`
	Percent *int   `json:"percent,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func handleProgress(jobs *jobRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "job_id")

		j, ok := jobs.get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "unknown job %q", id)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(progressResponse{
			Status:  j.Status,
			Percent: j.Percent,
			Message: j.Message,
			Error:   j.Err,
		})
	}
}

func handleDownload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "job_id")

		audio, err := deps.History.Audio(id)
		if errors.Is(err, history.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no audio for job %q", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading audio: %v", err)
			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DownloadName))
		w.Write(audio)
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		if err := deps.History.AppendChatMessage(openrouter.RoleUser, req.Message); err != nil {
			slog.Error("recording chat message", "error", err)
		}

		reply, err := deps.Session.Send(r.Context(), req.Message)
		if errors.Is(err, openrouter.ErrNoAPIKey) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "chat failed: %v", err)
			return
		}

		if err := deps.History.AppendChatMessage(openrouter.RoleAssistant, reply); err != nil {
			slog.Error("recording chat message", "error", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"response": reply})
	}
}

func handleChatReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Session.Reset()
		if err := deps.History.ClearChat(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "clearing transcript: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
	}
}

func handleChatSpeak(deps Deps, jobs *jobRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last := deps.Session.LastResponse()
		if last == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no assistant response to speak yet")
			return
		}

		if deps.Converter.Busy() {
			httpError(w, http.StatusConflict, "busy_error", "a conversion is already in progress")
			return
		}

		req := pipeline.Request{Text: last, Backend: pipeline.BackendAsync}
		jobID := startConversion(deps, jobs, req, "chat")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
	}
}

type conversionResponse struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Backend    string `json:"backend"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		conversions, err := deps.History.RecentConversions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing conversions: %v", err)
			return
		}

		out := make([]conversionResponse, len(conversions))
		for i, c := range conversions {
			out[i] = conversionResponse{
				ID:        c.ID,
				Source:    c.Source,
				Backend:   c.Backend,
				Status:    c.Status,
				Error:     c.Error,
				CreatedAt: c.CreatedAt.Format(time.RFC3339),
			}
			if c.FinishedAt != nil {
				out[i].FinishedAt = c.FinishedAt.Format(time.RFC3339)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
