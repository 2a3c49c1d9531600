// Package http implements the HTTP transport for PathLight.
//
// It exposes the multipart POST /dispatch endpoint used by the pilot client,
// the token-gated feedback reads, a liveness probe and the Swagger UI.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/pathlight/docs" // registers the OpenAPI document
	"github.com/nadzzz/pathlight/internal/apierror"
	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/dispatch"
	"github.com/nadzzz/pathlight/internal/message"
	"github.com/nadzzz/pathlight/internal/metrics"
	"github.com/nadzzz/pathlight/internal/transport"
)

// RequestIDHeader carries the per-request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Form fields above this size are rejected; only the audio part may be large.
const maxFieldBytes = 1 << 10

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port      int
	maxUpload int64
	feedback  *transport.Feedback
	server    *http.Server
}

// New creates a new HTTP transport. fb may be nil to disable the feedback routes.
func New(cfg config.HTTPConfig, fb *transport.Feedback) *Transport {
	limit := cfg.MaxUploadBytes
	if limit <= 0 {
		limit = message.MaxAudioBytes
	}
	return &Transport{port: cfg.Port, maxUpload: limit, feedback: fb}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Routes builds the request multiplexer.
func (t *Transport) Routes(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", t.handleHealth)

	// POST /dispatch: multipart audio upload, returns transcript/reply/action.
	mux.HandleFunc("POST /dispatch", func(w http.ResponseWriter, r *http.Request) {
		t.handleDispatch(w, r, handler)
	})

	if t.feedback != nil {
		mux.HandleFunc("GET /feedback", t.handleFeedbackList)
		mux.HandleFunc("GET /feedback/latest", t.handleFeedbackLatest)
	}

	// Swagger UI serves the registered OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return withRequestID(mux)
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

type ctxKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// handleHealth reports liveness.
//
// @Summary  Liveness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]bool
// @Router   /health [get]
func (t *Transport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleDispatch processes a POST /dispatch request.
//
// @Summary     Dispatch a recorded utterance
// @Description Transcribes the audio, extracts at most one pilot action and returns the reply,
// @Description optionally with synthesized speech. 502/503/504 are passed through from the
// @Description speech provider; clients retry those once.
// @Tags        dispatch
// @Accept      multipart/form-data
// @Produce     json
// @Param       audio  formData  file    true   "Recorded utterance (.m4a, .mp3, .wav, .webm, .aac; at most 25 MiB)"
// @Param       mode   formData  string  false  "Reply persona"  default(talk)
// @Param       voice  formData  string  false  "TTS voice"      default(nova)
// @Param       tts    formData  string  false  "1 to synthesize the reply, 0 for text only"  default(1)
// @Success     200  {object}  message.DispatchResult
// @Failure     400  {object}  errorBody  "Missing audio file"
// @Failure     413  {object}  errorBody  "Audio too large"
// @Failure     415  {object}  errorBody  "Unsupported audio format"
// @Failure     429  {object}  errorBody  "Upstream rate limited"
// @Failure     500  {object}  errorBody  "Internal error"
// @Failure     503  {object}  errorBody  "Upstream unavailable"
// @Router      /dispatch [post]
func (t *Transport) handleDispatch(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	start := time.Now()
	msg := &message.Message{
		ID:        requestID(r),
		TTS:       true,
		Timestamp: time.Now().UTC(),
	}

	status := http.StatusOK
	defer func() { metrics.RecordDispatch(t.Name(), status, time.Since(start)) }()

	if err := t.readForm(w, r, msg); err != nil {
		status = t.writeError(w, r, err)
		return
	}

	result, err := handler(r.Context(), msg)
	if err != nil {
		status = t.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readForm streams the multipart body into msg. Only the audio part is
// buffered; it is bounded by the upload limit.
func (t *Transport) readForm(w http.ResponseWriter, r *http.Request, msg *message.Message) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return apierror.Input(http.StatusBadRequest, "expected multipart/form-data")
	}
	r.Body = http.MaxBytesReader(w, r.Body, t.maxUpload+1<<20)

	mr, err := r.MultipartReader()
	if err != nil {
		return apierror.Input(http.StatusBadRequest, "malformed multipart body")
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return bodyError(err)
		}
		if err := t.readPart(part, msg); err != nil {
			part.Close()
			return err
		}
		part.Close()
	}
	return dispatch.Validate(msg)
}

func (t *Transport) readPart(part *multipart.Part, msg *message.Message) error {
	switch part.FormName() {
	case "audio":
		if !message.AllowedExtension(part.FileName()) {
			return apierror.Input(http.StatusUnsupportedMediaType, "unsupported audio format")
		}
		data, err := io.ReadAll(io.LimitReader(part, t.maxUpload+1))
		if err != nil {
			return bodyError(err)
		}
		if int64(len(data)) > t.maxUpload {
			return apierror.Input(http.StatusRequestEntityTooLarge, "audio file too large")
		}
		msg.Audio = data
		msg.Filename = part.FileName()
		msg.ContentType = part.Header.Get("Content-Type")
	case "mode":
		v, err := readField(part)
		if err != nil {
			return err
		}
		msg.Mode = v
	case "voice":
		v, err := readField(part)
		if err != nil {
			return err
		}
		msg.Voice = v
	case "tts":
		v, err := readField(part)
		if err != nil {
			return err
		}
		msg.TTS = parseFlag(v)
	}
	return nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", bodyError(err)
	}
	if len(data) > maxFieldBytes {
		return "", apierror.Input(http.StatusBadRequest, fmt.Sprintf("field %q too long", part.FormName()))
	}
	return strings.TrimSpace(string(data)), nil
}

// parseFlag reads the tts field; anything but an explicit "off" value is on.
func parseFlag(v string) bool {
	switch strings.ToLower(v) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apierror.Input(http.StatusRequestEntityTooLarge, "audio file too large")
	}
	return apierror.Wrap(apierror.KindInput, http.StatusBadRequest, "malformed multipart body", err)
}

// handleFeedbackList returns the most recent feedback notes.
//
// @Summary  List recent feedback
// @Tags     feedback
// @Produce  json
// @Param    token  query  string  false  "Feedback token"
// @Param    limit  query  int     false  "Maximum items (1-200)"  default(50)
// @Success  200  {array}   feedback.Item
// @Failure  400  {object}  errorBody
// @Failure  401  {object}  errorBody
// @Router   /feedback [get]
func (t *Transport) handleFeedbackList(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := t.feedback.Authorize(token); err != nil {
		t.writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n == 0 {
			t.writeError(w, r, apierror.Input(http.StatusBadRequest, "limit must be between 1 and 200"))
			return
		}
		limit = n
	}
	items, err := t.feedback.List(token, limit)
	if err != nil {
		t.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleFeedbackLatest returns the newest feedback note or null.
//
// @Summary  Latest feedback
// @Tags     feedback
// @Produce  json
// @Param    token  query  string  false  "Feedback token"
// @Success  200  {object}  feedback.Item
// @Failure  401  {object}  errorBody
// @Router   /feedback/latest [get]
func (t *Transport) handleFeedbackLatest(w http.ResponseWriter, r *http.Request) {
	item, err := t.feedback.Latest(r.URL.Query().Get("token"))
	if err != nil {
		t.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps err to a status and an opaque-where-needed message.
func (t *Transport) writeError(w http.ResponseWriter, r *http.Request, err error) int {
	status := apierror.HTTPStatus(err)
	logger := slog.With("request_id", requestID(r), "path", r.URL.Path, "status", status)
	if status >= 500 {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "error", err)
	}
	writeJSON(w, status, errorBody{Error: apierror.PublicMessage(err)})
	return status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
