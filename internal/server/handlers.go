package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/clipforge/clipforge-api/internal/compile"
	"github.com/clipforge/clipforge-api/internal/connection"
)

// userHeader carries the authenticated principal. The auth layer in
// front of this service resolves credentials and forwards the user id.
const userHeader = "X-User-ID"

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	compiler           *compile.Service
	connections        *connection.Service
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateCompilation only creates the compilation and
// returns immediately without starting the pipeline.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(compiler *compile.Service, connections *connection.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		compiler:           compiler,
		connections:        connections,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateConnection handles POST /connections requests.
func (h *Handlers) CreateConnection(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user is required", "MISSING_USER")
		return
	}

	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	conn, err := h.connections.Register(r.Context(), userID, req.AccountID, req.APIKey, req.APISecret, req.Name)
	if err != nil {
		h.logger.Error("failed to register connection",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to register connection", "CONNECTION_CREATE_FAILED")
		return
	}

	h.logger.Info("connection registered",
		slog.String("connection_id", conn.ID),
		slog.String("account_id", conn.AccountID),
	)

	writeJSON(w, http.StatusCreated, toConnectionResponse(conn))
}

// ListConnections handles GET /connections requests.
func (h *Handlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user is required", "MISSING_USER")
		return
	}

	conns, err := h.connections.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list connections",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list connections", "CONNECTION_LIST_FAILED")
		return
	}

	resp := make([]ConnectionResponse, 0, len(conns))
	for _, conn := range conns {
		resp = append(resp, toConnectionResponse(conn))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCompilation handles POST /compilations requests. The pipeline
// runs in the background; the response carries the id to poll.
func (h *Handlers) CreateCompilation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user is required", "MISSING_USER")
		return
	}

	var req CreateCompilationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := compile.CompileInput{
		UserID:          userID,
		ConnectionID:    req.ConnectionID,
		PublicIDs:       req.PublicIDs,
		Count:           req.Count,
		SecondsPerImage: req.SecondsPerImage,
		Transition:      req.Transition,
		Zoom:            req.Zoom,
		FadeToBlack:     req.FadeToBlack,
	}

	comp, err := h.compiler.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, compile.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
			return
		}
		h.logger.Error("failed to create compilation",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create compilation", "COMPILATION_CREATE_FAILED")
		return
	}

	// Run the pipeline with a detached context so the request ending
	// does not cancel the render.
	if h.enableAsyncProcess {
		go func(ctx context.Context, compID string, inp compile.CompileInput) {
			if processErr := h.compiler.Process(ctx, compID, inp); processErr != nil {
				h.logger.Error("background compilation failed",
					slog.String("compilation_id", compID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), comp.ID, input)
	}

	h.logger.Info("compilation accepted",
		slog.String("compilation_id", comp.ID),
		slog.String("connection_id", req.ConnectionID),
	)

	writeJSON(w, http.StatusAccepted, CreateCompilationResponse{
		ID:    comp.ID,
		Stage: string(comp.CurrentStage()),
	})
}

// GetCompilation handles GET /compilations/{id} requests.
func (h *Handlers) GetCompilation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user is required", "MISSING_USER")
		return
	}

	compID := r.PathValue("id")
	if compID == "" {
		writeError(w, http.StatusBadRequest, "compilation ID is required", "MISSING_COMPILATION_ID")
		return
	}

	comp, err := h.compiler.Get(r.Context(), compID)
	if err != nil {
		if errors.Is(err, compile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "compilation not found", "COMPILATION_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get compilation",
			slog.String("compilation_id", compID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get compilation", "COMPILATION_FETCH_FAILED")
		return
	}

	// Another user's compilation is indistinguishable from a missing one.
	if comp.UserID != userID {
		writeError(w, http.StatusNotFound, "compilation not found", "COMPILATION_NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, toCompilationResponse(comp))
}

// ListRecords handles GET /records requests.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user is required", "MISSING_USER")
		return
	}

	records, err := h.compiler.ListRecords(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list records",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list records", "RECORD_LIST_FAILED")
		return
	}

	resp := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toRecordResponse(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toConnectionResponse(conn *connection.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:        conn.ID,
		AccountID: conn.AccountID,
		Name:      conn.Name,
		CreatedAt: conn.CreatedAt,
	}
}

func toRecordResponse(record *compile.Record) RecordResponse {
	return RecordResponse{
		ID:              record.ID,
		ConnectionID:    record.ConnectionID,
		ConnectionName:  record.ConnectionName,
		PublicID:        record.PublicID,
		URL:             record.URL,
		SecureURL:       record.SecureURL,
		ArchiveURL:      record.ArchiveURL,
		SourcePublicIDs: record.SourcePublicIDs,
		ImageCount:      record.ImageCount,
		CreatedAt:       record.CreatedAt,
	}
}

func toCompilationResponse(comp *compile.Compilation) CompilationResponse {
	resp := CompilationResponse{
		ID:            comp.ID,
		Stage:         string(comp.Stage),
		FailedStage:   string(comp.FailedStage),
		Error:         comp.Error,
		PlanPublicIDs: comp.PlanPublicIDs,
	}
	if comp.Record != nil {
		record := toRecordResponse(comp.Record)
		resp.Record = &record
	}
	for _, outcome := range comp.TagOutcomes {
		resp.TagOutcomes = append(resp.TagOutcomes, TagOutcomeResponse{
			Target: outcome.Target,
			Error:  outcome.Error,
		})
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
