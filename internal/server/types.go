// Package server provides the HTTP server for the compilation API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateConnectionRequest is the HTTP request body for registering a
// provider connection. The API secret is encrypted at rest and never
// returned by any endpoint.
type CreateConnectionRequest struct {
	// AccountID is the provider account (cloud) identifier.
	AccountID string `json:"account_id" validate:"required"`
	// APIKey is the public half of the account key pair.
	APIKey string `json:"api_key" validate:"required"`
	// APISecret is the account secret, stored encrypted.
	APISecret string `json:"api_secret" validate:"required"`
	// Name is a human-readable label for the connection.
	Name string `json:"name" validate:"required"`
}

// ConnectionResponse describes a registered connection.
type ConnectionResponse struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCompilationRequest is the HTTP request body for starting a
// compilation. A non-empty PublicIDs selects manual mode; otherwise
// Count body images are drawn at random.
type CreateCompilationRequest struct {
	// ConnectionID selects the provider account to compile against.
	ConnectionID string `json:"connection_id" validate:"required"`
	// PublicIDs is the ordered manual image list.
	PublicIDs []string `json:"public_ids,omitempty"`
	// Count is the number of body images in random mode.
	Count int `json:"count" validate:"gte=0"`
	// SecondsPerImage is how long each image is shown.
	SecondsPerImage float64 `json:"seconds_per_image" validate:"required,gt=0"`
	// Transition is the requested crossfade duration in seconds.
	Transition float64 `json:"transition" validate:"gte=0"`
	// Zoom is the pan/zoom amplitude.
	Zoom float64 `json:"zoom" validate:"required,gt=0,lte=0.3"`
	// FadeToBlack enables the opening and closing black fades.
	FadeToBlack bool `json:"fade_to_black"`
}

// CreateCompilationResponse is the HTTP response after accepting a
// compilation request.
type CreateCompilationResponse struct {
	// ID is the unique identifier for the compilation.
	ID string `json:"id"`
	// Stage is the initial pipeline stage.
	Stage string `json:"stage"`
}

// TagOutcomeResponse reports one best-effort tag update.
type TagOutcomeResponse struct {
	Target string `json:"target"`
	Error  string `json:"error,omitempty"`
}

// RecordResponse describes a persisted compilation result.
type RecordResponse struct {
	ID              string    `json:"id"`
	ConnectionID    string    `json:"connection_id"`
	ConnectionName  string    `json:"connection_name,omitempty"`
	PublicID        string    `json:"public_id"`
	URL             string    `json:"url"`
	SecureURL       string    `json:"secure_url"`
	ArchiveURL      string    `json:"archive_url,omitempty"`
	SourcePublicIDs []string  `json:"source_public_ids"`
	ImageCount      int       `json:"image_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// CompilationResponse is the HTTP response for compilation status.
type CompilationResponse struct {
	// ID is the unique identifier for the compilation.
	ID string `json:"id"`
	// Stage is the current pipeline stage.
	Stage string `json:"stage"`
	// FailedStage is the stage the pipeline failed in, if any.
	FailedStage string `json:"failed_stage,omitempty"`
	// Error contains the failure reason if the compilation failed.
	Error string `json:"error,omitempty"`
	// PlanPublicIDs is the resolved image plan in render order.
	PlanPublicIDs []string `json:"plan_public_ids,omitempty"`
	// Record is the persisted result, present once the upload landed.
	Record *RecordResponse `json:"record,omitempty"`
	// TagOutcomes reports the best-effort source tagging.
	TagOutcomes []TagOutcomeResponse `json:"tag_outcomes,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
