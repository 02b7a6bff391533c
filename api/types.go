// Package api defines the request and response payloads of the HTTP
// surface. Handlers live in api/handlers.
package api

import "time"

// GenerateRequest is the body of POST /api/models/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode,omitempty"`
}

// GenerationResponse reports an accepted or finished generation.
type GenerationResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	ModelID     string `json:"model_id,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// ModelInfo describes one tracked artifact.
type ModelInfo struct {
	ModelID          string    `json:"model_id"`
	Prompt           string    `json:"prompt"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	AvailableFormats []string  `json:"available_formats"`
	DownloadURL      string    `json:"download_url,omitempty"`
}

// ModelListResponse is the body of GET /api/models.
type ModelListResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Service  string   `json:"service"`
	Version  string   `json:"version"`
	Backends []string `json:"backends"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Backends  []string  `json:"backends"`
	Models    int       `json:"models"`
}
