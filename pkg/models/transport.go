package models

// AnalysisRequest is the body of POST /analyze_leaf
type AnalysisRequest struct {
	// Image is base64 text, optionally with a data URL prefix.
	Image string `json:"image"`
	// MediaType optionally declares the image format; it must match the image content.
	MediaType string `json:"media_type,omitempty"`
}

// AnalysisResult is the successful response of POST /analyze_leaf
type AnalysisResult struct {
	Analysis string `json:"analysis"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Type      string `json:"type,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is returned by the liveness endpoints
type HealthResponse struct {
	Status string `json:"status"`
}
