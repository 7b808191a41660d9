package handler

import "github.com/99minutos/user-registry/internal/core/domain"

// ErrorResponse is the canonical error envelope for all API errors.
type ErrorResponse struct {
	Error      string             `json:"error"`
	Field      string             `json:"field,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}
