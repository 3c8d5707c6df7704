package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind represents the categories of errors the analysis pipeline can
// produce. File-access kinds abort an analysis; everything else is
// recovered locally and surfaces as degraded report content.
type ErrorKind string

const (
	KindFileNotFound   ErrorKind = "file_not_found"
	KindNotASourceFile ErrorKind = "not_a_source_file"
	KindFileTooLarge   ErrorKind = "file_too_large"
	KindKnowledgeDown  ErrorKind = "knowledge_unavailable"
	KindToolNotFound   ErrorKind = "external_tool_not_found"
	KindToolExecFailed ErrorKind = "external_tool_execution_failed"
	KindAnalysisFailed ErrorKind = "analysis_failed"
)

// AppError is a structured application error carrying its kind and cause.
type AppError struct {
	Kind      ErrorKind              `json:"kind"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is().
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Kind == appErr.Kind
	}
	return false
}

// IsFatal reports whether this error kind aborts the whole analysis.
// Only file-access precondition failures do.
func (e *AppError) IsFatal() bool {
	switch e.Kind {
	case KindFileNotFound, KindNotASourceFile, KindFileTooLarge:
		return true
	}
	return false
}

// WithDetails attaches key/value context to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// New creates a new application error.
func New(kind ErrorKind, message string, cause error) *AppError {
	return &AppError{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// Sentinel values for errors.Is checks against kinds.
var (
	ErrFileNotFound   = &AppError{Kind: KindFileNotFound}
	ErrNotASourceFile = &AppError{Kind: KindNotASourceFile}
	ErrFileTooLarge   = &AppError{Kind: KindFileTooLarge}
	ErrKnowledgeDown  = &AppError{Kind: KindKnowledgeDown}
	ErrToolNotFound   = &AppError{Kind: KindToolNotFound}
	ErrToolExecFailed = &AppError{Kind: KindToolExecFailed}
	ErrAnalysisFailed = &AppError{Kind: KindAnalysisFailed}
)

// NewFileNotFound creates a file-not-found error.
func NewFileNotFound(path string) *AppError {
	return New(KindFileNotFound, fmt.Sprintf("file not found: %s", path), nil)
}

// NewNotASourceFile creates an error for files that are not Solidity source.
func NewNotASourceFile(path string) *AppError {
	return New(KindNotASourceFile, fmt.Sprintf("not a Solidity source file: %s", path), nil)
}

// NewFileTooLarge creates an error for files over the size bound.
func NewFileTooLarge(path string, size, max int64) *AppError {
	return New(KindFileTooLarge, fmt.Sprintf("file too large: %s", path), nil).
		WithDetails(map[string]interface{}{"size": size, "max": max})
}

// NewKnowledgeUnavailable wraps a knowledge-backend failure. Callers must
// treat this as non-fatal and degrade to empty result sets.
func NewKnowledgeUnavailable(cause error) *AppError {
	return New(KindKnowledgeDown, "knowledge base unavailable", cause)
}

// NewToolNotFound creates an error for a missing external tool binary.
func NewToolNotFound(tool string) *AppError {
	return New(KindToolNotFound, fmt.Sprintf("external tool not installed: %s", tool), nil)
}

// NewToolExecFailed wraps an external tool process failure.
func NewToolExecFailed(tool string, cause error) *AppError {
	return New(KindToolExecFailed, fmt.Sprintf("external tool %s failed", tool), cause)
}

// NewAnalysisFailed wraps an unexpected internal fault.
func NewAnalysisFailed(message string, cause error) *AppError {
	return New(KindAnalysisFailed, message, cause)
}

// statusCodeForKind maps error kinds to HTTP status codes for the API
// surface.
func statusCodeForKind(kind ErrorKind) int {
	switch kind {
	case KindFileNotFound:
		return http.StatusNotFound
	case KindNotASourceFile, KindFileTooLarge:
		return http.StatusBadRequest
	case KindKnowledgeDown, KindToolNotFound, KindToolExecFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// APIResponse is the standardized JSON envelope for the HTTP surface.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
}

// SendError writes a structured error response.
func SendError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = NewAnalysisFailed("unexpected error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCodeForKind(appErr.Kind))
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: appErr})
}

// SendSuccess writes a structured success response.
func SendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}
