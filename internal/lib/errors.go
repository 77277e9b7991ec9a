package lib

import (
	"fmt"
	"strings"
)

// VelaError represents a user-friendly error with context and guidance
type VelaError struct {
	Category    ErrorCategory
	Message     string   // Short description of what went wrong
	Cause       error    // Underlying error
	Guidance    []string // What the user can do to fix it
	HTTPStatus  int      // HTTP status code if applicable
	IsRetryable bool     // Can this error be automatically retried?
}

// ErrorCategory classifies errors for better UX
type ErrorCategory string

const (
	CategoryNetwork       ErrorCategory = "network"
	CategoryFileSystem    ErrorCategory = "filesystem"
	CategoryProtocol      ErrorCategory = "protocol"
	CategoryJob           ErrorCategory = "job"
	CategoryConfiguration ErrorCategory = "configuration"
)

// Error implements the error interface
func (e *VelaError) Error() string {
	var sb strings.Builder

	// Category prefix for clarity
	sb.WriteString(fmt.Sprintf("[%s] ", strings.ToUpper(string(e.Category))))
	sb.WriteString(e.Message)

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if e.HTTPStatus > 0 {
		sb.WriteString(fmt.Sprintf(" (HTTP %d)", e.HTTPStatus))
	}

	return sb.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility
func (e *VelaError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a formatted message suitable for displaying to end users
func (e *VelaError) UserMessage() string {
	var sb strings.Builder

	sb.WriteString("Error: ")
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	if len(e.Guidance) > 0 {
		sb.WriteString("\nHow to fix:\n")
		for i, guide := range e.Guidance {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, guide))
		}
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("\nTechnical details: %v\n", e.Cause))
	}

	return sb.String()
}

// ErrTransport creates an error for a failed network request. No partial job
// state is assumed valid after one of these.
func ErrTransport(url string, cause error) *VelaError {
	return &VelaError{
		Category: CategoryNetwork,
		Message:  fmt.Sprintf("Cannot reach archive service at %s", url),
		Cause:    cause,
		Guidance: []string{
			"Check your network connection",
			fmt.Sprintf("Verify the URL is correct: %s", url),
			"The archive may be down for maintenance",
		},
		IsRetryable: true,
	}
}

// ErrUnauthorized creates an error for rejected credentials
func ErrUnauthorized(url string) *VelaError {
	return &VelaError{
		Category:   CategoryNetwork,
		Message:    "Archive rejected the supplied credentials",
		HTTPStatus: 401,
		Guidance: []string{
			"Check your username and password",
			fmt.Sprintf("Verify your account has access to %s", url),
		},
		IsRetryable: false,
	}
}

// ErrNoTokens creates an error for a job creation attempt with no
// authenticated tokens. Detected before any network call: a job with zero ID
// parameters is meaningless.
func ErrNoTokens() *VelaError {
	return &VelaError{
		Category: CategoryConfiguration,
		Message:  "No accessible data products to submit",
		Guidance: []string{
			"Verify your account has been granted access to the requested products",
			"Check that the product identifiers are correct",
		},
		IsRetryable: false,
	}
}

// ErrInvalidConfig creates an error for configuration validation failures
func ErrInvalidConfig(field string, reason string) *VelaError {
	return &VelaError{
		Category: CategoryConfiguration,
		Message:  fmt.Sprintf("Invalid configuration: %s", reason),
		Guidance: []string{
			fmt.Sprintf("Check the '%s' field in your config file", field),
			"Compare with vela.example.yaml for correct format",
		},
		IsRetryable: false,
	}
}

// ErrFileSystem wraps a local filesystem failure
func ErrFileSystem(path string, cause error) *VelaError {
	return &VelaError{
		Category: CategoryFileSystem,
		Message:  fmt.Sprintf("Filesystem operation failed for %s", path),
		Cause:    cause,
		Guidance: []string{
			"Check the path exists and is writable",
			"Check available disk space",
		},
		IsRetryable: false,
	}
}
