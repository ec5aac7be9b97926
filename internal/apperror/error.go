package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// AppError is a coded error carrying its HTTP status and an optional cause.
type AppError struct {
	Code       Code      `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Context    string    `json:"context,omitempty"`
	TraceID    string    `json:"traceId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	cause      error
	stack      []uintptr
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithSpan copies the trace id of the active span in ctx, if any.
func (e *AppError) WithSpan(ctx context.Context) *AppError {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		e.TraceID = sc.TraceID().String()
	}
	return e
}

// ToResponse is the JSON body returned to API clients.
func (e *AppError) ToResponse() map[string]any {
	body := map[string]any{
		"code":      e.Code,
		"message":   e.Message,
		"timestamp": e.Timestamp.Format(time.RFC3339),
	}
	if e.Context != "" {
		body["context"] = e.Context
	}
	if e.TraceID != "" {
		body["traceId"] = e.TraceID
	}
	return map[string]any{"error": body}
}

// LogArgs returns key/value pairs for the structured logger.
func (e *AppError) LogArgs() []any {
	args := []any{"code", string(e.Code), "status", e.StatusCode}
	if e.Context != "" {
		args = append(args, "context", e.Context)
	}
	if e.cause != nil {
		args = append(args, "cause", e.cause.Error())
	}
	if len(e.stack) > 0 {
		args = append(args, "stack", e.formatStack())
	}
	return args
}

func (e *AppError) formatStack() string {
	var sb strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

func captureStack() []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// New creates an AppError with the default message and status for code.
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:       code,
		Message:    Message(code),
		StatusCode: defaultStatus(code),
		Timestamp:  time.Now(),
		stack:      captureStack(),
	}
	for _, opt := range opts {
		opt(err)
	}
	return err
}

type Option func(*AppError)

func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

func WithStatusCode(statusCode int) Option {
	return func(e *AppError) {
		e.StatusCode = statusCode
	}
}

func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// Wrap returns err's AppError when it has one, otherwise a new AppError
// with code wrapping err. Wrap(nil) is nil.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if context != "" && appErr.Context == "" {
			appErr.Context = context
		}
		return appErr
	}
	return New(code, WithContext(context), WithCause(err))
}

// From is Wrap with CodeInternalError, used at API boundaries.
func From(err error) *AppError {
	return Wrap(err, CodeInternalError, "")
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode returns CodeUnknownError for foreign errors.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// StatusCode returns the HTTP status for err, 500 for foreign errors.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// statusByCode pins codes whose status the naming rules below would get wrong.
// Trade preconditions are client errors even when the target is missing.
var statusByCode = map[Code]int{
	CodeSigningKeyMissing:    http.StatusBadRequest,
	CodeNoOpportunity:        http.StatusBadRequest,
	CodeOpportunityNotFound:  http.StatusBadRequest,
	CodeLockContention:       http.StatusBadRequest,
	CodeValidationFailed:     http.StatusBadRequest,
	CodeBelowProfitThreshold: http.StatusBadRequest,
	CodeActorIDRequired:      http.StatusBadRequest,
	CodeRiskLimitHalted:      http.StatusBadRequest,
	CodeRateLimitExceeded:    http.StatusTooManyRequests,
	CodeCircuitOpen:          http.StatusServiceUnavailable,
	CodeSourceUnavailable:    http.StatusServiceUnavailable,
	CodeServiceUnavailable:   http.StatusServiceUnavailable,
}

func defaultStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}

	c := string(code)
	switch {
	case strings.Contains(c, "NOT_FOUND"):
		return http.StatusNotFound
	case strings.Contains(c, "INVALID"),
		strings.Contains(c, "REQUIRED"),
		strings.Contains(c, "VALIDATION"):
		return http.StatusBadRequest
	case strings.Contains(c, "CONNECTION"),
		strings.Contains(c, "TIMEOUT"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
