package domain

import "fmt"

// Code is a stable numeric error code. The exact values are the contract;
// never renumber an existing one.
type Code int

const (
	CodeAuthenticationError     Code = 40100
	CodePermissionDeniedError   Code = 40300
	CodeNotFoundError           Code = 40400
	CodeConflictError           Code = 40900
	CodeCircularDependencyError Code = 40901
	CodeValidationError         Code = 42200
	CodeTemplateRenderError     Code = 42201
	CodeInternalError           Code = 50000
)

// AppError is the base of the typed error hierarchy raised by every internal
// layer. It is never logged-and-swallowed; it propagates to the API boundary
// for a single, uniform mapping into the response envelope.
type AppError struct {
	Code    Code
	Message string
	Detail  string
	Status  int
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

func newAppError(code Code, status int, message, detail string) *AppError {
	return &AppError{Code: code, Message: message, Detail: detail, Status: status}
}

func NewNotFoundError(message, detail string) *AppError {
	if message == "" {
		message = "resource not found"
	}
	return newAppError(CodeNotFoundError, 404, message, detail)
}

func NewValidationError(message, detail string) *AppError {
	if message == "" {
		message = "validation failed"
	}
	return newAppError(CodeValidationError, 422, message, detail)
}

func NewConflictError(message, detail string) *AppError {
	if message == "" {
		message = "resource conflict"
	}
	return newAppError(CodeConflictError, 409, message, detail)
}

func NewAuthenticationError(message, detail string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return newAppError(CodeAuthenticationError, 401, message, detail)
}

func NewPermissionDeniedError(message, detail string) *AppError {
	if message == "" {
		message = "permission denied"
	}
	return newAppError(CodePermissionDeniedError, 403, message, detail)
}

func NewCircularDependencyError(message, detail string) *AppError {
	if message == "" {
		message = "circular dependency detected"
	}
	return newAppError(CodeCircularDependencyError, 409, message, detail)
}

// TemplateRenderErrorKind narrows why the template renderer rejected a render.
type TemplateRenderErrorKind string

const (
	KindUndefinedVariable TemplateRenderErrorKind = "undefined_variable"
	KindTypeMismatch      TemplateRenderErrorKind = "type_mismatch"
	KindEnumViolation     TemplateRenderErrorKind = "enum_violation"
	KindSyntaxError       TemplateRenderErrorKind = "syntax_error"
	KindSandboxViolation  TemplateRenderErrorKind = "sandbox_violation"
	KindMissingRequired   TemplateRenderErrorKind = "missing_required"
)

// TemplateRenderError wraps AppError with the renderer-specific failure kind.
type TemplateRenderError struct {
	*AppError
	Kind TemplateRenderErrorKind
}

func NewTemplateRenderError(kind TemplateRenderErrorKind, message, detail string) *TemplateRenderError {
	if message == "" {
		message = "template render failed"
	}
	return &TemplateRenderError{
		AppError: newAppError(CodeTemplateRenderError, 422, message, detail),
		Kind:     kind,
	}
}

func NewInternalError(message, detail string) *AppError {
	if message == "" {
		message = "internal error"
	}
	return newAppError(CodeInternalError, 500, message, detail)
}
