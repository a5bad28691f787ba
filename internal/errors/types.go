package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeCompile  ErrorType = "compile"
	ErrorTypeRender   ErrorType = "render"
	ErrorTypeCache    ErrorType = "cache"
	ErrorTypeAsset    ErrorType = "asset"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeRegistry ErrorType = "registry"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeInternal ErrorType = "internal"
)

// Error codes shared across packages.
const (
	CodeMissingRender     = "MISSING_RENDER"
	CodeUnknownComponent  = "UNKNOWN_COMPONENT"
	CodeUnknownClass      = "UNKNOWN_CLASS"
	CodeInvalidArguments  = "INVALID_ARGUMENTS"
	CodeInvalidCacheKey   = "INVALID_CACHE_KEY"
	CodeCacheFailure      = "CACHE_FAILURE"
	CodeRenderFailure     = "RENDER_FAILURE"
	CodeControlInContent  = "CONTROL_IN_CONTENT"
	CodeParseFailure      = "PARSE_FAILURE"
	CodeDuplicateTag      = "DUPLICATE_TAG"
	CodeTemplateNotFound  = "TEMPLATE_NOT_FOUND"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeAssetUnresolvable = "ASSET_UNRESOLVABLE"
)

// UIError is a structured error type with context.
type UIError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Line        int
	Recoverable bool
}

// Error implements the error interface.
func (e *UIError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *UIError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code.
func (e *UIError) Is(target error) bool {
	var t *UIError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *UIError) WithContext(key string, value interface{}) *UIError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *UIError) WithLocation(filePath string, line int) *UIError {
	e.FilePath = filePath
	e.Line = line

	return e
}

// WithComponent adds component context.
func (e *UIError) WithComponent(component string) *UIError {
	e.Component = component

	return e
}

// NewCompileError creates a template compilation error.
func NewCompileError(code, message string, cause error) *UIError {
	return &UIError{Type: ErrorTypeCompile, Code: code, Message: message, Cause: cause, Recoverable: true}
}

// NewRenderError creates a component render error.
func NewRenderError(code, message string, cause error) *UIError {
	return &UIError{Type: ErrorTypeRender, Code: code, Message: message, Cause: cause, Recoverable: true}
}

// NewCacheError creates a fragment cache error.
func NewCacheError(code, message string, cause error) *UIError {
	return &UIError{Type: ErrorTypeCache, Code: code, Message: message, Cause: cause, Recoverable: true}
}

// NewAssetError creates an asset resolution error.
func NewAssetError(code, message string, cause error) *UIError {
	return &UIError{Type: ErrorTypeAsset, Code: code, Message: message, Cause: cause, Recoverable: true}
}

// NewRegistryError creates a component registry error.
func NewRegistryError(code, message string) *UIError {
	return &UIError{Type: ErrorTypeRegistry, Code: code, Message: message}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *UIError {
	return &UIError{Type: ErrorTypeConfig, Code: code, Message: message}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *UIError {
	return &UIError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *UIError {
	return &UIError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ue *UIError
	if errors.As(err, &ue) {
		return ue.Recoverable
	}

	return false
}

// HasCode reports whether err is a UIError carrying code.
func HasCode(err error, code string) bool {
	var ue *UIError
	if errors.As(err, &ue) {
		return ue.Code == code
	}

	return false
}

// IsType reports whether err is a UIError of the given type.
func IsType(err error, t ErrorType) bool {
	var ue *UIError
	if errors.As(err, &ue) {
		return ue.Type == t
	}

	return false
}

// As, Is and New re-export the standard helpers so callers need one import.
var (
	As  = errors.As
	Is  = errors.Is
	New = errors.New
)
