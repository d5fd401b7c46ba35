package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldURL        = "url"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorKind  = "error_kind"
	FieldOperation  = "operation"
	FieldResource   = "resource"
	FieldKey        = "cache_key"
	FieldID         = "id"
	FieldPersist    = "persist"
	FieldStatus     = "session_status"
	FieldUserID     = "user_id"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentClient     = "client"
	ComponentAuth       = "auth"
	ComponentCache      = "cache"
	ComponentMutation   = "mutation"
	ComponentTokenStore = "tokenstore"
	ComponentStorage    = "storage"
	ComponentEvents     = "events"
	ComponentCLI        = "cli"
	ComponentFakeAPI    = "fakeapi"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpRefresh  = "refresh"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpProfile  = "profile"
	OpRollback = "rollback"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithHTTP adds outbound request fields
func (f LogFields) WithHTTP(method, url string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldURL] = url
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode > 0 && statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
