package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRoute      = "route"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldUsername   = "username"
	FieldKey        = "key"
	FieldBackend    = "backend"
	FieldEvent      = "event"
	FieldCacheHit   = "cache_hit"
	FieldCount      = "count"
	FieldCommand    = "command"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentSession  = "session"
	ComponentGuard    = "guard"
	ComponentAPI      = "api"
	ComponentStorage  = "storage"
	ComponentBackend  = "backend"
	ComponentCache    = "cache"
	ComponentAMQP     = "amqp"
	ComponentServices = "services"
	ComponentSheets   = "sheets"
)

// Operations defines standard operation names
const (
	OpRestore = "restore"
	OpSet     = "set"
	OpMerge   = "merge"
	OpClear   = "clear"
	OpFetch   = "fetch"
	OpCreate  = "create"
	OpPublish = "publish"
	OpExport  = "export"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field; nil errors are skipped
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithUser(userID int64, username string) LogFields {
	f[FieldUserID] = userID
	f[FieldUsername] = username
	return f
}

func (f LogFields) WithHTTP(method, path string, status int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
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
