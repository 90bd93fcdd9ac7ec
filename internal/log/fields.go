package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRoute      = "route"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOwnerID    = "owner_id"
	FieldBillID     = "bill_id"
	FieldExpenseID  = "expense_id"
	FieldStart      = "start"
	FieldEnd        = "end"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentNotify    = "notify"
	ComponentRateLimit = "rate_limit"
)

// Fields builds structured log attributes in insertion order.
type Fields []any

func NewFields() Fields { return Fields{} }

func (f Fields) With(key string, value any) Fields {
	return append(f, key, value)
}

// WithError adds the error field when err is non-nil.
func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return append(f, FieldError, err.Error())
}

// WithHTTPRequest adds request fields
func (f Fields) WithHTTPRequest(method, path, query, clientIP string) Fields {
	return append(f,
		FieldMethod, method,
		FieldPath, path,
		FieldQuery, query,
		FieldClientIP, clientIP)
}

// WithHTTPResponse adds response fields
func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	return append(f,
		FieldStatusCode, statusCode,
		FieldDuration, durationMs,
		FieldSuccess, statusCode < 400)
}

// ToSlice returns the fields as slog key/value arguments.
func (f Fields) ToSlice() []any { return []any(f) }
