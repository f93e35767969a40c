package port

// Fields — структурированные поля лога.
type Fields map[string]interface{}

// LoggerPort — интерфейс логгера, который используют все слои.
// Реализации: slog (tint), Fluent Bit, мульти-логгер.
type LoggerPort interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)
	WithFields(fields Fields) LoggerPort
}
