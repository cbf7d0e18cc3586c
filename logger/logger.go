package logger

// Logger defines the interface used for logging throughout the parser
// and the tools built on top of it
type Logger interface {
	Info(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
