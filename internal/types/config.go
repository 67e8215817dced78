package types

type RunMode string

const (
	// ModeLocal is the mode for local development and scripts
	ModeLocal RunMode = "local"
	// ModeService is the mode for running embedded in a service process
	ModeService RunMode = "service"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
