package types

// LogLevel is the severity of a strategy log entry.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// NotificationLevel is the urgency of a strategy notification.
type NotificationLevel string

const (
	NotificationLevelLow      NotificationLevel = "LOW"
	NotificationLevelMedium   NotificationLevel = "MEDIUM"
	NotificationLevelHigh     NotificationLevel = "HIGH"
	NotificationLevelCritical NotificationLevel = "CRITICAL"
)
