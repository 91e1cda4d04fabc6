package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidParameter     ErrorCode = 101
	ErrCodeInvalidTimeRange     ErrorCode = 102
	ErrCodeInvalidInterval      ErrorCode = 103

	// Data errors (200-299)
	ErrCodeDataUnavailable       ErrorCode = 200
	ErrCodeDataNotFound          ErrorCode = 201
	ErrCodeSourceFailed          ErrorCode = 202
	ErrCodeSourceAlreadyExists   ErrorCode = 203
	ErrCodeSourceNotFound        ErrorCode = 204
	ErrCodeSourceUnsupportedKind ErrorCode = 205

	// Queue errors (300-399)
	ErrCodeQueueEmpty ErrorCode = 300

	// Order errors (500-599)
	ErrCodeOrderRejected  ErrorCode = 500
	ErrCodeOrderNotFound  ErrorCode = 501
	ErrCodeInvalidOrder   ErrorCode = 502
	ErrCodeOrderTerminal  ErrorCode = 503
	ErrCodeInvalidFill    ErrorCode = 504
	ErrCodeUnpricedSymbol ErrorCode = 505

	// Engine errors (600-699)
	ErrCodeEngineAlreadyRunning ErrorCode = 600
	ErrCodeEngineNotInitialized ErrorCode = 601
	ErrCodeStrategyHookFailed   ErrorCode = 602
	ErrCodeTimelineFailed       ErrorCode = 603
	ErrCodeRunCancelled         ErrorCode = 604
)
