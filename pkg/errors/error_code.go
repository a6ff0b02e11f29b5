package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidDateRange     ErrorCode = 103
	ErrCodeInsufficientData     ErrorCode = 104

	// Data errors (200-299)
	ErrCodeDataUnavailable ErrorCode = 200
	ErrCodeMalformedBar    ErrorCode = 201
	ErrCodeRateLimited     ErrorCode = 202
	ErrCodeInvalidSymbol   ErrorCode = 203
	ErrCodeCacheFailed     ErrorCode = 204
	ErrCodeFetchFailed     ErrorCode = 205

	// Strategy errors (300-399)
	ErrCodeStrategyNotFound    ErrorCode = 300
	ErrCodeStrategyConfigError ErrorCode = 301
	ErrCodeStrategyStepFailed  ErrorCode = 302

	// Simulation and ledger errors (400-499)
	ErrCodeOrderRejected      ErrorCode = 400
	ErrCodeInvariantViolation ErrorCode = 401
	ErrCodePositionNotFound   ErrorCode = 402

	// Backtest errors (500-599)
	ErrCodeBacktestNotRunnable ErrorCode = 500
	ErrCodeBacktestFailed      ErrorCode = 501
	ErrCodeStateStoreFailed    ErrorCode = 502

	// Broker errors (600-699)
	ErrCodeBrokerUnavailable ErrorCode = 600
	ErrCodeBrokerOrderFailed ErrorCode = 601
	ErrCodeBrokerReconcile   ErrorCode = 602
)
