package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidDateRange     ErrorCode = 102
	ErrCodeInvalidWeights       ErrorCode = 103
	ErrCodeInvalidStopLoss      ErrorCode = 104
	ErrCodeInvalidTakeProfit    ErrorCode = 105
	ErrCodeInvalidDirection     ErrorCode = 106
	ErrCodeInsufficientData     ErrorCode = 107

	// Data errors (200-299)
	ErrCodeNoData            ErrorCode = 200
	ErrCodeEmptySymbolData   ErrorCode = 201
	ErrCodeInsufficientRange ErrorCode = 202
	ErrCodeUnorderedBars     ErrorCode = 203
	ErrCodeDataParseFailed   ErrorCode = 204

	// Simulation errors (300-399)
	ErrCodeSimulationFailed ErrorCode = 300
	ErrCodeNoSignals        ErrorCode = 301

	// Optimization errors (400-499)
	ErrCodeNoFolds            ErrorCode = 400
	ErrCodeFoldSimulation     ErrorCode = 401
	ErrCodeInvalidFoldWindows ErrorCode = 402

	// Persistence errors (500-599)
	ErrCodeStoreUnavailable ErrorCode = 500
	ErrCodeQueryFailed      ErrorCode = 501
	ErrCodeResultNotFound   ErrorCode = 502
	ErrCodeEncodeFailed     ErrorCode = 503
)
