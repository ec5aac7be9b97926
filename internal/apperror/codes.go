package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Scanning and detection
const (
	CodeSourceUnavailable    Code = "SOURCE_UNAVAILABLE"
	CodeInvalidQuote         Code = "INVALID_QUOTE"
	CodePoolNotFound         Code = "POOL_NOT_FOUND"
	CodeNoOpportunity        Code = "NO_OPPORTUNITY"
	CodeBelowProfitThreshold Code = "BELOW_PROFIT_THRESHOLD"
	CodeOpportunityNotFound  Code = "OPPORTUNITY_NOT_FOUND"
)

// Trade execution
const (
	CodeLockContention      Code = "LOCK_CONTENTION"
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeSigningKeyMissing   Code = "SIGNING_KEY_MISSING"
	CodeInsufficientFunds   Code = "INSUFFICIENT_FUNDS"
	CodeSubmissionFailed    Code = "SUBMISSION_FAILED"
	CodeExecutionReverted   Code = "EXECUTION_REVERTED"
	CodeConfirmationTimeout Code = "CONFIRMATION_TIMEOUT"
)

// Auto-trading
const (
	CodeRiskLimitHalted Code = "RISK_LIMIT_HALTED"
	CodeActorNotFound   Code = "ACTOR_NOT_FOUND"
	CodeInvalidSettings Code = "INVALID_SETTINGS"
	CodeActorIDRequired Code = "ACTOR_ID_REQUIRED"
)

// Infrastructure
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeStorageError             Code = "STORAGE_ERROR"
	CodeCircuitOpen              Code = "CIRCUIT_OPEN"
)
