package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:     "Service request timeout",
	CodeServiceUnavailable: "Service temporarily unavailable",
	CodeRateLimitExceeded:  "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeSourceUnavailable:    "Price source unavailable",
	CodeInvalidQuote:         "Invalid quote data",
	CodePoolNotFound:         "Liquidity pool not found",
	CodeNoOpportunity:        "No opportunity currently available",
	CodeBelowProfitThreshold: "Net profit below the minimum threshold",
	CodeOpportunityNotFound:  "Opportunity not found",

	CodeLockContention:      "Opportunity is already being executed",
	CodeValidationFailed:    "Opportunity is no longer valid for execution",
	CodeSigningKeyMissing:   "No signing key configured for this actor",
	CodeInsufficientFunds:   "Insufficient funds to submit the transaction",
	CodeSubmissionFailed:    "Transaction submission failed",
	CodeExecutionReverted:   "On-chain execution failed: transaction reverted",
	CodeConfirmationTimeout: "On-chain execution failed: confirmation timed out",

	CodeRiskLimitHalted: "Auto-trading halted by the daily loss limit",
	CodeActorNotFound:   "No auto-trader exists for this actor",
	CodeInvalidSettings: "Invalid auto-trading settings",
	CodeActorIDRequired: "Actor id is required",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeStorageError:             "Storage operation failed",
	CodeCircuitOpen:              "Circuit breaker is open",
}

// Message returns the default message for code.
func Message(code Code) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return string(code)
}
