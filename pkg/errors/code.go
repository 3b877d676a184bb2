package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Judge & Dataset errors
// 17000-17999: Delivery errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Judge & Dataset Errors (13000-13999) ==========

	// Intake (13000-13099)
	CodeTooLarge ErrorCode = 13002

	// Judge (13100-13199)
	JudgeQueueClosed    ErrorCode = 13100
	JudgeSystemError    ErrorCode = 13101
	SandboxUnavailable  ErrorCode = 13107
	SpecialJudgeMissing ErrorCode = 13108

	// Dataset (13300-13399)
	DatasetUnavailable ErrorCode = 13300
	DatasetInvalid     ErrorCode = 13301

	// ========== Delivery Errors (17000-17999) ==========

	CallbackFailed ErrorCode = 17000
	PublishFailed  ErrorCode = 17001
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	ValidationFailed: "Validation failed",
	CodeTooLarge:     "Code is too large",

	JudgeQueueClosed:    "Judge queue is closed",
	JudgeSystemError:    "Judge system error",
	SandboxUnavailable:  "Sandbox engine unavailable",
	SpecialJudgeMissing: "Special judge not found",

	DatasetUnavailable: "Problem dataset unavailable",
	DatasetInvalid:     "Problem dataset is invalid",

	CallbackFailed: "Result callback delivery failed",
	PublishFailed:  "Event publish failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus maps a code to the status the intake endpoint answers with.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case Success:
		return 200
	case InvalidParams, ValidationFailed:
		return 400
	case CodeTooLarge:
		return 413
	case ServiceUnavailable, JudgeQueueClosed:
		return 503
	default:
		return 500
	}
}
