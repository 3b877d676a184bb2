// Package result defines sandbox execution results and verdict mapping.
package result

// Status is the result code reported by the sandbox engine.
type Status int

const (
	StatusWrongAnswer           Status = -1
	StatusSuccess               Status = 0
	StatusCPUTimeLimitExceeded  Status = 1
	StatusRealTimeLimitExceeded Status = 2
	StatusMemoryLimitExceeded   Status = 3
	StatusRuntimeError          Status = 4
	StatusSystemError           Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusWrongAnswer:
		return "WRONG_ANSWER"
	case StatusSuccess:
		return "SUCCESS"
	case StatusCPUTimeLimitExceeded:
		return "CPU_TIME_LIMIT_EXCEEDED"
	case StatusRealTimeLimitExceeded:
		return "REAL_TIME_LIMIT_EXCEEDED"
	case StatusMemoryLimitExceeded:
		return "MEMORY_LIMIT_EXCEEDED"
	case StatusRuntimeError:
		return "RUNTIME_ERROR"
	case StatusSystemError:
		return "SYSTEM_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Outcome captures raw sandbox execution data. Field names follow the
// engine's JSON report and are forwarded to the backend unchanged.
type Outcome struct {
	CPUTime  int64  `json:"cpu_time"`
	RealTime int64  `json:"real_time"`
	Memory   int64  `json:"memory"`
	Signal   int    `json:"signal"`
	ExitCode int    `json:"exit_code"`
	Error    int    `json:"error"`
	Result   Status `json:"result"`
}

// CaseResult is the outcome of one test case.
type CaseResult struct {
	TestCase string `json:"test_case,omitempty"`
	Outcome
}

// CompileResult contains compilation outcomes.
type CompileResult struct {
	OK      bool
	Message string
	Outcome Outcome
}

// Class is the overall classification of a judged submission.
type Class string

const (
	ClassAccepted            Class = "Accepted"
	ClassWrongAnswer         Class = "WrongAnswer"
	ClassCompileError        Class = "CompileError"
	ClassTimeLimitExceeded   Class = "TimeLimitExceeded"
	ClassMemoryLimitExceeded Class = "MemoryLimitExceeded"
	ClassRuntimeError        Class = "RuntimeError"
	ClassSystemError         Class = "SystemError"
	ClassSystemBroken        Class = "SystemBroken"
	ClassNoTestData          Class = "NoTestData"
	ClassSpecialJudgeMissing Class = "SpecialJudgeMissing"
)

// Error tokens carried in the callback payload.
const (
	ErrCompile = "CE"
	ErrSystem  = "ERR"
)

// Info texts carried in the callback payload.
const (
	InfoSystemBroken        = "System Broken"
	InfoNoData              = "No Data"
	InfoSpecialJudgeMissing = "Special Judge Not Found"
	InfoCompilerFallback    = "Compiler runtime error, info: System Broken"
)

// Verdict is the final judged result of one submission.
type Verdict struct {
	SubmitID int64        `json:"submit_id"`
	Results  []CaseResult `json:"results,omitempty"`
	Err      string       `json:"err,omitempty"`
	Info     string       `json:"info,omitempty"`
	Class    Class        `json:"-"`
}

// ClassOf maps a sandbox status to a verdict class.
func ClassOf(s Status) Class {
	switch s {
	case StatusSuccess:
		return ClassAccepted
	case StatusWrongAnswer:
		return ClassWrongAnswer
	case StatusCPUTimeLimitExceeded, StatusRealTimeLimitExceeded:
		return ClassTimeLimitExceeded
	case StatusMemoryLimitExceeded:
		return ClassMemoryLimitExceeded
	case StatusRuntimeError:
		return ClassRuntimeError
	default:
		return ClassSystemError
	}
}

// ClassFromResults derives the class from the last recorded case.
func ClassFromResults(results []CaseResult) Class {
	if len(results) == 0 {
		return ClassNoTestData
	}
	return ClassOf(results[len(results)-1].Result)
}
