package analysis

import "encoding/json"

// OutcomeTag enum
type OutcomeTag string

const (
	OutcomeSuccess  OutcomeTag = "success"
	OutcomeFault    OutcomeTag = "fault"
	OutcomeTimedOut OutcomeTag = "timed_out"
)

// Fault kinds reported by the sandbox.
const (
	FaultRuntime         = "runtime"
	FaultNoResult        = "no_result"
	FaultNotSerializable = "result_not_serializable"
)

// ExecutionOutcome is a tagged variant: exactly one tag is ever set and it is
// terminal once produced.
type ExecutionOutcome struct {
	Tag       OutcomeTag
	Value     json.RawMessage // set when Tag == OutcomeSuccess
	FaultKind string          // set when Tag == OutcomeFault
	Message   string          // set when Tag == OutcomeFault
}

func Success(value json.RawMessage) ExecutionOutcome {
	return ExecutionOutcome{Tag: OutcomeSuccess, Value: value}
}

func Fault(kind, message string) ExecutionOutcome {
	return ExecutionOutcome{Tag: OutcomeFault, FaultKind: kind, Message: message}
}

func TimedOut() ExecutionOutcome {
	return ExecutionOutcome{Tag: OutcomeTimedOut}
}
