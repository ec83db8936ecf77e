package engine

import "fmt"

// State is a node of the turn state machine.
type State int

const (
	StateStart State = iota
	StateAgent
	StateTools
	StatePostTool
	StateRollback
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAgent:
		return "agent"
	case StateTools:
		return "tools"
	case StatePostTool:
		return "post_tool"
	case StateRollback:
		return "rollback"
	case StateEnd:
		return "end"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Policy selects what happens after tools ran.
type Policy string

const (
	// PolicyStrict routes tool results through POST_TOOL, which ends the turn
	// with the tool content or rolls the attempt back on error.
	PolicyStrict Policy = "strict"
	// PolicyLoose hands tool results back to the model, which reacts in text.
	PolicyLoose Policy = "loose"
)

// RollbackPolicy selects what ROLLBACK does with a failed attempt.
type RollbackPolicy string

const (
	// RollbackEnd terminates the turn and leaves the checkpoint untouched.
	RollbackEnd RollbackPolicy = "end"
	// RollbackRetry keeps the failed attempt in the working set and re-enters
	// AGENT, at most MaxRetries times per turn.
	RollbackRetry RollbackPolicy = "retry"
)

// Admission selects how a second turn for a busy thread is handled.
type Admission string

const (
	// AdmissionWait queues behind the running turn until ctx is done.
	AdmissionWait Admission = "wait"
	// AdmissionReject fails fast with core.ErrTurnInFlight.
	AdmissionReject Admission = "reject"
)

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyStrict, PolicyLoose:
		return p, nil
	case "":
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown policy %q", s)
	}
}

// ParseRollbackPolicy maps a configuration string to a RollbackPolicy.
func ParseRollbackPolicy(s string) (RollbackPolicy, error) {
	switch p := RollbackPolicy(s); p {
	case RollbackEnd, RollbackRetry:
		return p, nil
	case "":
		return RollbackEnd, nil
	default:
		return "", fmt.Errorf("unknown rollback policy %q", s)
	}
}

// ParseAdmission maps a configuration string to an Admission mode.
func ParseAdmission(s string) (Admission, error) {
	switch a := Admission(s); a {
	case AdmissionWait, AdmissionReject:
		return a, nil
	case "":
		return AdmissionWait, nil
	default:
		return "", fmt.Errorf("unknown admission mode %q", s)
	}
}
