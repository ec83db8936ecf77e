package tool

import (
	"github.com/hupe1980/secretary/core"
)

// NoDataContent is the content of a result whose tool returned no text.
const NoDataContent = "No data returned"

// Result is the normalized outcome of one tool invocation.
//
// The three error signals are independent typed fields combined with OR
// semantics by IsError: the explicit annotation (Annotated), the text
// heuristic (TextIndicated) and the status field (Status).
type Result struct {
	ToolName      string
	CallID        string
	Content       string
	Artifact      core.Artifact
	Annotated     bool
	TextIndicated bool
	Status        string
}

// IsError reports whether any error signal is present.
func (r Result) IsError() bool {
	return r.Annotated || r.TextIndicated || r.Status == core.StatusError
}

// Message folds the result into an immutable tool-role message.
func (r Result) Message() core.Message {
	msg := core.NewMessage(core.RoleTool, r.Content)
	msg.ToolName = r.ToolName
	msg.ToolCallID = r.CallID
	msg.IsError = r.IsError()
	msg.Status = r.Status
	if msg.Status == "" {
		msg.Status = core.StatusSuccess
		if msg.IsError {
			msg.Status = core.StatusError
		}
	}
	msg.Artifact = r.Artifact.Clone()
	if msg.Artifact == nil {
		msg.Artifact = core.EmptyArtifact()
	}
	return msg
}
