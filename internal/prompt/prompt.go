package prompt

import (
	"errors"
	"fmt"
)

// Role identifies an assistant profile. The values double as the "ai" tag
// sent to the completion proxy.
type Role string

// Supported assistant roles.
const (
	RoleError   Role = "ERROR"
	RoleArduino Role = "arduino"
	RoleHeader  Role = "h"
	RoleSerial  Role = "python"
)

// ErrPromptTooLong is returned when the user text exceeds the configured
// maximum. It is detected locally; the proxy is never contacted.
var ErrPromptTooLong = errors.New("prompt too long")

// Request is a fully assembled completion request. It is constructed fresh
// per send and never mutated after dispatch.
type Request struct {
	Prompt       string
	Role         Role
	SystemPrompt string
	OptOut       bool
}

// Transcript supplies the rendered conversation history for replay.
type Transcript interface {
	Render() string
}

// Builder assembles completion requests from user input, an optional
// document snapshot and the replayed conversation log.
type Builder struct {
	maxPromptLength int
	transcript      Transcript
}

// NewBuilder creates a prompt builder. transcript may be nil, in which case
// no history is replayed.
func NewBuilder(maxPromptLength int, transcript Transcript) *Builder {
	return &Builder{
		maxPromptLength: maxPromptLength,
		transcript:      transcript,
	}
}

// Build assembles a request for the given role. When includeDocument is
// set, a fenced rendering of snapshot is appended to the user text. Returns
// ErrPromptTooLong when userText exceeds the maximum; this check happens
// before any network activity.
func (b *Builder) Build(userText string, includeDocument bool, snapshot string, role Role, optOut bool) (*Request, error) {
	if len(userText) > b.maxPromptLength {
		return nil, ErrPromptTooLong
	}

	promptText := fmt.Sprintf("User request: %s", userText)
	if includeDocument {
		promptText += fmt.Sprintf("\n\nCurrent code:\n```\n%s\n```", snapshot)
	}

	return &Request{
		Prompt:       promptText,
		Role:         role,
		SystemPrompt: b.systemPrompt(role),
		OptOut:       optOut,
	}, nil
}

// BuildContinuation assembles a follow-up request carrying the captured
// output of an executed snippet. The prompt length check is skipped: the
// text is machine-generated and already bounded by the runner's output cap.
func (b *Builder) BuildContinuation(output string, role Role, optOut bool) *Request {
	promptText := fmt.Sprintf(
		"Python code execution completed. Result:\n\n%s\n\nPlease continue helping the user based on this execution result.",
		output,
	)

	return &Request{
		Prompt:       promptText,
		Role:         role,
		SystemPrompt: b.systemPrompt(role),
		OptOut:       optOut,
	}
}

// systemPrompt concatenates the role template with the replayed transcript.
func (b *Builder) systemPrompt(role Role) string {
	template := Template(role)
	if b.transcript == nil {
		return template
	}

	rendered := b.transcript.Render()
	return template + fmt.Sprintf(
		".\n\nHere is the chat history of the user and you till now use it and answer the questions:\n\n%s",
		rendered,
	)
}
