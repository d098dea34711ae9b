package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"sketchpilot/internal/prompt"
)

const maxErrorBodyLength = 200

// TurnLogger records completed round trips in the conversation log.
type TurnLogger interface {
	Append(role, text string) error
}

// Outcome is the result of one completion round trip: either response text
// or a failure reason, never both.
type Outcome struct {
	Text string
	Err  error
}

// Succeeded reports whether the round trip produced response text.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// RemoteError is a non-2xx reply from the proxy. The body is truncated to
// keep it displayable.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.Status, e.Body)
}

// TransportError is a network-level failure before any status was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client talks to the remote completion proxy. The shared secret is
// injected at construction time; nothing else in the process holds it.
type Client struct {
	apiURL  string
	secret  string
	client  *http.Client
	limiter *RateLimiter
	turns   TurnLogger
}

// NewClient creates a proxy client. turns may be nil when round trips
// should not be logged (tests).
func NewClient(apiURL, secret string, timeout time.Duration, rpm int, turns TurnLogger) *Client {
	return &Client{
		apiURL:  apiURL,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		limiter: NewRateLimiter(rpm),
		turns:   turns,
	}
}

// completionBody is the request envelope expected by the proxy. ai_train is
// only present when the user opted out; it is never sent as false-by-default.
type completionBody struct {
	Prompt       string `json:"prompt"`
	AI           string `json:"ai"`
	SystemPrompt string `json:"system_prompt"`
	AITrain      *bool  `json:"ai_train,omitempty"`
}

// choicesEnvelope is the OpenAI-style response shape.
type choicesEnvelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// candidatesEnvelope is the Gemini-style response shape.
type candidatesEnvelope struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete performs one round trip. On success the outgoing prompt and the
// returned text are appended to the conversation log as two turns (user,
// then assistant) before the outcome is returned. Callers that must not
// block run Complete in its own goroutine and receive the Outcome over a
// channel.
func (c *Client) Complete(ctx context.Context, req *prompt.Request) Outcome {
	if err := c.limiter.Wait(ctx); err != nil {
		return Outcome{Err: &TransportError{Err: err}}
	}

	body := completionBody{
		Prompt:       req.Prompt,
		AI:           string(req.Role),
		SystemPrompt: req.SystemPrompt,
	}
	if req.OptOut {
		optOut := false
		body.AITrain = &optOut
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return Outcome{Err: &TransportError{Err: fmt.Errorf("failed to marshal request: %w", err)}}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return Outcome{Err: &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Pyduino-Secret", c.secret)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.limiter.RecordError()
		return Outcome{Err: &TransportError{Err: err}}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.limiter.RecordError()
		return Outcome{Err: &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.limiter.RecordError()
		return Outcome{Err: &RemoteError{
			Status: resp.StatusCode,
			Body:   truncate(string(raw), maxErrorBodyLength),
		}}
	}

	c.limiter.RecordSuccess()

	text := strings.TrimSpace(parseResponseText(raw))

	// Logging is a side effect of every successful round trip, not a
	// caller responsibility. A failing log is recoverable.
	if c.turns != nil {
		if err := c.turns.Append("user", req.Prompt); err != nil {
			log.Printf("Failed to log user turn: %v", err)
		} else if err := c.turns.Append("assistant", text); err != nil {
			log.Printf("Failed to log assistant turn: %v", err)
		}
	}

	return Outcome{Text: text}
}

// parseResponseText extracts the reply from whichever envelope the upstream
// provider used. The proxy may be backed by either of two providers, so an
// unrecognized envelope degrades to the raw body instead of failing.
func parseResponseText(raw []byte) string {
	var choices choicesEnvelope
	if err := json.Unmarshal(raw, &choices); err == nil && len(choices.Choices) > 0 {
		return choices.Choices[0].Message.Content
	}

	var candidates candidatesEnvelope
	if err := json.Unmarshal(raw, &candidates); err == nil &&
		len(candidates.Candidates) > 0 &&
		len(candidates.Candidates[0].Content.Parts) > 0 {
		return candidates.Candidates[0].Content.Parts[0].Text
	}

	return string(raw)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
