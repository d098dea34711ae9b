package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"sketchpilot/internal/blocks"
	"sketchpilot/internal/prompt"
	"sketchpilot/internal/proxy"
	"sketchpilot/internal/runner"
	"sketchpilot/internal/sketch"
)

// Completer performs one completion round trip. Satisfied by proxy.Client.
type Completer interface {
	Complete(ctx context.Context, req *prompt.Request) proxy.Outcome
}

// Entry kinds in a surface transcript.
const (
	EntryUser      = "user"
	EntryAssistant = "assistant"
	EntryError     = "error"
	EntryInfo      = "info"
)

// Entry is one rendered line of a surface's in-memory transcript. The
// transcript is presentation state; the persisted conversation log is
// written by the completion client, not here.
type Entry struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Affordance describes one pending user-facing action.
type Affordance struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Label        string `json:"label"`
	Confirmation string `json:"confirmation"`
}

// Surface is one assistant conversation bound to a fixed role. Each surface
// owns its action registry and its in-flight requests; surfaces share only
// the document and the persisted log.
type Surface struct {
	role     prompt.Role
	builder  *prompt.Builder
	client   Completer
	registry *blocks.Registry
	doc      *sketch.Document
	run      *runner.Runner

	ctx      context.Context
	cancel   context.CancelFunc
	outcomes chan delivered
	done     chan struct{}
	inflight int64

	mu         sync.Mutex
	transcript []Entry
}

// delivered pairs an outcome with the request that produced it so the
// collector can start continuations with the same opt-out setting.
type delivered struct {
	req     *prompt.Request
	outcome proxy.Outcome
}

// NewSurface creates a surface and starts its outcome collector. Outcomes
// are handed off over a channel so the caller's goroutine never blocks on
// the network; every delivered outcome is rendered when it arrives, even
// out of order.
func NewSurface(role prompt.Role, builder *prompt.Builder, client Completer, doc *sketch.Document, run *runner.Runner) *Surface {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Surface{
		role:     role,
		builder:  builder,
		client:   client,
		registry: blocks.NewRegistry(),
		doc:      doc,
		run:      run,
		ctx:      ctx,
		cancel:   cancel,
		outcomes: make(chan delivered, 8),
		done:     make(chan struct{}),
	}

	go s.collect()

	return s
}

// Role returns the surface's fixed role.
func (s *Surface) Role() prompt.Role {
	return s.role
}

// Send builds a request and dispatches it asynchronously. A too-long prompt
// is reported immediately and nothing is sent. Starting a new request while
// another is outstanding is allowed.
func (s *Surface) Send(userText string, includeCode, optOut bool) error {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return fmt.Errorf("empty message")
	}

	snapshot := ""
	if includeCode {
		snapshot = s.doc.Text()
	}

	req, err := s.builder.Build(userText, includeCode, snapshot, s.role, optOut)
	if err != nil {
		return err
	}

	s.appendEntry(Entry{Kind: EntryUser, Text: userText})
	if includeCode {
		s.appendEntry(Entry{Kind: EntryInfo, Text: "Current code sent to AI"})
	}

	s.dispatch(req)
	return nil
}

// dispatch runs the round trip on its own goroutine and hands the outcome
// back over the outcomes channel.
func (s *Surface) dispatch(req *prompt.Request) {
	atomic.AddInt64(&s.inflight, 1)
	go func() {
		outcome := s.client.Complete(s.ctx, req)
		select {
		case s.outcomes <- delivered{req: req, outcome: outcome}:
		case <-s.ctx.Done():
			atomic.AddInt64(&s.inflight, -1)
		}
	}()
}

// collect renders delivered outcomes and registers extracted blocks.
func (s *Surface) collect() {
	defer close(s.done)
	for {
		select {
		case d := <-s.outcomes:
			s.handleOutcome(d)
			atomic.AddInt64(&s.inflight, -1)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Surface) handleOutcome(d delivered) {
	if !d.outcome.Succeeded() {
		s.appendEntry(Entry{Kind: EntryError, Text: d.outcome.Err.Error()})
		return
	}

	s.appendEntry(Entry{Kind: EntryAssistant, Text: d.outcome.Text})

	for _, b := range blocks.Extract(d.outcome.Text) {
		for !s.registry.Register(b) {
			b = b.Reroll()
		}
	}
}

// Affordances lists the pending actions, one per registered block.
func (s *Surface) Affordances() []Affordance {
	var out []Affordance
	for _, b := range s.registry.List() {
		out = append(out, Affordance{
			ID:           b.ID,
			Kind:         string(b.Kind),
			Label:        b.Label(),
			Confirmation: confirmationPrompt(b.Kind),
		})
	}
	return out
}

// confirmationPrompt describes the action category shown before any effect.
func confirmationPrompt(kind blocks.Kind) string {
	switch kind {
	case blocks.KindFullReplace:
		return "Replace the entire code in the editor? This will replace all current code with the AI-generated code."
	case blocks.KindPatch:
		return "Apply the suggested code changes? This will modify specific parts of your code."
	case blocks.KindSnippet:
		return "Execute this Python code? The AI will analyze the results."
	default:
		return "Perform this action?"
	}
}

// Confirm performs the action for block id after the user accepted its
// confirmation prompt. The returned message is what the surface renders. A
// failing patch is reported as a message, never an error that could take
// the surface down, and leaves the document at its pre-patch state.
func (s *Surface) Confirm(id string, optOut bool) (string, error) {
	b, ok := s.registry.Get(id)
	if !ok {
		return "", fmt.Errorf("unknown action id: %s", id)
	}

	switch b.Kind {
	case blocks.KindFullReplace:
		s.doc.ReplaceAll(b.Content)
		msg := "Code replaced successfully in editor!"
		s.appendEntry(Entry{Kind: EntryInfo, Text: msg})
		return msg, nil

	case blocks.KindPatch:
		skipped, err := s.doc.ApplyPatch(b.Content)
		if err != nil {
			msg := fmt.Sprintf("Patch Error: %v", err)
			s.appendEntry(Entry{Kind: EntryError, Text: msg})
			return msg, nil
		}
		msg := "Patch applied successfully!"
		if len(skipped) > 0 {
			msg += fmt.Sprintf(" (%d instruction(s) skipped: target text not found)", len(skipped))
		}
		s.appendEntry(Entry{Kind: EntryInfo, Text: msg})
		return msg, nil

	case blocks.KindSnippet:
		return s.runSnippet(b, optOut), nil

	default:
		return "", fmt.Errorf("unknown block kind: %s", b.Kind)
	}
}

// runSnippet executes an accepted snippet and automatically starts a
// continuation round trip carrying the captured output, so the assistant
// can react without a second manual message.
func (s *Surface) runSnippet(b blocks.Block, optOut bool) string {
	result := s.run.Run(b.Content)

	output := result.Output
	if strings.TrimSpace(output) == "" {
		output = "(No output)"
	}

	s.appendEntry(Entry{
		Kind: EntryInfo,
		Text: fmt.Sprintf("Code Executed Successfully\n%s", output),
	})

	req := s.builder.BuildContinuation(output, s.role, optOut)
	s.dispatch(req)

	return output
}

// Decline rejects a single confirmation. Nothing changes: not the document,
// not the log, not the registry. Other affordances from the same response
// stay available.
func (s *Surface) Decline(id string) error {
	if _, ok := s.registry.Get(id); !ok {
		return fmt.Errorf("unknown action id: %s", id)
	}
	return nil
}

// Clear resets this surface's transcript and pending actions. The persisted
// conversation log is global and intentionally not touched here.
func (s *Surface) Clear() {
	s.registry.Clear()
	s.mu.Lock()
	s.transcript = nil
	s.mu.Unlock()
}

// Transcript returns a copy of the rendered entries so far.
func (s *Surface) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Pending returns the number of in-flight round trips.
func (s *Surface) Pending() int {
	return int(atomic.LoadInt64(&s.inflight))
}

// Close stops the collector. In-flight outcomes are dropped at this point;
// Close is only called at process shutdown.
func (s *Surface) Close() {
	s.cancel()
	<-s.done
}

func (s *Surface) appendEntry(e Entry) {
	s.mu.Lock()
	s.transcript = append(s.transcript, e)
	s.mu.Unlock()
}
