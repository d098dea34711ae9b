package assistant

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"sketchpilot/internal/blocks"
	"sketchpilot/internal/prompt"
	"sketchpilot/internal/proxy"
	"sketchpilot/internal/runner"
	"sketchpilot/internal/sketch"
)

// fakeCompleter replays scripted outcomes and records the requests it saw.
type fakeCompleter struct {
	mu       sync.Mutex
	requests []*prompt.Request
	outcomes []proxy.Outcome
}

func (f *fakeCompleter) Complete(ctx context.Context, req *prompt.Request) proxy.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if len(f.outcomes) == 0 {
		return proxy.Outcome{Text: "ok"}
	}
	next := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return next
}

func (f *fakeCompleter) seen() []*prompt.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*prompt.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestSurface(t *testing.T, client Completer) (*Surface, *sketch.Document) {
	t.Helper()

	doc := sketch.NewDocument("")
	builder := prompt.NewBuilder(8000, nil)
	run := runner.New([]string{"sh", "-s"}).WithTimeout(5 * time.Second)

	s := NewSurface(prompt.RoleArduino, builder, client, doc, run)
	t.Cleanup(s.Close)
	return s, doc
}

// settle polls until no round trips are in flight.
func settle(t *testing.T, s *Surface) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Pending() == 0 {
			// One extra beat so the collector finishes rendering.
			time.Sleep(10 * time.Millisecond)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Round trips never settled")
}

func TestSendRendersUserAndAssistantEntries(t *testing.T) {
	client := &fakeCompleter{outcomes: []proxy.Outcome{{Text: "Use a pull-up resistor."}}}
	s, _ := newTestSurface(t, client)

	if err := s.Send("why does my button bounce?", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	entries := s.Transcript()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != EntryUser || entries[1].Kind != EntryAssistant {
		t.Errorf("Unexpected entry kinds: %s, %s", entries[0].Kind, entries[1].Kind)
	}
	if entries[1].Text != "Use a pull-up resistor." {
		t.Errorf("Unexpected assistant text: %q", entries[1].Text)
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	client := &fakeCompleter{}
	s, _ := newTestSurface(t, client)

	if err := s.Send("   ", false, false); err == nil {
		t.Fatal("Blank messages must be rejected")
	}
	if len(client.seen()) != 0 {
		t.Error("Nothing should reach the completer")
	}
}

func TestSendRejectsTooLongPromptWithoutDispatch(t *testing.T) {
	client := &fakeCompleter{}
	doc := sketch.NewDocument("")
	builder := prompt.NewBuilder(10, nil)
	s := NewSurface(prompt.RoleArduino, builder, client, doc, runner.New([]string{"sh", "-s"}))
	defer s.Close()

	err := s.Send(strings.Repeat("x", 11), false, false)
	if err != prompt.ErrPromptTooLong {
		t.Fatalf("Expected ErrPromptTooLong, got %v", err)
	}
	if len(client.seen()) != 0 {
		t.Error("An over-length prompt must never be dispatched")
	}
	if len(s.Transcript()) != 0 {
		t.Error("A rejected message must not be rendered")
	}
}

func TestSendIncludesDocumentSnapshot(t *testing.T) {
	client := &fakeCompleter{}
	s, doc := newTestSurface(t, client)
	doc.ReplaceAll("void loop(){}")

	if err := s.Send("review this", true, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	reqs := client.seen()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(reqs))
	}
	if !strings.Contains(reqs[0].Prompt, "void loop(){}") {
		t.Errorf("Snapshot missing from prompt: %q", reqs[0].Prompt)
	}

	var sawNote bool
	for _, e := range s.Transcript() {
		if e.Kind == EntryInfo && strings.Contains(e.Text, "Current code sent") {
			sawNote = true
		}
	}
	if !sawNote {
		t.Error("Attaching the code should be noted in the transcript")
	}
}

func TestFullReplacePipeline(t *testing.T) {
	reply := "Replace your sketch:\n```cpp\nvoid setup(){}\nvoid loop(){}\n```"
	client := &fakeCompleter{outcomes: []proxy.Outcome{{Text: reply}}}
	s, doc := newTestSurface(t, client)
	doc.ReplaceAll("old code")

	if err := s.Send("rewrite it", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	affordances := s.Affordances()
	if len(affordances) != 1 {
		t.Fatalf("Expected 1 affordance, got %d", len(affordances))
	}
	if affordances[0].Label != "Replace Whole Code" {
		t.Errorf("Unexpected label: %q", affordances[0].Label)
	}
	if affordances[0].Confirmation == "" {
		t.Error("Affordance should carry a confirmation prompt")
	}

	// The document is untouched until the user confirms.
	if doc.Text() != "old code" {
		t.Fatal("Document must not change before confirmation")
	}

	msg, err := s.Confirm(affordances[0].ID, false)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if msg != "Code replaced successfully in editor!" {
		t.Errorf("Unexpected message: %q", msg)
	}
	if doc.Text() != "void setup(){}\nvoid loop(){}" {
		t.Errorf("Unexpected document text: %q", doc.Text())
	}
}

func TestPatchPipeline(t *testing.T) {
	reply := "Small fix:\n```python\ncode = code.replace(\"delay(100)\", \"delay(500)\")\n```"
	client := &fakeCompleter{outcomes: []proxy.Outcome{{Text: reply}}}
	s, doc := newTestSurface(t, client)
	doc.ReplaceAll("delay(100);")

	if err := s.Send("slow the blink", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	var patchID string
	for _, a := range s.Affordances() {
		if a.Kind == string(blocks.KindPatch) {
			patchID = a.ID
		}
	}
	if patchID == "" {
		t.Fatal("Expected a patch affordance")
	}

	msg, err := s.Confirm(patchID, false)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !strings.Contains(msg, "Patch applied successfully") {
		t.Errorf("Unexpected message: %q", msg)
	}
	if doc.Text() != "delay(500);" {
		t.Errorf("Unexpected document text: %q", doc.Text())
	}
}

func TestPatchFailureIsMessageNotError(t *testing.T) {
	reply := "```python\ncode = code.replace(\"a\", \"b\")\nos.system('rm -rf /')\n```"
	client := &fakeCompleter{outcomes: []proxy.Outcome{{Text: reply}}}
	s, doc := newTestSurface(t, client)
	doc.ReplaceAll("a")

	if err := s.Send("patch it", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	var patchID string
	for _, a := range s.Affordances() {
		if a.Kind == string(blocks.KindPatch) {
			patchID = a.ID
		}
	}
	if patchID == "" {
		t.Fatal("Expected a patch affordance")
	}

	msg, err := s.Confirm(patchID, false)
	if err != nil {
		t.Fatalf("A bad patch must not surface as an error: %v", err)
	}
	if !strings.HasPrefix(msg, "Patch Error: ") {
		t.Errorf("Unexpected message: %q", msg)
	}
	if doc.Text() != "a" {
		t.Errorf("Document must be unchanged after a failed patch, got %q", doc.Text())
	}
}

func TestSnippetRunStartsContinuation(t *testing.T) {
	reply := "Check the math:\n```run\necho 42\n```"
	client := &fakeCompleter{outcomes: []proxy.Outcome{
		{Text: reply},
		{Text: "42 confirms the resistor value."},
	}}
	s, _ := newTestSurface(t, client)

	if err := s.Send("verify", false, true); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	affordances := s.Affordances()
	if len(affordances) != 1 || affordances[0].Kind != string(blocks.KindSnippet) {
		t.Fatalf("Expected one snippet affordance, got %+v", affordances)
	}

	output, err := s.Confirm(affordances[0].ID, true)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if strings.TrimSpace(output) != "42" {
		t.Errorf("Unexpected snippet output: %q", output)
	}
	settle(t, s)

	reqs := client.seen()
	if len(reqs) != 2 {
		t.Fatalf("Expected an automatic continuation round trip, got %d requests", len(reqs))
	}
	cont := reqs[1]
	if !strings.Contains(cont.Prompt, "Python code execution completed") {
		t.Errorf("Continuation preamble missing: %q", cont.Prompt)
	}
	if !strings.Contains(cont.Prompt, "42") {
		t.Error("Continuation should carry the captured output")
	}
	if !cont.OptOut {
		t.Error("Continuations must keep the original opt-out setting")
	}

	var sawFollowup bool
	for _, e := range s.Transcript() {
		if e.Kind == EntryAssistant && strings.Contains(e.Text, "resistor value") {
			sawFollowup = true
		}
	}
	if !sawFollowup {
		t.Error("The continuation reply should be rendered")
	}
}

func TestSnippetEmptyOutputPlaceholder(t *testing.T) {
	reply := "```run\ntrue\n```"
	client := &fakeCompleter{outcomes: []proxy.Outcome{{Text: reply}, {Text: "done"}}}
	s, _ := newTestSurface(t, client)

	if err := s.Send("run it", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	output, err := s.Confirm(s.Affordances()[0].ID, false)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if output != "(No output)" {
		t.Errorf("Silent snippets should report a placeholder, got %q", output)
	}
	settle(t, s)
}

func TestDeclineLeavesEverythingAlone(t *testing.T) {
	reply := "```cpp\nint x;\n```\n```run\necho hi\n```"
	client := &fakeCompleter{outcomes: []proxy.Outcome{{Text: reply}}}
	s, doc := newTestSurface(t, client)
	doc.ReplaceAll("original")

	if err := s.Send("suggest", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	before := s.Affordances()
	if len(before) != 2 {
		t.Fatalf("Expected 2 affordances, got %d", len(before))
	}
	entriesBefore := len(s.Transcript())

	if err := s.Decline(before[0].ID); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	if doc.Text() != "original" {
		t.Error("Decline must not touch the document")
	}
	if len(s.Affordances()) != 2 {
		t.Error("Declining one action must not remove the others")
	}
	if len(s.Transcript()) != entriesBefore {
		t.Error("Decline must not render anything")
	}
	if len(client.seen()) != 1 {
		t.Error("Decline must not trigger round trips")
	}
}

func TestDeclineUnknownID(t *testing.T) {
	client := &fakeCompleter{}
	s, _ := newTestSurface(t, client)

	if err := s.Decline("nope"); err == nil {
		t.Error("Unknown ids must be rejected")
	}
}

func TestConfirmUnknownID(t *testing.T) {
	client := &fakeCompleter{}
	s, _ := newTestSurface(t, client)

	if _, err := s.Confirm("nope", false); err == nil {
		t.Error("Unknown ids must be rejected")
	}
}

func TestFailureOutcomeRendersErrorEntry(t *testing.T) {
	client := &fakeCompleter{outcomes: []proxy.Outcome{
		{Err: &proxy.RemoteError{Status: 500, Body: "boom"}},
	}}
	s, _ := newTestSurface(t, client)

	if err := s.Send("hello", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	entries := s.Transcript()
	last := entries[len(entries)-1]
	if last.Kind != EntryError {
		t.Fatalf("Expected an error entry, got %s", last.Kind)
	}
	if last.Text != "Error 500: boom" {
		t.Errorf("Unexpected error text: %q", last.Text)
	}
	if len(s.Affordances()) != 0 {
		t.Error("Failures must not produce affordances")
	}
}

func TestMultipleOutstandingRequests(t *testing.T) {
	client := &fakeCompleter{outcomes: []proxy.Outcome{{Text: "first"}, {Text: "second"}}}
	s, _ := newTestSurface(t, client)

	if err := s.Send("one", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := s.Send("two", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	var assistant int
	for _, e := range s.Transcript() {
		if e.Kind == EntryAssistant {
			assistant++
		}
	}
	if assistant != 2 {
		t.Errorf("Both outcomes should be rendered, got %d assistant entries", assistant)
	}
}

func TestClearResetsSurfaceOnly(t *testing.T) {
	reply := "```cpp\nint x;\n```"
	client := &fakeCompleter{outcomes: []proxy.Outcome{{Text: reply}}}
	s, doc := newTestSurface(t, client)
	doc.ReplaceAll("kept")

	if err := s.Send("suggest", false, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	settle(t, s)

	s.Clear()

	if len(s.Transcript()) != 0 {
		t.Error("Clear should empty the transcript")
	}
	if len(s.Affordances()) != 0 {
		t.Error("Clear should drop pending actions")
	}
	if doc.Text() != "kept" {
		t.Error("Clear must not touch the document")
	}
}
