package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxOutput = 10 * 1024
)

// Runner executes accepted assistant snippets in a separate interpreter
// process with a wall-clock timeout, an output size ceiling and a filtered
// environment. The snippet never runs in this process.
type Runner struct {
	command        []string
	timeout        time.Duration
	maxOutputBytes int
	allowedEnv     []string
}

// Result is the captured outcome of one snippet execution. Evaluation
// errors are part of the output text, never Go errors: the text is fed back
// to the assistant either way.
type Result struct {
	Output       string `json:"output"`
	ExitCode     int    `json:"exit_code"`
	DurationMs   int64  `json:"duration_ms"`
	WasTimeout   bool   `json:"was_timeout"`
	WasTruncated bool   `json:"was_truncated"`
}

// New creates a runner that pipes snippets to command's stdin. The default
// command is `python3 -`.
func New(command []string) *Runner {
	if len(command) == 0 {
		command = []string{"python3", "-"}
	}
	return &Runner{
		command:        command,
		timeout:        defaultTimeout,
		maxOutputBytes: defaultMaxOutput,
		allowedEnv:     []string{"PATH", "HOME", "LANG", "LC_ALL", "TERM"},
	}
}

// WithTimeout sets the execution timeout.
func (r *Runner) WithTimeout(timeout time.Duration) *Runner {
	r.timeout = timeout
	return r
}

// WithMaxOutputBytes sets the captured-output ceiling.
func (r *Runner) WithMaxOutputBytes(maxBytes int) *Runner {
	r.maxOutputBytes = maxBytes
	return r
}

// Run executes one snippet and returns its captured output. Stdout and
// stderr are merged into Output; a timeout or spawn failure is also
// rendered into Output so the assistant can react to it.
func (r *Runner) Run(snippet string) *Result {
	result := &Result{}
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...)
	cmd.Stdin = strings.NewReader(snippet)
	cmd.Env = r.filterEnvironment()

	var outBuf limitedBuffer
	outBuf.limit = r.maxOutputBytes
	cmd.Stdout = &outBuf
	cmd.Stderr = &outBuf

	err := cmd.Run()
	result.DurationMs = time.Since(startTime).Milliseconds()
	result.WasTruncated = outBuf.truncated
	result.Output = outBuf.String()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.WasTimeout = true
			result.Output += fmt.Sprintf("\nExecution Error: timed out after %s", r.timeout)
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			if strings.TrimSpace(result.Output) == "" {
				result.Output = fmt.Sprintf("Execution Error: exit status %d", result.ExitCode)
			}
		} else {
			result.Output = fmt.Sprintf("Execution Error: %v", err)
		}
	}

	return result
}

// filterEnvironment passes through only harmless variables. Credentials and
// tool-specific state never reach the snippet.
func (r *Runner) filterEnvironment() []string {
	allowed := make(map[string]bool, len(r.allowedEnv))
	for _, key := range r.allowedEnv {
		allowed[key] = true
	}

	var filtered []string
	for _, entry := range os.Environ() {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if allowed[parts[0]] {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// limitedBuffer caps how much output a snippet can produce.
type limitedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	if lb.Len()+len(p) > lb.limit {
		remaining := lb.limit - lb.Len()
		if remaining > 0 {
			lb.Buffer.Write(p[:remaining])
		}
		lb.truncated = true
		return len(p), nil
	}
	return lb.Buffer.Write(p)
}
