package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// bundledLibraries ship with the board cores; they are resolved from the
// local libraries folder instead of being passed to the CLI by name.
var bundledLibraries = map[string]bool{
	"Wire": true, "Adafruit_Circuit_Playground": true, "Bridge": true,
	"Esplora": true, "Ethernet": true, "Firmata": true, "GSM": true,
	"Keyboard": true, "LiquidCrystal": true, "Mouse": true,
	"Robot_Control": true, "Robot_Motor": true, "RobotIRremote": true,
	"SD": true, "Servo": true, "SpacebrewYun": true, "Stepper": true,
	"Temboo": true, "TFT": true, "WiFi": true,
}

var includePattern = regexp.MustCompile(`#include\s*<([^>]+)>`)

// ExtractLibraries scans sketch code for #include <X.h> directives and
// splits them into standard library names and local paths for bundled
// libraries.
func ExtractLibraries(code string) (standard []string, external []string) {
	for _, match := range includePattern.FindAllStringSubmatch(code, -1) {
		name := strings.TrimSuffix(match[1], ".h")
		if bundledLibraries[name] {
			external = append(external, filepath.Join("libraries", name+".h"))
		} else {
			standard = append(standard, name)
		}
	}
	return standard, external
}

// StageSketch writes the sketch into the build folder under the
// <folder>/<folder>.ino layout the CLI requires, and returns the ino path.
func StageSketch(folder, code string) (string, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("failed to create build folder: %w", err)
	}

	inoPath := filepath.Join(folder, filepath.Base(folder)+".ino")
	if err := os.WriteFile(inoPath, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("failed to write ino file: %w", err)
	}
	return inoPath, nil
}

// Toolchain wraps the external compile/upload CLI. The pipeline treats it
// as a black box: it only ever consumes the textual outcome message.
type Toolchain struct {
	cli     string
	fqbn    string
	port    string
	timeout time.Duration
}

// New creates a toolchain wrapper around the given CLI binary.
func New(cli, fqbn, port string) *Toolchain {
	if cli == "" {
		cli = "arduino-cli"
	}
	return &Toolchain{
		cli:     cli,
		fqbn:    fqbn,
		port:    port,
		timeout: 5 * time.Minute,
	}
}

// CompileAndUpload compiles the staged sketch and uploads it. Returns
// whether the toolchain succeeded and its combined output; the failure
// message doubles as optional context for an error-role conversation.
func (t *Toolchain) CompileAndUpload(ctx context.Context, sketchPath string, libraries, externalLibs []string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{"compile", "--upload"}
	if t.fqbn != "" {
		args = append(args, "--fqbn", t.fqbn)
	}
	if t.port != "" {
		args = append(args, "--port", t.port)
	}
	for _, lib := range libraries {
		args = append(args, "--library", lib)
	}
	for _, lib := range externalLibs {
		args = append(args, "--library", lib)
	}
	args = append(args, sketchPath)

	cmd := exec.CommandContext(ctx, t.cli, args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	message := strings.TrimSpace(output.String())

	if ctx.Err() == context.DeadlineExceeded {
		return false, fmt.Sprintf("toolchain timed out after %s\n%s", t.timeout, message)
	}
	if err != nil {
		if message == "" {
			message = err.Error()
		}
		return false, message
	}
	return true, message
}
