package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractLibrariesSplitsBundledAndStandard(t *testing.T) {
	code := `#include <Servo.h>
#include <Wire.h>
#include <MyCustomSensor.h>
void setup(){}`

	standard, external := ExtractLibraries(code)

	if len(standard) != 1 || standard[0] != "MyCustomSensor" {
		t.Errorf("Unexpected standard libraries: %v", standard)
	}
	if len(external) != 2 {
		t.Fatalf("Expected 2 bundled libraries, got %v", external)
	}
	for _, path := range external {
		if !strings.HasPrefix(path, "libraries"+string(filepath.Separator)) {
			t.Errorf("Bundled library should resolve to a local path, got %q", path)
		}
	}
}

func TestExtractLibrariesToleratesSpacing(t *testing.T) {
	standard, _ := ExtractLibraries("#include   <FastLED.h>")
	if len(standard) != 1 || standard[0] != "FastLED" {
		t.Errorf("Unexpected result: %v", standard)
	}
}

func TestExtractLibrariesIgnoresQuotedIncludes(t *testing.T) {
	standard, external := ExtractLibraries(`#include "local.h"`)
	if len(standard) != 0 || len(external) != 0 {
		t.Error("Quoted includes are project files, not libraries")
	}
}

func TestExtractLibrariesEmptyCode(t *testing.T) {
	standard, external := ExtractLibraries("void loop(){}")
	if len(standard) != 0 || len(external) != 0 {
		t.Error("Expected no libraries")
	}
}

func TestStageSketchLayout(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "blink")

	inoPath, err := StageSketch(folder, "void setup(){}")
	if err != nil {
		t.Fatalf("StageSketch failed: %v", err)
	}

	if inoPath != filepath.Join(folder, "blink.ino") {
		t.Errorf("Sketch must be named after its folder, got %q", inoPath)
	}

	raw, err := os.ReadFile(inoPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(raw) != "void setup(){}" {
		t.Errorf("Unexpected staged content: %q", raw)
	}
}

func TestStageSketchOverwrites(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "blink")

	if _, err := StageSketch(folder, "first"); err != nil {
		t.Fatalf("StageSketch failed: %v", err)
	}
	inoPath, err := StageSketch(folder, "second")
	if err != nil {
		t.Fatalf("StageSketch failed: %v", err)
	}

	raw, _ := os.ReadFile(inoPath)
	if string(raw) != "second" {
		t.Errorf("Restaging should overwrite, got %q", raw)
	}
}

func TestCompileAndUploadSuccess(t *testing.T) {
	tc := New("echo", "arduino:avr:uno", "/dev/ttyACM0")

	ok, output := tc.CompileAndUpload(context.Background(), "/tmp/blink.ino", []string{"FastLED"}, nil)
	if !ok {
		t.Fatalf("Expected success, got %q", output)
	}
	for _, want := range []string{"compile", "--upload", "--fqbn arduino:avr:uno", "--port /dev/ttyACM0", "--library FastLED", "/tmp/blink.ino"} {
		if !strings.Contains(output, want) {
			t.Errorf("Argument missing from invocation: %q (output %q)", want, output)
		}
	}
}

func TestCompileAndUploadOmitsEmptyFlags(t *testing.T) {
	tc := New("echo", "", "")

	ok, output := tc.CompileAndUpload(context.Background(), "/tmp/blink.ino", nil, nil)
	if !ok {
		t.Fatalf("Expected success, got %q", output)
	}
	if strings.Contains(output, "--fqbn") || strings.Contains(output, "--port") {
		t.Errorf("Unset board and port must not be passed: %q", output)
	}
}

func TestCompileAndUploadFailure(t *testing.T) {
	tc := New("false", "", "")

	ok, output := tc.CompileAndUpload(context.Background(), "/tmp/blink.ino", nil, nil)
	if ok {
		t.Fatal("Expected failure")
	}
	if output == "" {
		t.Error("A failure should carry a message")
	}
}

func TestNewDefaultsToArduinoCLI(t *testing.T) {
	tc := New("", "", "")
	if tc.cli != "arduino-cli" {
		t.Errorf("Unexpected default CLI: %q", tc.cli)
	}
}
