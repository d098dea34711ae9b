package sketch

import (
	"fmt"
	"strings"
)

// A patch is an ordered sequence of literal find/replace instructions in
// the constrained form the assistant is told to emit:
//
//	code = code.replace("exact old text", "exact new text")
//
// The instructions are interpreted, never executed: this is a closed
// grammar, not embedded scripting. Replacements are literal substrings (no
// anchoring, no regex) and each instruction applies to the running text, so
// effects compose left to right.

// PatchError reports a malformed or uninterpretable patch. The document is
// guaranteed unchanged when ApplyPatch returns one.
type PatchError struct {
	Line   int
	Reason string
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch error at line %d: %s", e.Line, e.Reason)
}

// Instruction is one parsed find/replace step.
type Instruction struct {
	Old string
	New string
}

// ParsePatch parses a patch spec into its instruction sequence. Blank lines
// and # comments are ignored; any other statement is an undefined operation
// and fails the whole patch.
func ParsePatch(spec string) ([]Instruction, error) {
	var instructions []Instruction

	for i, line := range strings.Split(spec, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		instr, err := parseInstruction(trimmed)
		if err != nil {
			return nil, &PatchError{Line: i + 1, Reason: err.Error()}
		}
		instructions = append(instructions, instr)
	}

	return instructions, nil
}

// ApplyPatch evaluates spec against text on a working copy and returns the
// patched text. Instructions whose "old" substring is absent are no-ops and
// are reported in skipped. Partial results are never returned: any parse
// failure leaves the caller with its original text.
func ApplyPatch(spec, text string) (result string, skipped []string, err error) {
	instructions, err := ParsePatch(spec)
	if err != nil {
		return "", nil, err
	}

	working := text
	for _, instr := range instructions {
		if !strings.Contains(working, instr.Old) {
			skipped = append(skipped, instr.Old)
			continue
		}
		working = strings.ReplaceAll(working, instr.Old, instr.New)
	}

	return working, skipped, nil
}

// parseInstruction scans one `code = code.replace(old, new)` statement.
func parseInstruction(line string) (Instruction, error) {
	rest := line

	if !strings.HasPrefix(rest, "code") {
		return Instruction{}, fmt.Errorf("undefined operation: %q", line)
	}
	rest = strings.TrimSpace(rest[len("code"):])

	if !strings.HasPrefix(rest, "=") {
		return Instruction{}, fmt.Errorf("undefined operation: %q", line)
	}
	rest = strings.TrimSpace(rest[1:])

	if !strings.HasPrefix(rest, "code.replace(") {
		return Instruction{}, fmt.Errorf("undefined operation: %q", line)
	}
	rest = strings.TrimSpace(rest[len("code.replace("):])

	oldText, rest, err := scanStringLiteral(rest)
	if err != nil {
		return Instruction{}, err
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ",") {
		return Instruction{}, fmt.Errorf("expected ',' between arguments")
	}
	rest = strings.TrimSpace(rest[1:])

	newText, rest, err := scanStringLiteral(rest)
	if err != nil {
		return Instruction{}, err
	}

	rest = strings.TrimSpace(rest)
	if rest != ")" {
		return Instruction{}, fmt.Errorf("expected ')' after arguments")
	}

	return Instruction{Old: oldText, New: newText}, nil
}

// scanStringLiteral consumes a single- or double-quoted string with the
// usual backslash escapes and returns its value plus the remaining input.
func scanStringLiteral(s string) (string, string, error) {
	if s == "" {
		return "", "", fmt.Errorf("expected string literal")
	}

	quote := s[0]
	if quote != '"' && quote != '\'' {
		return "", "", fmt.Errorf("expected string literal, got %q", s)
	}

	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		switch c {
		case quote:
			return b.String(), s[i+1:], nil
		case '\\':
			if i+1 >= len(s) {
				return "", "", fmt.Errorf("unterminated escape in string literal")
			}
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '"', '\'':
				b.WriteByte(s[i])
			default:
				// Unknown escapes pass through verbatim, as Python does.
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
		i++
	}

	return "", "", fmt.Errorf("unterminated string literal")
}
