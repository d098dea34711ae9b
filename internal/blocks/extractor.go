package blocks

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies what an extracted block does when confirmed.
type Kind string

// Block kinds.
const (
	KindFullReplace Kind = "full_replace"
	KindPatch       Kind = "patch"
	KindSnippet     Kind = "snippet"
)

// Block is a code region extracted from an assistant reply. Blocks live
// only for the session of the surface that produced them and are never
// persisted.
type Block struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
}

// Label is the user-facing affordance text for the block's kind.
func (b Block) Label() string {
	switch b.Kind {
	case KindFullReplace:
		return "Replace Whole Code"
	case KindPatch:
		return "Apply Code Patch"
	case KindSnippet:
		return "Run Python Code"
	default:
		return string(b.Kind)
	}
}

// patchMarker is the substring a python fence must contain to count as an
// actionable patch. Fences without it are prose examples, not patches.
const patchMarker = "code = code.replace"

var (
	fullPattern    = regexp.MustCompile("(?s)```(?:cpp|arduino|h|python)\n(.*?)\n```")
	patchPattern   = regexp.MustCompile("(?s)```python\n(.*?)\n```")
	snippetPattern = regexp.MustCompile("(?s)```run\n(.*?)\n```")
)

// Extract scans an assistant reply for actionable fenced blocks. All
// FullReplace blocks come first in document order, then Patch blocks, then
// Snippet blocks. Every block gets a fresh unique id; duplicates of the
// same kind are all retained.
func Extract(text string) []Block {
	var blocks []Block

	for _, match := range fullPattern.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, newBlock(KindFullReplace, match[1]))
	}

	for _, match := range patchPattern.FindAllStringSubmatch(text, -1) {
		if strings.Contains(match[1], patchMarker) {
			blocks = append(blocks, newBlock(KindPatch, match[1]))
		}
	}

	for _, match := range snippetPattern.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, newBlock(KindSnippet, match[1]))
	}

	return blocks
}

// Reroll returns a copy of the block with a fresh id, used if an id
// collides with one already registered.
func (b Block) Reroll() Block {
	b.ID = uuid.NewString()
	return b
}

func newBlock(kind Kind, content string) Block {
	return Block{
		ID:      uuid.NewString(),
		Kind:    kind,
		Content: strings.TrimSpace(content),
	}
}
