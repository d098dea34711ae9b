package sketch

import (
	"fmt"
	"os"
	"sync"
)

// Document is the sketch text under edit. It is the single shared mutable
// resource of the editor; every mutation goes through ReplaceAll or
// ApplyPatch, and only after the user confirmed the action.
type Document struct {
	mu   sync.RWMutex
	path string
	text string
}

// NewDocument creates an in-memory document. path may be empty until the
// first save-as.
func NewDocument(path string) *Document {
	return &Document{path: path}
}

// Load reads the document from its file.
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sketch: %w", err)
	}
	return &Document{path: path, text: string(content)}, nil
}

// Text returns the current document text.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Path returns the backing file path, empty for unsaved documents.
func (d *Document) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// SetPath rebinds the document to a new file, used by save-as.
func (d *Document) SetPath(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
}

// ReplaceAll unconditionally overwrites the document text. It always
// succeeds.
func (d *Document) ReplaceAll(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
}

// ApplyPatch interprets spec against the current text and commits the
// result only when every instruction evaluated cleanly. On error the
// document is left at its pre-call state. The returned skipped list names
// the "old" texts that were absent from the document; those instructions
// are silent no-ops for the text but are surfaced so the caller can warn.
func (d *Document) ApplyPatch(spec string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	newText, skipped, err := ApplyPatch(spec, d.text)
	if err != nil {
		return nil, err
	}
	d.text = newText
	return skipped, nil
}

// Save writes the document to its backing file.
func (d *Document) Save() error {
	d.mu.RLock()
	path, text := d.path, d.text
	d.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("document has no file path")
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to save sketch: %w", err)
	}
	return nil
}
