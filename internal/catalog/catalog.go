package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"
)

//go:embed funcs.json
var bundledCatalog []byte

// Item is one draggable building block: a snippet plus an optional tooltip.
type Item struct {
	Snippet string `json:"snippet"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Category is a named, ordered list of items.
type Category struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Catalog is the read-only block catalog consumed at startup.
type Catalog struct {
	Categories []Category `json:"categories"`
}

// Load fetches the catalog from url, falling back to the bundled copy on
// any fetch or parse failure. The fallback is not an error: the catalog is
// a convenience asset, never a hard dependency.
func Load(ctx context.Context, url string) *Catalog {
	if url != "" {
		cat, err := fetch(ctx, url)
		if err == nil {
			return cat
		}
		log.Printf("Catalog fetch failed, using bundled copy: %v", err)
	}

	cat, err := parse(bundledCatalog)
	if err != nil {
		// The bundled asset is part of the build; a parse failure here is
		// a packaging bug, but the worker still starts.
		log.Printf("Bundled catalog unreadable: %v", err)
		return &Catalog{}
	}
	return cat
}

func fetch(ctx context.Context, url string) (*Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return parse(raw)
}

// parse normalizes the two accepted shapes: a category may map to a plain
// list of snippets (no tooltips) or to a snippet-to-tooltip object.
func parse(raw []byte) (*Catalog, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("invalid catalog JSON: %w", err)
	}

	names := make([]string, 0, len(root))
	for name := range root {
		names = append(names, name)
	}
	sort.Strings(names)

	cat := &Catalog{}
	for _, name := range names {
		items, err := parseCategory(root[name])
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", name, err)
		}
		cat.Categories = append(cat.Categories, Category{Name: name, Items: items})
	}

	return cat, nil
}

func parseCategory(raw json.RawMessage) ([]Item, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		items := make([]Item, 0, len(list))
		for _, snippet := range list {
			items = append(items, Item{Snippet: snippet})
		}
		return items, nil
	}

	var withTips map[string]string
	if err := json.Unmarshal(raw, &withTips); err != nil {
		return nil, fmt.Errorf("expected a list or an object: %w", err)
	}

	snippets := make([]string, 0, len(withTips))
	for snippet := range withTips {
		snippets = append(snippets, snippet)
	}
	sort.Strings(snippets)

	items := make([]Item, 0, len(snippets))
	for _, snippet := range snippets {
		items = append(items, Item{Snippet: snippet, Tooltip: withTips[snippet]})
	}
	return items, nil
}
