package blocks

import "testing"

func TestExtractSingleFullReplace(t *testing.T) {
	reply := "Here you go:\n```cpp\nvoid setup(){}\nvoid loop(){}\n```\nEnjoy!"

	got := Extract(reply)
	if len(got) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(got))
	}
	if got[0].Kind != KindFullReplace {
		t.Errorf("Expected full_replace, got %s", got[0].Kind)
	}
	if got[0].Content != "void setup(){}\nvoid loop(){}" {
		t.Errorf("Unexpected content: %q", got[0].Content)
	}
	if got[0].ID == "" {
		t.Error("Block should get an id")
	}
}

func TestExtractOrderFullThenPatchThenSnippet(t *testing.T) {
	reply := "```run\nprint(1)\n```\n" +
		"```python\ncode = code.replace(\"a\", \"b\")\n```\n" +
		"```arduino\nvoid loop(){}\n```\n"

	got := Extract(reply)
	// The python fence yields a FullReplace and, with the marker, a Patch.
	want := []Kind{KindFullReplace, KindFullReplace, KindPatch, KindSnippet}
	if len(got) != len(want) {
		t.Fatalf("Expected %d blocks, got %d", len(want), len(got))
	}
	for i, kind := range want {
		if got[i].Kind != kind {
			t.Errorf("Block %d: expected %s, got %s", i, kind, got[i].Kind)
		}
	}
}

func TestExtractTwoFullReplacesAndOneSnippet(t *testing.T) {
	reply := "```cpp\nint a;\n```\nthen\n```cpp\nint b;\n```\nand check:\n```run\nprint('x')\n```"

	got := Extract(reply)
	if len(got) != 3 {
		t.Fatalf("Expected 3 blocks, got %d", len(got))
	}
	if got[0].Kind != KindFullReplace || got[1].Kind != KindFullReplace || got[2].Kind != KindSnippet {
		t.Errorf("Unexpected kinds: %s, %s, %s", got[0].Kind, got[1].Kind, got[2].Kind)
	}
	if got[0].Content != "int a;" || got[1].Content != "int b;" {
		t.Error("FullReplace blocks should keep document order")
	}
}

func TestPatchRequiresReplaceMarker(t *testing.T) {
	reply := "```python\nprint('just an example')\n```"

	for _, b := range Extract(reply) {
		if b.Kind == KindPatch {
			t.Error("A python fence without the replace marker must not become a patch")
		}
	}
}

func TestExtractIdempotentOnContent(t *testing.T) {
	reply := "```h\n#ifndef A_H\n#define A_H\n#endif\n```\n```run\nprint(2)\n```"

	first := Extract(reply)
	second := Extract(reply)

	if len(first) != len(second) {
		t.Fatalf("Block counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Kind != second[i].Kind {
			t.Errorf("Block %d kind differs", i)
		}
		if first[i].Content != second[i].Content {
			t.Errorf("Block %d content differs", i)
		}
		if first[i].ID == second[i].ID {
			t.Errorf("Block %d ids should be fresh per extraction", i)
		}
	}
}

func TestExtractTrimsBlankLines(t *testing.T) {
	reply := "```cpp\n\nint x;\n\n```"

	got := Extract(reply)
	if len(got) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(got))
	}
	if got[0].Content != "int x;" {
		t.Errorf("Content should be trimmed, got %q", got[0].Content)
	}
}

func TestExtractNothingFromProse(t *testing.T) {
	if got := Extract("no fences here, just advice"); len(got) != 0 {
		t.Errorf("Expected no blocks, got %d", len(got))
	}
}

func TestBlockLabels(t *testing.T) {
	cases := map[Kind]string{
		KindFullReplace: "Replace Whole Code",
		KindPatch:       "Apply Code Patch",
		KindSnippet:     "Run Python Code",
	}
	for kind, want := range cases {
		if got := (Block{Kind: kind}).Label(); got != want {
			t.Errorf("Label for %s: got %q, want %q", kind, got, want)
		}
	}
}

func TestReroll(t *testing.T) {
	b := Block{ID: "fixed", Kind: KindSnippet, Content: "print(1)"}
	r := b.Reroll()
	if r.ID == b.ID {
		t.Error("Reroll should assign a fresh id")
	}
	if r.Kind != b.Kind || r.Content != b.Content {
		t.Error("Reroll must only change the id")
	}
}
