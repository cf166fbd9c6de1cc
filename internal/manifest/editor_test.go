package manifest

import (
	"strings"
	"testing"
)

const sampleManifest = `[package]
name = "demo"

# [dev-dependencies] mentioned in a comment stays put
keep = ["dev-dependencies"]

[dev-dependencies]
mock = "1.0"

[dependencies]
serde = "1.0"

[dev-dependencies.local]
path = "../local"

[target.'cfg(unix)'.dev-dependencies]
nix = "0.27"

[target.'cfg(unix)'.dependencies]
libc = "0.2"
`

func TestStripSectionsRemovesAllVariants(t *testing.T) {
	got := StripSections(sampleManifest, "dev-dependencies")
	want := `[package]
name = "demo"

# [dev-dependencies] mentioned in a comment stays put
keep = ["dev-dependencies"]

[dependencies]
serde = "1.0"

[target.'cfg(unix)'.dependencies]
libc = "0.2"
`
	if got != want {
		t.Fatalf("unexpected edited manifest\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestStripSectionsNoMatchIsIdentity(t *testing.T) {
	text := "[package]\nname = \"demo\"\n\n[dependencies]\nserde = \"1\"\n"
	if got := StripSections(text, "dev-dependencies"); got != text {
		t.Fatalf("no-match edit must be identity\nwant: %q\ngot:  %q", text, got)
	}
}

func TestStripSectionsFalsePositiveImmunity(t *testing.T) {
	text := "foo = [\"dev-dependencies\"]\n# [dev-dependencies]\nbar = 1 # [dev-dependencies]\n"
	if got := StripSections(text, "dev-dependencies"); got != text {
		t.Fatalf("non-header brackets must never match\nwant: %q\ngot:  %q", text, got)
	}
}

func TestStripSectionsTargetConditionedIsolation(t *testing.T) {
	text := `[target.'cfg(unix)'.dev-dependencies]
a = "1"

[target.'cfg(unix)'.dependencies]
b = "1"
`
	want := `[target.'cfg(unix)'.dependencies]
b = "1"
`
	if got := StripSections(text, "dev-dependencies"); got != want {
		t.Fatalf("sibling target table must survive\nwant: %q\ngot:  %q", want, got)
	}
}

func TestStripSectionsEntireDocument(t *testing.T) {
	text := "[dev-dependencies]\nmock = \"1\"\nother = \"2\"\n"
	if got := StripSections(text, "dev-dependencies"); got != "" {
		t.Fatalf("expected empty remainder, got %q", got)
	}
}

func TestStripSectionsLastBlockWithoutTrailingNewline(t *testing.T) {
	text := "[package]\nname = \"demo\"\n\n[dev-dependencies]\nmock = \"1\""
	want := "[package]\nname = \"demo\"\n\n"
	if got := StripSections(text, "dev-dependencies"); got != want {
		t.Fatalf("unexpected remainder\nwant: %q\ngot:  %q", want, got)
	}
}

func TestStripSectionsIndentedHeader(t *testing.T) {
	text := "  [dev-dependencies]\n  mock = \"1\"\n[dependencies]\nserde = \"1\"\n"
	want := "[dependencies]\nserde = \"1\"\n"
	if got := StripSections(text, "dev-dependencies"); got != want {
		t.Fatalf("indented header must still match\nwant: %q\ngot:  %q", want, got)
	}
}

func TestStripSectionsPrefixNameDoesNotMatch(t *testing.T) {
	// dev-dependencies-extra is a different table, not a sub-table.
	text := "[dev-dependencies-extra]\nx = \"1\"\n"
	if got := StripSections(text, "dev-dependencies"); got != text {
		t.Fatalf("prefix-named sibling table must survive, got %q", got)
	}
}

func TestStripSectionsCRLF(t *testing.T) {
	text := "[package]\r\nname = \"demo\"\r\n[dev-dependencies]\r\nmock = \"1\"\r\n[dependencies]\r\nserde = \"1\"\r\n"
	want := "[package]\r\nname = \"demo\"\r\n[dependencies]\r\nserde = \"1\"\r\n"
	got := StripSections(text, "dev-dependencies")
	if got != want {
		t.Fatalf("CRLF manifest mishandled\nwant: %q\ngot:  %q", want, got)
	}
	// And identity on no match, byte for byte.
	if again := StripSections(got, "dev-dependencies"); again != got {
		t.Fatalf("CRLF identity violated")
	}
}

func TestStripSectionsUnterminatedHeaderIsConservative(t *testing.T) {
	// A '[' line that cannot be classified is not a match, but it still
	// bounds the preceding block.
	text := "[dev-dependencies]\nmock = \"1\"\n[dev-dependencies\nleft = \"alone\"\n"
	want := "[dev-dependencies\nleft = \"alone\"\n"
	if got := StripSections(text, "dev-dependencies"); got != want {
		t.Fatalf("unterminated header handling\nwant: %q\ngot:  %q", want, got)
	}
}

func TestStripSectionsRoundTrip(t *testing.T) {
	// restore(strip(text)) is modeled as writing the retained original
	// back; the strip itself must not disturb any byte outside removed
	// spans, so splicing removed blocks back yields the original. Here we
	// assert the simpler invariant the round trip rests on: repeated
	// stripping is stable and untouched regions are byte-identical.
	edited := StripSections(sampleManifest, "dev-dependencies")
	if StripSections(edited, "dev-dependencies") != edited {
		t.Fatalf("strip must be idempotent")
	}
	for _, chunk := range strings.Split(edited, "\n") {
		if !strings.Contains(sampleManifest, chunk) {
			t.Fatalf("edited output contains bytes not present in input: %q", chunk)
		}
	}
}
