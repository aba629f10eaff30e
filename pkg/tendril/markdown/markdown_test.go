package markdown

import (
	"errors"
	"strings"
	"testing"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
)

func TestConvertDefaultFlags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{
			name:     "heading and emphasis",
			input:    "# H\n\n*x* **y**",
			contains: []string{"<h1>H</h1>", "<em>x</em>", "<strong>y</strong>"},
		},
		{
			name:     "table",
			input:    "| a | b |\n|---|---|\n| 1 | 2 |\n",
			contains: []string{"<table>", "<th>a</th>", "<td>2</td>"},
		},
		{
			name:     "strikethrough",
			input:    "~~gone~~ kept",
			contains: []string{"<del>gone</del>"},
		},
		{
			name:     "bare url",
			input:    "see https://example.com now",
			contains: []string{`<a href="https://example.com">https://example.com</a>`},
		},
		{
			name:     "bare email",
			input:    "mail me@example.com please",
			contains: []string{`href="mailto:me@example.com"`},
		},
		{
			name:     "task list",
			input:    "- [x] done\n- [ ] todo\n",
			contains: []string{`type="checkbox"`, "checked"},
		},
		{
			name:     "raw html passes through",
			input:    "<div class=\"note\">hi</div>\n",
			contains: []string{`<div class="note">hi</div>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert([]byte(tt.input))
			if err != nil {
				t.Fatalf("Convert() error: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Convert(%q) = %q, missing %q", tt.input, got, want)
				}
			}
		})
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	inputs := []string{
		"",
		"# Title\n\nSome *text* with a [link](/a) and ~~old~~.\n",
		"| x |\n|---|\n| y |\n\nhttps://example.org\n",
	}
	for _, in := range inputs {
		first, err := Convert([]byte(in))
		if err != nil {
			t.Fatal(err)
		}
		second, err := Convert([]byte(in))
		if err != nil {
			t.Fatal(err)
		}
		if first != second {
			t.Errorf("Convert(%q) not deterministic:\n%q\n%q", in, first, second)
		}
	}
}

func TestConvertEmptyInput(t *testing.T) {
	got, err := Convert(nil)
	if err != nil || got != "" {
		t.Errorf("Convert(nil) = %q, %v", got, err)
	}
}

func TestFlagsCanBeDisabled(t *testing.T) {
	c := New(Options{})
	got, err := c.Convert([]byte("~~x~~ https://example.com <b>raw</b>"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "<del>") {
		t.Errorf("strikethrough rendered with flag off: %q", got)
	}
	if strings.Contains(got, "<a ") {
		t.Errorf("autolink rendered with flag off: %q", got)
	}
	if strings.Contains(got, "<b>raw</b>") {
		t.Errorf("raw html passed through with Unsafe off: %q", got)
	}
}

func TestHeadingIDs(t *testing.T) {
	c := New(Options{HeadingIDs: true})
	got, err := c.Convert([]byte("## Getting Started\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `id="getting-started"`) {
		t.Errorf("got %q, want heading id", got)
	}
}

func TestRewriteLink(t *testing.T) {
	opts := DefaultOptions()
	opts.RewriteLink = func(dest string) (string, error) {
		return strings.TrimSuffix(dest, ".md") + ".html", nil
	}
	c := New(opts)

	got, err := c.Convert([]byte("[a](/docs/a.md) ![i](pic.md)"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `href="/docs/a.html"`) {
		t.Errorf("link not rewritten: %q", got)
	}
	if !strings.Contains(got, `src="pic.html"`) {
		t.Errorf("image not rewritten: %q", got)
	}
}

func TestRewriteLinkErrorDiscardsOutput(t *testing.T) {
	boom := errors.New("boom")
	opts := DefaultOptions()
	opts.RewriteLink = func(string) (string, error) { return "", boom }
	c := New(opts)

	got, err := c.Convert([]byte("before [a](/x) after"))
	if !errors.Is(err, boom) {
		t.Errorf("Convert() error = %v, want boom", err)
	}
	if got != "" {
		t.Errorf("partial output returned: %q", got)
	}

	// The converter is reusable after a failed rewrite.
	c2 := New(DefaultOptions())
	if _, err := c2.Convert([]byte("[a](/x)")); err != nil {
		t.Fatal(err)
	}
}

func TestDocumentFrontmatter(t *testing.T) {
	src := "---\ntitle: Hello\ntags: [a, b]\n---\n# Body\n"
	doc, err := New(DefaultOptions()).Document([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Meta["title"] != "Hello" {
		t.Errorf("Meta[title] = %v", doc.Meta["title"])
	}
	if tags, ok := doc.Meta["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("Meta[tags] = %#v", doc.Meta["tags"])
	}
	if !strings.Contains(doc.HTML, "<h1>Body</h1>") {
		t.Errorf("HTML = %q", doc.HTML)
	}
	if strings.Contains(doc.Body, "title:") {
		t.Errorf("Body still has frontmatter: %q", doc.Body)
	}
}

func TestDocumentWithoutFrontmatter(t *testing.T) {
	doc, err := New(DefaultOptions()).Document([]byte("plain"))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Meta) != 0 || doc.Body != "plain" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestDocumentBadFrontmatter(t *testing.T) {
	_, err := New(DefaultOptions()).Document([]byte("---\n: : :\n  - [\n---\nbody"))
	if !errors.Is(err, terrors.ErrParse) {
		t.Errorf("Document() error = %v, want ParseError", err)
	}
}
