// Package markdown converts markdown to HTML with a fixed, documented
// extension set, assembling goldmark's rendered fragments in a
// runs.Accumulator.
package markdown

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"gopkg.in/yaml.v3"

	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
	"github.com/sambeau/tendril/pkg/tendril/runs"
)

// Options selects the markdown flags.
type Options struct {
	Tables        bool // GFM pipe tables
	Strikethrough bool // ~~text~~
	Linkify       bool // bare URLs, www. hosts and e-mail addresses become links
	TaskList      bool // - [ ] / - [x] items
	HeadingIDs    bool // id attributes on headings
	Unsafe        bool // pass raw HTML through

	// RewriteLink, when set, maps the destination of every inline link
	// and image. An error aborts the conversion and is returned as is.
	RewriteLink func(dest string) (string, error)
}

// DefaultOptions is the flag set used by the host unless configured
// otherwise: tables, strikethrough, permissive autolinking, task lists
// and raw HTML passthrough.
func DefaultOptions() Options {
	return Options{
		Tables:        true,
		Strikethrough: true,
		Linkify:       true,
		TaskList:      true,
		Unsafe:        true,
	}
}

// Converter renders markdown with one option set. A Converter with a
// RewriteLink function is not safe for concurrent use.
type Converter struct {
	md    goldmark.Markdown
	links *linkRewriter
}

// New builds a converter for opts.
func New(opts Options) *Converter {
	var exts []goldmark.Extender
	if opts.Tables {
		exts = append(exts, extension.Table)
	}
	if opts.Strikethrough {
		exts = append(exts, extension.Strikethrough)
	}
	if opts.Linkify {
		exts = append(exts, extension.Linkify)
	}
	if opts.TaskList {
		exts = append(exts, extension.TaskList)
	}

	c := &Converter{}

	var parserOptions []parser.Option
	if opts.HeadingIDs {
		parserOptions = append(parserOptions, parser.WithAutoHeadingID())
	}
	if opts.RewriteLink != nil {
		c.links = &linkRewriter{fn: opts.RewriteLink}
		parserOptions = append(parserOptions, parser.WithASTTransformers(
			util.Prioritized(c.links, 100),
		))
	}

	var rendererOptions []renderer.Option
	if opts.Unsafe {
		rendererOptions = append(rendererOptions, html.WithUnsafe())
	}

	c.md = goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parserOptions...),
		goldmark.WithRendererOptions(rendererOptions...),
	)
	return c
}

var defaultConverter = sync.OnceValue(func() *Converter {
	return New(DefaultOptions())
})

// Convert renders src with DefaultOptions.
func Convert(src []byte) (string, error) {
	return defaultConverter().Convert(src)
}

// Convert renders src to HTML. On failure nothing of the partial output
// is returned.
func (c *Converter) Convert(src []byte) (string, error) {
	acc := runs.New()
	if c.links != nil {
		c.links.err = nil
	}

	if err := c.md.Convert(src, acc); err != nil {
		acc.Discard()
		return "", terrors.Wrap("PARSE-0001", err, nil)
	}
	if c.links != nil && c.links.err != nil {
		acc.Discard()
		return "", c.links.err
	}

	return acc.Finish()
}

// Document is a converted markdown file with its frontmatter.
type Document struct {
	HTML string         // rendered body
	Body string         // markdown without the frontmatter block
	Meta map[string]any // frontmatter, empty when absent
}

// Document splits off YAML frontmatter delimited by --- lines and
// renders the remaining body.
func (c *Converter) Document(src []byte) (*Document, error) {
	body, meta, err := splitFrontmatter(src)
	if err != nil {
		return nil, err
	}

	out, err := c.Convert(body)
	if err != nil {
		return nil, err
	}

	return &Document{HTML: out, Body: string(body), Meta: meta}, nil
}

// splitFrontmatter returns the body and parsed frontmatter of src.
func splitFrontmatter(src []byte) ([]byte, map[string]any, error) {
	meta := map[string]any{}

	trimmed := bytes.TrimSpace(src)
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return src, meta, nil
	}

	rest := trimmed[3:]
	before, after, ok := bytes.Cut(rest, []byte("\n---"))
	if !ok {
		return src, meta, nil
	}

	if err := yaml.Unmarshal(before, &meta); err != nil {
		return nil, nil, terrors.Wrap("PARSE-0003", err, nil)
	}
	if meta == nil {
		meta = map[string]any{}
	}

	return bytes.TrimSpace(after), meta, nil
}

// linkRewriter applies Options.RewriteLink to link and image
// destinations after parsing.
type linkRewriter struct {
	fn  func(dest string) (string, error)
	err error
}

// Transform implements parser.ASTTransformer.
func (r *linkRewriter) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		var dest *[]byte
		switch node := n.(type) {
		case *ast.Link:
			dest = &node.Destination
		case *ast.Image:
			dest = &node.Destination
		default:
			return ast.WalkContinue, nil
		}

		rewritten, err := r.fn(string(*dest))
		if err != nil {
			r.err = err
			return ast.WalkStop, err
		}
		*dest = []byte(rewritten)
		return ast.WalkContinue, nil
	})
}
