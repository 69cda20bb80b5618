package docxmerge

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"maps"
	"regexp"
	"slices"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/Masterminds/sprig/v3"
	"github.com/nguyenthenguyen/docx"
)

var (
	// Tags between the two braces of a delimiter, left there by Word when
	// it splits "{{" or "}}" across runs.
	splitOpen  = regexp.MustCompile(`\{(?:<[^>]*>)+\{`)
	splitClose = regexp.MustCompile(`\}(?:<[^>]*>)+\}`)
	// Any action, tags inside included.
	action = regexp.MustCompile(`(?s)\{\{.*?\}\}`)
	xmlTag = regexp.MustCompile(`<[^>]*>`)
	// Jinja-style reference: {{ name }} or {{ user.name }}, with optional
	// trim markers.
	bareRef = regexp.MustCompile(`^(-\s+)?(\s*)([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)(\s*)(\s+-)?$`)
)

// Identifiers that must not be rewritten to field references.
var templateKeywords = map[string]bool{
	"if": true, "else": true, "end": true, "range": true, "with": true,
	"define": true, "block": true, "template": true, "break": true,
	"continue": true, "nil": true, "true": true, "false": true,
}

var quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")

// Render executes the placeholders of the template package against ctx and
// returns the new package. ctx is expected to be sanitized already.
//
// The body (word/document.xml) is a Go text/template with the sprig
// functions. Headers and footers get plain substitution of top-level
// scalar values.
func Render(tpl []byte, ctx map[string]any) ([]byte, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(tpl), int64(len(tpl)))
	if err != nil {
		return nil, fmt.Errorf("%w: open template: %v", ErrRender, err)
	}
	defer r.Close()
	d := r.Editable()

	src := NormalizePlaceholders(d.GetContent())
	t, err := template.New("document.xml").
		Option("missingkey=error").
		Funcs(funcMap()).
		Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	escapeOutput(t)

	var body bytes.Buffer
	if err := t.Execute(&body, dropNulls(ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	d.SetContent(body.String())

	// Sorted so a value that contains another key's placeholder renders
	// the same way every time.
	for _, k := range slices.Sorted(maps.Keys(ctx)) {
		s, ok := scalar(ctx[k])
		if !ok {
			continue
		}
		for _, ph := range simplePlaceholders(k) {
			if err := d.ReplaceHeader(ph, s); err != nil {
				return nil, fmt.Errorf("%w: header: %v", ErrRender, err)
			}
			if err := d.ReplaceFooter(ph, s); err != nil {
				return nil, fmt.Errorf("%w: footer: %v", ErrRender, err)
			}
		}
	}

	var out bytes.Buffer
	if err := d.Write(&out); err != nil {
		return nil, fmt.Errorf("%w: write document: %v", ErrRender, err)
	}
	return out.Bytes(), nil
}

// NormalizePlaceholders turns the raw XML of a Word body into template
// source: delimiters and actions split across runs are joined back, XML
// entities and typographic quotes inside actions are decoded, and Jinja
// style {{ name }} references become {{ .name }}.
func NormalizePlaceholders(x string) string {
	x = splitOpen.ReplaceAllString(x, "{{")
	x = splitClose.ReplaceAllString(x, "}}")
	return action.ReplaceAllStringFunc(x, func(a string) string {
		inner := a[2 : len(a)-2]
		inner = xmlTag.ReplaceAllString(inner, "")
		inner = html.UnescapeString(inner)
		inner = quoteReplacer.Replace(inner)
		if m := bareRef.FindStringSubmatch(inner); m != nil && !templateKeywords[firstSegment(m[3])] {
			inner = m[1] + m[2] + "." + m[3] + m[4] + m[5]
		}
		return "{{" + inner + "}}"
	})
}

func firstSegment(ref string) string {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i]
	}
	return ref
}

// funcMap is sprig's text function map without the functions that read
// the process environment, plus checkbox and the output escaper.
func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	delete(fm, "env")
	delete(fm, "expandenv")
	fm["checkbox"] = func(v any) string {
		b, _ := v.(bool)
		return glyph(b)
	}
	fm[escapeFunc] = escapeAny
	return fm
}

const escapeFunc = "_xml"

// escapeOutput appends the escaper to every printing action of t and of the
// templates it defines, so whatever an action prints (values, keys, whole
// maps) lands in the document as text and never as markup.
func escapeOutput(t *template.Template) {
	for _, tt := range t.Templates() {
		if tt.Tree != nil {
			escapeList(tt.Tree.Root)
		}
	}
}

func escapeList(l *parse.ListNode) {
	if l == nil {
		return
	}
	for _, n := range l.Nodes {
		switch n := n.(type) {
		case *parse.ActionNode:
			// Declarations and assignments print nothing.
			if len(n.Pipe.Decl) > 0 {
				continue
			}
			n.Pipe.Cmds = append(n.Pipe.Cmds, &parse.CommandNode{
				NodeType: parse.NodeCommand,
				Pos:      n.Pos,
				Args:     []parse.Node{parse.NewIdentifier(escapeFunc).SetTree(nil).SetPos(n.Pos)},
			})
		case *parse.IfNode:
			escapeList(n.List)
			escapeList(n.ElseList)
		case *parse.RangeNode:
			escapeList(n.List)
			escapeList(n.ElseList)
		case *parse.WithNode:
			escapeList(n.List)
			escapeList(n.ElseList)
		}
	}
}

func escapeAny(v any) string {
	if v == nil {
		return ""
	}
	return xmlEscape(fmt.Sprint(v))
}

// dropNulls returns a copy of v with JSON nulls replaced by empty strings
// at every depth.
func dropNulls(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = dropNulls(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = dropNulls(val)
		}
		return out
	default:
		return v
	}
}

func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	case bool:
		return glyph(t), true
	default:
		return "", false
	}
}

func simplePlaceholders(key string) []string {
	return []string{
		"{{" + key + "}}",
		"{{ " + key + " }}",
		"{{." + key + "}}",
		"{{ ." + key + " }}",
	}
}
