package docxmerge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Glyphs substituted for top-level boolean context values.
const (
	CheckedGlyph   = "☑"
	UncheckedGlyph = "☐"
)

// ReservedKeys name the template source; they are removed from the context
// before rendering so they can never collide with a placeholder.
var ReservedKeys = []string{"template_url", "templateUrl"}

// ParseContext decodes a JSON object. Numbers are kept as json.Number so
// they render exactly as the client wrote them.
func ParseContext(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty context", ErrInvalidContext)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContext, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidContext)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: context must be a JSON object, got %s", ErrInvalidContext, jsonKind(v))
	}
	return obj, nil
}

// TemplateURL returns the template reference carried by the context, if any.
func TemplateURL(ctx map[string]any) string {
	for _, k := range ReservedKeys {
		if s, ok := ctx[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Sanitize prepares a context for rendering, in place: reserved keys are
// dropped and top-level booleans become CheckedGlyph or UncheckedGlyph.
// Nested values are left alone; templates can use the checkbox function
// for those.
func Sanitize(ctx map[string]any) {
	for _, k := range ReservedKeys {
		delete(ctx, k)
	}
	for k, v := range ctx {
		if b, ok := v.(bool); ok {
			ctx[k] = glyph(b)
		}
	}
}

func glyph(b bool) string {
	if b {
		return CheckedGlyph
	}
	return UncheckedGlyph
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
