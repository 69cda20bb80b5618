// Package assets bundles the default merge template.
//
// The template lists every context entry as "key: value", one per line, so
// that any JSON object renders without missing-key errors.
package assets

import _ "embed"

// DefaultTemplate is default_template.docx.
//
//go:embed default_template.docx
var DefaultTemplate []byte
