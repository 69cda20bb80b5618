// Package urlfind locates an absolute http(s) URL inside arbitrary JSON.
//
// Workflow engines wrap the URL of a document in whatever envelope they
// like: {"file_url": ...}, {"input": {"files": [{"url": ...}]}}, a bare
// string, and so on. Find walks the value depth-first and returns the first
// URL it meets, looking at well-known field names before anything else at
// each object level.
package urlfind

import (
	"strings"

	"github.com/tidwall/gjson"
)

// PriorityKeys are checked, in order, on every object before its values are
// walked.
var PriorityKeys = []string{
	"file_url",
	"fileUrl",
	"url",
	"docx_url",
	"document_url",
	"template_url",
	"templateUrl",
}

// IsHTTPURL reports whether s starts with http:// or https://.
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Find returns the first http(s) URL found in v, or "" if there is none.
func Find(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		if IsHTTPURL(v.Str) {
			return v.Str
		}
		return ""
	case v.IsObject():
		return findInObject(v)
	case v.IsArray():
		var found string
		v.ForEach(func(_, item gjson.Result) bool {
			found = Find(item)
			return found == ""
		})
		return found
	default:
		return ""
	}
}

// FindBytes parses data as JSON and calls Find. Invalid JSON yields "".
func FindBytes(data []byte) string {
	if len(data) == 0 || !gjson.ValidBytes(data) {
		return ""
	}
	return Find(gjson.ParseBytes(data))
}

func findInObject(v gjson.Result) string {
	for _, key := range PriorityKeys {
		field := v.Get(key)
		if field.Type == gjson.String && IsHTTPURL(field.Str) {
			return field.Str
		}
	}
	var found string
	v.ForEach(func(_, value gjson.Result) bool {
		found = Find(value)
		return found == ""
	})
	return found
}
