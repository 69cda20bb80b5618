package urlfind

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestFindBytes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare string", `"https://example.com/a.docx"`, "https://example.com/a.docx"},
		{"bare non-url string", `"ftp://example.com/a.docx"`, ""},
		{"top-level key", `{"file_url":"http://x/a.docx"}`, "http://x/a.docx"},
		{"nested in array", `{"input":{"files":[{"name":"a"},{"link":"https://x/b.docx"}]}}`, "https://x/b.docx"},
		{"deep", `[[[[{"a":{"b":{"c":["https://deep/c.docx"]}}}]]]]`, "https://deep/c.docx"},
		{"no url", `{"a":1,"b":[true,null,"text"],"c":{"d":2.5}}`, ""},
		{"number", `42`, ""},
		{"null", `null`, ""},
		{"invalid json", `{"url":`, ""},
		{"empty", ``, ""},
		{"priority key not a url falls through", `{"url":"not-a-url","other":"https://x/o.docx"}`, "https://x/o.docx"},
		{"priority key not a string falls through", `{"url":{"href":"https://x/nested.docx"}}`, "https://x/nested.docx"},
		{"uppercase scheme is not a url", `{"url":"HTTPS://x/a.docx"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindBytes([]byte(tt.in)); got != tt.want {
				t.Errorf("FindBytes(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFindPriorityOrder(t *testing.T) {
	// "other" comes first in document order but file_url is a priority key.
	in := `{"other":"https://x/other.docx","template_url":"https://x/t.docx","file_url":"https://x/f.docx"}`
	if got := FindBytes([]byte(in)); got != "https://x/f.docx" {
		t.Fatalf("got %q, want file_url", got)
	}

	in = `{"other":"https://x/other.docx","templateUrl":"https://x/t.docx"}`
	if got := FindBytes([]byte(in)); got != "https://x/t.docx" {
		t.Fatalf("got %q, want templateUrl", got)
	}
}

func TestFindShallowPriorityWins(t *testing.T) {
	in := `{"nested":{"url":"https://x/deep.docx"},"url":"https://x/shallow.docx"}`
	if got := FindBytes([]byte(in)); got != "https://x/shallow.docx" {
		t.Fatalf("got %q, want shallow url", got)
	}
}

func TestFindDocumentOrder(t *testing.T) {
	in := `{"z":"https://x/first.docx","a":"https://x/second.docx"}`
	if got := FindBytes([]byte(in)); got != "https://x/first.docx" {
		t.Fatalf("got %q, want first key in document order", got)
	}
}

func TestFindAtAnyDepth(t *testing.T) {
	const u = "https://example.com/doc.docx"
	doc := `"` + u + `"`
	for depth := 0; depth < 20; depth++ {
		if depth%2 == 0 {
			doc = `{"k":` + doc + `}`
		} else {
			doc = `[1,` + doc + `]`
		}
		if got := Find(gjson.Parse(doc)); got != u {
			t.Fatalf("depth %d: got %q", depth, got)
		}
	}
}

func TestIsHTTPURL(t *testing.T) {
	for s, want := range map[string]bool{
		"http://a":  true,
		"https://a": true,
		"ftp://a":   false,
		"":          false,
		" http://a": false,
		"httpx://a": false,
		"http:/a":   false,
		"https://":  true,
	} {
		if got := IsHTTPURL(s); got != want {
			t.Errorf("IsHTTPURL(%q) = %v, want %v", s, got, want)
		}
	}
}
