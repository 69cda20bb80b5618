package assets

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/docxsvc/docxmerge"
	"github.com/hazyhaar/docxsvc/docxread"
)

func TestDefaultTemplateRendersAnyObject(t *testing.T) {
	if len(DefaultTemplate) == 0 {
		t.Fatal("default template not embedded")
	}
	m := docxmerge.New(docxmerge.Config{DefaultTemplate: DefaultTemplate}, nil)
	out, err := m.Merge(context.Background(), []byte(`{"name":"Alice","done":true,"n":2}`), nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	text, err := docxread.New(docxread.Config{}).Text(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{"Generated document", "name: Alice", "done: " + docxmerge.CheckedGlyph, "n: 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
}
