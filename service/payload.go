package service

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

var errNoFetcher = errors.New("no fetcher configured")

// payload is a request body read once and viewed as raw bytes, form values
// and multipart files.
type payload struct {
	query     url.Values
	raw       []byte
	form      url.Values
	multipart *multipart.Form
	json      bool
}

// readPayload consumes the request body. Multipart bodies are parsed with
// memory as the in-memory threshold; the caller must call cleanup.
func readPayload(r *http.Request, memory int64) (*payload, error) {
	p := &payload{query: r.URL.Query(), form: url.Values{}}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(memory); err != nil {
			return p, err
		}
		p.multipart = r.MultipartForm
		for k, vs := range r.MultipartForm.Value {
			p.form[k] = vs
		}
		return p, nil
	case r.Body != nil:
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return p, err
		}
		p.raw = raw
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		p.json = true
	case mediaType == "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(p.raw))
		if err != nil {
			return p, err
		}
		p.form = form
	}
	return p, nil
}

// cleanup removes multipart spool files. Errors are logged and swallowed.
func (p *payload) cleanup(log *slog.Logger) {
	if p.multipart == nil {
		return
	}
	if err := p.multipart.RemoveAll(); err != nil {
		log.Warn("service: multipart cleanup failed", "error", err)
	}
}

// file returns the uploaded file under field, or nil.
func (p *payload) file(field string) *multipart.FileHeader {
	if p.multipart == nil {
		return nil
	}
	if fhs := p.multipart.File[field]; len(fhs) > 0 {
		return fhs[0]
	}
	return nil
}

// emptyFile reports whether field was sent as a file input with no file
// selected. Such parts carry no filename and land among the plain values.
func (p *payload) emptyFile(field string) bool {
	if p.multipart == nil || p.file(field) != nil {
		return false
	}
	_, ok := p.multipart.Value[field]
	return ok
}

// first returns the first non-empty value among keys, looked up in the query
// string and then in the form.
func (p *payload) first(keys ...string) string {
	if v := firstValue(p.query, keys); v != "" {
		return v
	}
	return firstValue(p.form, keys)
}

// field returns the first non-empty form value among keys, ignoring the
// query string.
func (p *payload) field(keys ...string) string {
	return firstValue(p.form, keys)
}

func firstValue(vals url.Values, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(vals.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// readUpload reads an uploaded part fully.
func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hasDocxExt(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".docx")
}

// looksLikeDocx accepts a fetched document whose Content-Type names a Word
// processing type, or whose URL (path or full string) ends in .docx.
func looksLikeDocx(contentType, rawURL string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "wordprocessingml") || strings.Contains(ct, "officedocument") {
		return true
	}
	if hasDocxExt(rawURL) {
		return true
	}
	if u, err := url.Parse(rawURL); err == nil && hasDocxExt(u.Path) {
		return true
	}
	return false
}
