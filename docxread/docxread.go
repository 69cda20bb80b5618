// Package docxread extracts the text of a .docx document.
//
// Extraction order is fixed: the text of every body paragraph, in document
// order, then the text of every table cell, table by table, row by row,
// cell by cell. Merged cells are reported once per grid position they
// cover, so a cell spanning two columns yields its text twice.
//
// Usage:
//
//	r := docxread.New(docxread.Config{})
//	env := r.Read(content) // {"status":"success","extracted_text":"..."}
package docxread

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotDocx is returned for input that is not a ZIP package or lacks
// word/document.xml.
var ErrNotDocx = errors.New("docxread: not a .docx package")

// Config configures a Reader.
type Config struct {
	// MaxSize is the largest accepted package (default: 50 MiB).
	MaxSize int64
	// MaxPartSize caps the uncompressed size of word/document.xml
	// (default: 256 MiB).
	MaxPartSize int64
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxSize <= 0 {
		c.MaxSize = 50 << 20
	}
	if c.MaxPartSize <= 0 {
		c.MaxPartSize = 256 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Reader extracts text from .docx byte buffers. It holds no per-document
// state and is safe for concurrent use.
type Reader struct {
	cfg Config
}

// New creates a Reader.
func New(cfg Config) *Reader {
	cfg.defaults()
	return &Reader{cfg: cfg}
}

// Extract returns the paragraph texts followed by the table cell texts.
func (r *Reader) Extract(content []byte) ([]string, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrNotDocx)
	}
	if int64(len(content)) > r.cfg.MaxSize {
		return nil, fmt.Errorf("document too large: %d bytes (max %d)", len(content), r.cfg.MaxSize)
	}
	if !isZip(content) {
		return nil, fmt.Errorf("%w: content is %s", ErrNotDocx, mimetype.Detect(content).String())
	}

	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("%w: word/document.xml not found in archive", ErrNotDocx)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	body, err := parseBody(io.LimitReader(rc, r.cfg.MaxPartSize))
	if err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}

	texts := make([]string, 0, len(body.paragraphs))
	texts = append(texts, body.paragraphs...)
	for _, tbl := range body.tables {
		texts = append(texts, tbl.cellTexts()...)
	}
	r.cfg.Logger.Debug("docxread: extracted",
		"paragraphs", len(body.paragraphs),
		"tables", len(body.tables),
		"items", len(texts),
	)
	return texts, nil
}

// Text returns Extract's result joined with newlines.
func (r *Reader) Text(content []byte) (string, error) {
	texts, err := r.Extract(content)
	if err != nil {
		return "", err
	}
	return strings.Join(texts, "\n"), nil
}

// Read never fails: extraction errors are reported inside the envelope.
func (r *Reader) Read(content []byte) Envelope {
	text, err := r.Text(content)
	if err != nil {
		r.cfg.Logger.Warn("docxread: extraction failed", "error", err)
		return Failure("Error reading DOCX: " + err.Error())
	}
	return Success(text)
}

// isZip reports whether content sniffs as a ZIP container or one of its
// descendants (docx, xlsx, jar...).
func isZip(content []byte) bool {
	for m := mimetype.Detect(content); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}
