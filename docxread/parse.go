package docxread

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
)

type body struct {
	paragraphs []string
	tables     []table
}

type table struct {
	rows [][]cell
}

type cell struct {
	text      string
	span      int  // w:gridSpan, at least 1
	vContinue bool // w:vMerge continuation of the cell above
}

// Subtrees that never contribute paragraph text: properties (which hold
// tab stop definitions named "tab") and drawing containers (which hold text
// boxes with their own paragraphs).
var skipInParagraph = map[string]bool{
	"pPr":               true,
	"rPr":               true,
	"drawing":           true,
	"pict":              true,
	"object":            true,
	"AlternateContent":  true,
	"footnoteReference": true,
	"endnoteReference":  true,
}

// parseBody streams document.xml and keeps the direct children of w:body
// that matter: paragraphs and tables.
func parseBody(r io.Reader) (*body, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, errors.New("w:body not found")
		}
		if err != nil {
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "body" {
			return readBody(dec)
		}
	}
}

func readBody(dec *xml.Decoder) (*body, error) {
	b := &body{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				text, err := readParagraph(dec)
				if err != nil {
					return nil, err
				}
				b.paragraphs = append(b.paragraphs, text)
			case "tbl":
				tbl, err := readTable(dec)
				if err != nil {
					return nil, err
				}
				b.tables = append(b.tables, tbl)
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			return b, nil
		}
	}
}

// readParagraph is called after the w:p start token and consumes up to and
// including its end token.
func readParagraph(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	inText := 0
	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			return "", unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if skipInParagraph[t.Name.Local] {
				if err := dec.Skip(); err != nil {
					return "", err
				}
				continue
			}
			depth++
			switch t.Name.Local {
			case "t":
				inText++
			case "tab", "ptab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			case "noBreakHyphen":
				sb.WriteByte('-')
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "t" && inText > 0 {
				inText--
			}
		case xml.CharData:
			if inText > 0 {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func readTable(dec *xml.Decoder) (table, error) {
	var tbl table
	for {
		tok, err := dec.Token()
		if err != nil {
			return tbl, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "tr" {
				if err := dec.Skip(); err != nil {
					return tbl, err
				}
				continue
			}
			row, err := readRow(dec)
			if err != nil {
				return tbl, err
			}
			tbl.rows = append(tbl.rows, row)
		case xml.EndElement:
			return tbl, nil
		}
	}
}

func readRow(dec *xml.Decoder) ([]cell, error) {
	var row []cell
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "tc" {
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			c, err := readCell(dec)
			if err != nil {
				return nil, err
			}
			row = append(row, c)
		case xml.EndElement:
			return row, nil
		}
	}
}

// readCell keeps the cell's own paragraphs. Nested tables are skipped, as
// they belong to the cell's content but not to its text.
func readCell(dec *xml.Decoder) (cell, error) {
	c := cell{span: 1}
	var paras []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return c, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tcPr":
				if err := readCellProps(dec, &c); err != nil {
					return c, err
				}
			case "p":
				text, err := readParagraph(dec)
				if err != nil {
					return c, err
				}
				paras = append(paras, text)
			default:
				if err := dec.Skip(); err != nil {
					return c, err
				}
			}
		case xml.EndElement:
			c.text = strings.Join(paras, "\n")
			return c, nil
		}
	}
}

func readCellProps(dec *xml.Decoder, c *cell) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "gridSpan":
				if n, err := strconv.Atoi(attr(t, "val")); err == nil && n > 1 {
					c.span = n
				}
			case "vMerge":
				// A missing val means "continue".
				c.vContinue = attr(t, "val") != "restart"
			}
			if err := dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// cellTexts lays the table out on its grid and returns one text per grid
// position, row-major. Continuation cells repeat the text found at the same
// grid column in the row above.
func (t table) cellTexts() []string {
	var out []string
	var prev []string
	for _, row := range t.rows {
		var cur []string
		for _, c := range row {
			text := c.text
			if c.vContinue && len(cur) < len(prev) {
				text = prev[len(cur)]
			}
			for i := 0; i < c.span; i++ {
				cur = append(cur, text)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
