// Package pdfexport renders a question paper body as a printable PDF.
package pdfexport

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"
)

var (
	headingRegex = regexp.MustCompile(`(?i)^(section\s+[a-e]\b|maximum\s+marks|max\.?\s+marks|general\s+instructions)`)
	emphasis     = strings.NewReplacer("**", "", "__", "")
)

// Render lays out title and body on A4 pages. Core fonts cover Latin-1 only;
// other runes are replaced by the translator.
func Render(title, body string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetCreator("tutor", true)
	doc.SetMargins(18, 18, 18)
	doc.SetAutoPageBreak(true, 18)
	doc.AliasNbPages("")
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFooterFunc(func() {
		doc.SetY(-14)
		doc.SetFont("Helvetica", "I", 8)
		doc.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", doc.PageNo()), "", 0, "C", false, 0, "")
	})

	doc.AddPage()
	doc.SetFont("Helvetica", "B", 15)
	doc.MultiCell(0, 8, tr(title), "", "C", false)
	doc.Ln(4)

	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		text := strings.TrimSpace(emphasis.Replace(strings.TrimLeft(strings.TrimSpace(line), "#")))
		if text == "" {
			doc.Ln(3)
			continue
		}
		if headingRegex.MatchString(text) {
			doc.SetFont("Helvetica", "B", 12)
			doc.Ln(2)
			doc.MultiCell(0, 6.5, tr(text), "", "L", false)
			continue
		}
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 6, tr(text), "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
