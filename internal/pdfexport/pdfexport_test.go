package pdfexport

import (
	"bytes"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	body := "Maximum Marks: 80\n\n## SECTION A\n1. **Define** refraction. (1)\n\nSECTION B\n2. State Ohm's law. (2)"
	doc, err := Render("Class 10 Science", body)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Errorf("output does not look like a PDF: %q", doc[:min(len(doc), 16)])
	}
	if !bytes.Contains(doc, []byte("%%EOF")) {
		t.Error("output has no EOF marker")
	}
}

func TestRenderLongPaperPaginates(t *testing.T) {
	line := "1. Explain the working of an electric motor with a labelled diagram.\n"
	short, err := Render("Paper", line)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	long, err := Render("Paper", strings.Repeat(line, 200))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(long, []byte("Page 2/")) && len(long) <= len(short) {
		t.Error("long paper should produce more output than a one-line paper")
	}
}

func TestRenderNonLatin(t *testing.T) {
	if _, err := Render("विज्ञान", "प्रश्न 1. अपवर्तन की परिभाषा दीजिए।"); err != nil {
		t.Fatalf("Render with Devanagari input: %v", err)
	}
}
