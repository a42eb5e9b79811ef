// Package upload turns files attached to a chat turn into text or an image
// data URI for the chat transport.
package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/pavelanni/tutor/internal/model"
)

// MaxSize is the largest accepted upload in bytes.
const MaxSize = 10 << 20

var (
	// ErrUnsupported is returned for file types that are neither PDF, image nor text.
	ErrUnsupported = errors.New("unsupported upload type")
	// ErrNoText is returned when a document has no extractable text, e.g. a scanned PDF.
	ErrNoText = errors.New("no extractable text")
	// ErrTooLarge is returned for uploads over MaxSize.
	ErrTooLarge = errors.New("upload too large")
)

var imageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Result is an extracted upload.
type Result struct {
	Name string
	MIME string
	Type model.UploadType
	// Text is the extracted text, or a data URI for images.
	Text string
}

// Extract detects the file type from its content and converts it.
func Extract(name string, data []byte) (Result, error) {
	res := Result{Name: name}
	if len(data) > MaxSize {
		return res, ErrTooLarge
	}
	if len(data) == 0 {
		return res, fmt.Errorf("%s: %w", name, ErrNoText)
	}

	mt := mimetype.Detect(data)
	res.MIME = mt.String()

	switch {
	case mt.Is("application/pdf"):
		text, err := pdfText(data)
		if err != nil {
			return res, fmt.Errorf("%s: %w", name, err)
		}
		res.Type, res.Text = model.UploadText, text
	case isImage(mt):
		res.Type = model.UploadImage
		res.Text = "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data)
	case isText(mt):
		text := normalizeText(string(data))
		if text == "" {
			return res, fmt.Errorf("%s: %w", name, ErrNoText)
		}
		res.Type, res.Text = model.UploadText, text
	default:
		return res, fmt.Errorf("%s (%s): %w", name, mt.String(), ErrUnsupported)
	}
	return res, nil
}

func isImage(mt *mimetype.MIME) bool {
	for _, t := range imageTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") || m.Is("application/json") {
			return true
		}
	}
	return false
}

func pdfText(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text = normalizeText(b.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// normalizeText unifies line endings, trims lines and collapses blank runs.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var buf strings.Builder
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blank++
			if blank > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		blank = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}
	return strings.TrimSpace(buf.String())
}
