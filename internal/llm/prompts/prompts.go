package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/tutor/internal/model"
)

// MaxUploadRunes caps the uploaded text forwarded to the model.
const MaxUploadRunes = 20000

// Templates holds the built-in system prompt templates.
//
//go:embed templates/*.txt
var Templates embed.FS

var (
	studentUploadRegex      = regexp.MustCompile(`(?i)</?\s*student-upload\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[model.Mode]*template.Template
)

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
}

// SystemData holds template data for system prompts.
type SystemData struct {
	StudentName    string
	StudentClass   string
	Language       string
	PaperMarker    string
	PaperDelimiter string
}

// LanguageName is the English name of the reply language.
func (d SystemData) LanguageName() string {
	if n, ok := languageNames[d.Language]; ok {
		return n
	}
	return "English"
}

// Load parses templates/common.txt plus one templates/<mode>.txt per mode.
// It uses sync.Once so templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		common, err := fs.ReadFile(fsys, "templates/common.txt")
		if err != nil {
			loadErr = fmt.Errorf("read prompt file templates/common.txt: %w", err)
			return
		}
		base, err := template.New("base").Parse(string(common))
		if err != nil {
			loadErr = fmt.Errorf("parse prompt template templates/common.txt: %w", err)
			return
		}

		parsed := make(map[model.Mode]*template.Template, len(model.Modes))
		for _, m := range model.Modes {
			file := "templates/" + string(m) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			t, err := template.Must(base.Clone()).New(string(m)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			parsed[m] = t
		}
		templates = parsed
	})
	return loadErr
}

// BuildSystemPrompt renders the system prompt for mode.
func BuildSystemPrompt(mode model.Mode, data SystemData) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[mode]
	if !ok {
		return "", errors.New("no prompt for mode: " + string(mode))
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, string(mode), data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// SanitizeUpload strips prompt-delimiting tags and caps the length.
func SanitizeUpload(text string) string {
	text = studentUploadRegex.ReplaceAllString(text, "")
	text = systemInstructionsRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > MaxUploadRunes {
		runes := []rune(text)
		text = string(runes[:MaxUploadRunes]) + "\n\n[Upload truncated due to length]"
	}
	return text
}
