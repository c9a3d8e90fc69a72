// Package resume extracts candidate contact details from uploaded resumes.
//
// Extraction is best effort: the intake form always lets the candidate
// correct or supply the fields by hand.
package resume

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat/docxtxt"
)

var (
	// ErrUnsupportedType is returned for anything other than PDF or DOCX.
	ErrUnsupportedType = errors.New("unsupported resume type")
	// ErrDocumentParse is returned when a supported document cannot be read.
	ErrDocumentParse = errors.New("could not read resume")
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZIP  = "application/zip"
)

// MaxSize is the largest upload Parse accepts.
const MaxSize = 10 << 20

// Extracted holds what could be read from a resume. Missing fields are empty.
type Extracted struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Text  string `json:"text"`
	MIME  string `json:"mime"`
}

// Parse detects the document type of data and extracts its fields.
func Parse(filename string, data []byte) (Extracted, error) {
	if len(data) > MaxSize {
		return Extracted{}, fmt.Errorf("%w: file exceeds %d bytes", ErrDocumentParse, MaxSize)
	}
	mt := mimetype.Detect(data)

	var (
		text string
		err  error
		kind string
	)
	switch {
	case mt.Is(mimePDF):
		kind = mimePDF
		text, err = pdfText(data)
	case mt.Is(mimeDOCX), mt.Is(mimeZIP) && strings.EqualFold(filepath.Ext(filename), ".docx"):
		kind = mimeDOCX
		text, err = docxText(data)
	default:
		return Extracted{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, filename, mt.String())
	}
	if err != nil {
		return Extracted{}, fmt.Errorf("%w: %s: %w", ErrDocumentParse, filename, err)
	}

	ex := ExtractFields(text)
	ex.MIME = kind
	return ex, nil
}

func pdfText(data []byte) (text string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func docxText(data []byte) (string, error) {
	text, err := docxtxt.BytesToStr(data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("document has no text")
	}
	return text, nil
}

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`(\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)
	nameRe  = regexp.MustCompile(`^[A-Za-z\s]{2,50}$`)
)

// ExtractFields pulls the first email, the first phone number and a name from
// text. The name is the first non-empty line when it is 2 or 3 words of
// letters.
func ExtractFields(text string) Extracted {
	ex := Extracted{Text: text}
	ex.Email = emailRe.FindString(text)
	ex.Phone = strings.TrimSpace(phoneRe.FindString(text))

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n := len(strings.Fields(line)); nameRe.MatchString(line) && n >= 2 && n <= 3 {
			ex.Name = strings.Join(strings.Fields(line), " ")
		}
		break
	}
	return ex
}
