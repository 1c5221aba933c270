package apiclient

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Form is a multipart/form-data body. It is encoded into memory so the
// request can be replayed after a token refresh.
type Form struct {
	parts []formPart
}

type formPart struct {
	name     string
	value    string
	filename string
	data     []byte
	isFile   bool
}

// NewForm returns an empty form
func NewForm() *Form {
	return &Form{}
}

// Set appends a text field
func (f *Form) Set(name, value string) *Form {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// SetNonEmpty appends a text field only when value is not empty
func (f *Form) SetNonEmpty(name, value string) *Form {
	if value == "" {
		return f
	}
	return f.Set(name, value)
}

// File appends a file field
func (f *Form) File(name, filename string, data []byte) *Form {
	f.parts = append(f.parts, formPart{name: name, filename: filename, data: data, isFile: true})
	return f
}

// FileFromPath reads path and appends it as a file field named name
func (f *Form) FileFromPath(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	f.File(name, filepath.Base(path), data)
	return nil
}

// Value returns the first text value of name
func (f *Form) Value(name string) (string, bool) {
	for _, p := range f.parts {
		if p.name == name && !p.isFile {
			return p.value, true
		}
	}
	return "", false
}

// Encode renders the form and returns the body with its content type
func (f *Form) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range f.parts {
		if !p.isFile {
			if err := w.WriteField(p.name, p.value); err != nil {
				return nil, "", err
			}
			continue
		}
		fw, err := w.CreateFormFile(p.name, p.filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(p.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
