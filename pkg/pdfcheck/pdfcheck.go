// Package pdfcheck verifies that uploaded documents are readable PDFs.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"
)

const ContentType = "application/pdf"

var (
	ErrNotPDF     = errors.New("file is not a PDF")
	ErrUnreadable = errors.New("PDF could not be read")
	ErrNoPages    = errors.New("PDF has no pages")
)

var magic = []byte("%PDF-")

// Info describes an inspected document.
type Info struct {
	Pages int
}

// IsPDFContentType reports whether a declared Content-Type is application/pdf.
func IsPDFContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return false
	}
	return mediaType == ContentType
}

// Sniff reports whether head starts with the PDF signature.
func Sniff(head []byte) bool {
	return bytes.HasPrefix(head, magic)
}

// Inspect parses the cross-reference table and page tree of the document.
func Inspect(r io.ReaderAt, size int64) (info Info, err error) {
	head := make([]byte, len(magic))
	if _, err := r.ReadAt(head, 0); err != nil || !Sniff(head) {
		return Info{}, ErrNotPDF
	}
	// The parser panics on malformed object syntax.
	defer func() {
		if rec := recover(); rec != nil {
			info = Info{}
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	pages := reader.NumPage()
	if pages <= 0 {
		return Info{}, ErrNoPages
	}
	return Info{Pages: pages}, nil
}
