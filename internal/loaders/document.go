package loaders

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

type DocumentType string

const (
	Site    DocumentType = "Site"
	Youtube DocumentType = "Youtube"
	Pdf     DocumentType = "Pdf"
	Csv     DocumentType = "Csv"
	Txt     DocumentType = "Txt"
)

var DocumentTypes = []DocumentType{Site, Youtube, Pdf, Csv, Txt}

var ErrUnsupportedType = errors.New("unsupported document type")

func ParseDocumentType(s string) (DocumentType, error) {
	for _, t := range DocumentTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: '%s'", ErrUnsupportedType, s)
}

// IsUpload reports whether documents of this type arrive as file content
// rather than as a URL.
func (t DocumentType) IsUpload() bool {
	return t == Pdf || t == Csv || t == Txt
}

func (t DocumentType) Extension() string {
	return strings.ToLower(string(t))
}

// FileContent is uploaded file data that can be read more than once.
type FileContent interface {
	ReadAll() ([]byte, error)
	Reset()
}

// MemoryFile is FileContent over an in-memory buffer.
type MemoryFile struct {
	data   []byte
	offset int
}

var _ FileContent = (*MemoryFile)(nil)
var _ io.Reader = (*MemoryFile)(nil)

func NewMemoryFile(data []byte) *MemoryFile {
	return &MemoryFile{data: data}
}

func (f *MemoryFile) Read(p []byte) (int, error) {
	if f.offset >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.offset:])
	f.offset += n
	return n, nil
}

// ReadAll returns the unread remainder of the buffer.
func (f *MemoryFile) ReadAll() ([]byte, error) {
	rest := f.data[f.offset:]
	f.offset = len(f.data)
	return rest, nil
}

func (f *MemoryFile) Reset() {
	f.offset = 0
}

func (f *MemoryFile) Len() int {
	return len(f.data)
}

// Document is either a URLDocument or a FileDocument.
type Document interface {
	Type() DocumentType
	// Reference is the URL or original file name, used for logging and titles.
	Reference() string
	isDocument()
}

type URLDocument struct {
	Kind DocumentType
	URL  string
}

func NewURLDocument(t DocumentType, url string) (URLDocument, error) {
	if t != Site && t != Youtube {
		return URLDocument{}, fmt.Errorf("%w: %s documents are uploaded files", ErrUnsupportedType, t)
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return URLDocument{}, errors.New("url cannot be empty")
	}
	return URLDocument{Kind: t, URL: url}, nil
}

func (d URLDocument) Type() DocumentType { return d.Kind }
func (d URLDocument) Reference() string  { return d.URL }
func (URLDocument) isDocument()          {}

type FileDocument struct {
	Kind    DocumentType
	Name    string
	Content FileContent
}

func NewFileDocument(t DocumentType, name string, content FileContent) (FileDocument, error) {
	if !t.IsUpload() {
		return FileDocument{}, fmt.Errorf("%w: %s documents are referenced by url", ErrUnsupportedType, t)
	}
	if name == "" {
		return FileDocument{}, errors.New("file name cannot be empty")
	}
	if content == nil {
		return FileDocument{}, errors.New("file content cannot be empty")
	}
	return FileDocument{Kind: t, Name: name, Content: content}, nil
}

func (d FileDocument) Type() DocumentType { return d.Kind }
func (d FileDocument) Reference() string  { return d.Name }
func (FileDocument) isDocument()          {}
