package loaders

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

const (
	PdfParserFitz = "fitz"
	PdfParserPure = "pure"
)

type PdfLoader struct {
	stagingDir string
	extract    func(path string) (string, error)
}

func NewPdfLoader(parser, stagingDir string) (*PdfLoader, error) {
	loader := &PdfLoader{stagingDir: stagingDir}
	switch parser {
	case PdfParserFitz, "":
		loader.extract = fitzExtract
	case PdfParserPure:
		loader.extract = pureExtract
	default:
		return nil, fmt.Errorf("invalid pdf parser '%s': expected %s or %s", parser, PdfParserFitz, PdfParserPure)
	}
	return loader, nil
}

func (l *PdfLoader) Load(ctx context.Context, doc Document) (string, error) {
	file, err := fileDocument(doc)
	if err != nil {
		return "", err
	}

	path, cleanup, err := stage(l.stagingDir, file)
	if err != nil {
		return "", err
	}
	defer cleanup()

	text, err := l.extract(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return text, nil
}

// fitzExtract renders each page to HTML and converts it to markdown so that
// headings and tables survive.
func fitzExtract(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	converter := md.NewConverter("", true, nil)

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		html, err := doc.HTML(i, true)
		if err != nil {
			return "", fmt.Errorf("error rendering page %d: %w", i+1, err)
		}

		text, err := converter.ConvertString(html)
		if err != nil {
			return "", fmt.Errorf("error converting page %d: %w", i+1, err)
		}

		pages = append(pages, strings.TrimSpace(removeHardcodedImages(text)))
	}

	return strings.Join(pages, "\n\n"), nil
}

func pureExtract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("error reading page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return strings.Join(pages, "\n\n"), nil
}

var hardcodedImage = regexp.MustCompile(`!\[[^\]]*\]\(data:image/[^)]+\)`)

// removeHardcodedImages drops inline base64 images such as ![](data:image/...).
func removeHardcodedImages(content string) string {
	return hardcodedImage.ReplaceAllString(content, "")
}
