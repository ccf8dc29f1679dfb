package loaders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBackend struct {
	calls   atomic.Int32
	results []error
	text    string
}

func (b *countingBackend) Load(ctx context.Context, doc Document) (string, error) {
	call := int(b.calls.Add(1))
	if call <= len(b.results) && b.results[call-1] != nil {
		return "", b.results[call-1]
	}
	return b.text, nil
}

func siteDoc(t *testing.T, url string) URLDocument {
	doc, err := NewURLDocument(Site, url)
	require.NoError(t, err)
	return doc
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	backend := &countingBackend{
		results: []error{ErrUnreachable, ErrUnreachable},
		text:    "content",
	}

	d := NewDispatcher()
	d.Register(Site, backend, RetryPolicy{Attempts: 5, Delay: time.Millisecond})

	text, err := d.Load(context.Background(), siteDoc(t, "example.com"))
	require.NoError(t, err)
	assert.Equal(t, "content", text)
	assert.Equal(t, int32(3), backend.calls.Load())
}

func TestDispatcherExhaustsAttempts(t *testing.T) {
	fail := errors.New("boom")
	backend := &countingBackend{results: []error{fail, fail, fail, fail, fail, fail}}

	d := NewDispatcher()
	d.Register(Site, backend, RetryPolicy{Attempts: 5, Delay: time.Millisecond})

	_, err := d.Load(context.Background(), siteDoc(t, "example.com"))
	assert.ErrorIs(t, err, ErrDocumentUnavailable)
	assert.ErrorIs(t, err, fail)
	assert.Equal(t, int32(5), backend.calls.Load())
}

func TestDispatcherEmptyIsTerminal(t *testing.T) {
	backend := &countingBackend{text: "  \n "}

	d := NewDispatcher()
	d.Register(Site, backend, RetryPolicy{Attempts: 5, Delay: time.Millisecond})

	_, err := d.Load(context.Background(), siteDoc(t, "example.com"))
	assert.ErrorIs(t, err, ErrDocumentUnavailable)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestDispatcherSingleAttempt(t *testing.T) {
	backend := &countingBackend{results: []error{ErrParseFailure}, text: "never"}

	d := NewDispatcher()
	d.Register(Txt, backend, SingleAttempt)

	doc, err := NewFileDocument(Txt, "notes.txt", NewMemoryFile([]byte("x")))
	require.NoError(t, err)

	_, err = d.Load(context.Background(), doc)
	assert.ErrorIs(t, err, ErrDocumentUnavailable)
	assert.ErrorIs(t, err, ErrParseFailure)
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestDispatcherUnregisteredType(t *testing.T) {
	_, err := NewDispatcher().Load(context.Background(), siteDoc(t, "example.com"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSiteLoaderFailsOnEveryAttempt(t *testing.T) {
	var requests atomic.Int32
	var mu sync.Mutex
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	site := NewSiteLoader(time.Second)
	n := 0
	site.userAgent = func() string {
		n++
		return fmt.Sprintf("agent-%d", n)
	}

	d := NewDispatcher()
	d.Register(Site, site, RetryPolicy{Attempts: 5, Delay: time.Millisecond})

	_, err := d.Load(context.Background(), siteDoc(t, server.URL))
	assert.ErrorIs(t, err, ErrDocumentUnavailable)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int32(5), requests.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"agent-1", "agent-2", "agent-3", "agent-4", "agent-5"}, agents)
}

func TestSiteLoaderConvertsHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Title</h1><p>Some <b>bold</b> text.</p></body></html>")
	}))
	defer server.Close()

	text, err := NewSiteLoader(time.Second).Load(context.Background(), siteDoc(t, server.URL))
	require.NoError(t, err)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "**bold**")
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com", normalizeURL("example.com"))
	assert.Equal(t, "http://example.com", normalizeURL("http://example.com"))
	assert.Equal(t, "https://example.com/a", normalizeURL("https://example.com/a"))
}

func TestTxtLoader(t *testing.T) {
	dir := t.TempDir()
	content := NewMemoryFile([]byte("Hello world"))
	doc, err := NewFileDocument(Txt, "hello.txt", content)
	require.NoError(t, err)

	text, err := NewTxtLoader(dir).Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)

	// the content is rewound for later readers
	data, err := content.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Hello world", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	bad, err := NewFileDocument(Txt, "bad.txt", NewMemoryFile([]byte{0xff, 0xfe, 0xfd}))
	require.NoError(t, err)
	_, err = NewTxtLoader(dir).Load(context.Background(), bad)
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestCsvLoader(t *testing.T) {
	doc, err := NewFileDocument(Csv, "people.csv", NewMemoryFile([]byte("name,age\nalice,30\nbob,41\n")))
	require.NoError(t, err)

	text, err := NewCsvLoader(t.TempDir()).Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "name: alice\nage: 30\n\nname: bob\nage: 41", text)

	broken, err := NewFileDocument(Csv, "broken.csv", NewMemoryFile([]byte("a,b\n\"unterminated,1\n")))
	require.NoError(t, err)
	_, err = NewCsvLoader(t.TempDir()).Load(context.Background(), broken)
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestPdfLoaderRejectsGarbage(t *testing.T) {
	loader, err := NewPdfLoader(PdfParserPure, t.TempDir())
	require.NoError(t, err)

	doc, err := NewFileDocument(Pdf, "report.pdf", NewMemoryFile([]byte("not a pdf")))
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), doc)
	assert.ErrorIs(t, err, ErrParseFailure)

	_, err = NewPdfLoader("markdown", "")
	assert.Error(t, err)
}

func TestLoaderRejectsWrongDocumentKind(t *testing.T) {
	_, err := NewTxtLoader(t.TempDir()).Load(context.Background(), siteDoc(t, "example.com"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestStageWritesExtension(t *testing.T) {
	dir := t.TempDir()
	doc, err := NewFileDocument(Csv, "a.csv", NewMemoryFile([]byte("a")))
	require.NoError(t, err)

	path, cleanup, err := stage(dir, doc)
	require.NoError(t, err)
	assert.Equal(t, ".csv", filepath.Ext(path))

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
