package loaders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrDocumentUnavailable = errors.New("document unavailable")
	ErrUnreachable         = errors.New("document unreachable")
	ErrEmpty               = errors.New("document is empty")
	ErrParseFailure        = errors.New("unable to parse document")
)

// Backend extracts plain text from one kind of document.
type Backend interface {
	Load(ctx context.Context, doc Document) (string, error)
}

type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

var SingleAttempt = RetryPolicy{Attempts: 1}

type route struct {
	backend Backend
	policy  RetryPolicy
}

// Dispatcher routes each document to the backend registered for its type and
// applies that type's retry policy.
type Dispatcher struct {
	routes map[DocumentType]route
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{routes: make(map[DocumentType]route)}
}

func (d *Dispatcher) Register(t DocumentType, backend Backend, policy RetryPolicy) {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	d.routes[t] = route{backend: backend, policy: policy}
}

// Load returns the document's text. Backend errors are retried up to the
// policy's attempt count. An empty result is not retried. Every failure is
// reported wrapped in ErrDocumentUnavailable.
func (d *Dispatcher) Load(ctx context.Context, doc Document) (string, error) {
	r, ok := d.routes[doc.Type()]
	if !ok {
		return "", fmt.Errorf("%w: no loader for %s", ErrUnsupportedType, doc.Type())
	}

	var err error
	for i := 0; i < r.policy.Attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", ErrDocumentUnavailable, ctx.Err())
			case <-time.After(r.policy.Delay):
			}
		}

		var text string
		text, err = r.backend.Load(ctx, doc)
		if err == nil {
			if strings.TrimSpace(text) == "" {
				slog.Warn("document produced no text", "type", doc.Type(), "reference", doc.Reference())
				return "", fmt.Errorf("%w: %w", ErrDocumentUnavailable, ErrEmpty)
			}
			slog.Info("document loaded", "type", doc.Type(), "reference", doc.Reference(), "chars", len(text), "attempt", i+1)
			return text, nil
		}

		slog.Warn("error loading document", "type", doc.Type(), "reference", doc.Reference(), "attempt", i+1, "max_attempts", r.policy.Attempts, "error", err)
	}

	slog.Error("failed to load document", "type", doc.Type(), "reference", doc.Reference(), "attempts", r.policy.Attempts, "error", err)
	return "", fmt.Errorf("%w: failed after %d attempts: %w", ErrDocumentUnavailable, r.policy.Attempts, err)
}

type Config struct {
	SiteAttempts    int
	SiteRetryDelay  time.Duration
	FetchTimeout    time.Duration
	YoutubeLanguage string
	PdfParser       string
	StagingDir      string
}

// NewDefaultDispatcher registers a backend for every document type. Only
// sites are retried.
func NewDefaultDispatcher(cfg Config) (*Dispatcher, error) {
	pdf, err := NewPdfLoader(cfg.PdfParser, cfg.StagingDir)
	if err != nil {
		return nil, err
	}

	d := NewDispatcher()
	d.Register(Site, NewSiteLoader(cfg.FetchTimeout), RetryPolicy{Attempts: cfg.SiteAttempts, Delay: cfg.SiteRetryDelay})
	d.Register(Youtube, NewYoutubeLoader(cfg.FetchTimeout, cfg.YoutubeLanguage), SingleAttempt)
	d.Register(Pdf, pdf, SingleAttempt)
	d.Register(Csv, NewCsvLoader(cfg.StagingDir), SingleAttempt)
	d.Register(Txt, NewTxtLoader(cfg.StagingDir), SingleAttempt)
	return d, nil
}
