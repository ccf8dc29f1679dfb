package loaders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/corpix/uarand"
	"github.com/go-resty/resty/v2"
)

type SiteLoader struct {
	client    *resty.Client
	converter *md.Converter
	userAgent func() string
}

func NewSiteLoader(timeout time.Duration) *SiteLoader {
	return &SiteLoader{
		client:    resty.New().SetTimeout(timeout),
		converter: md.NewConverter("", true, nil),
		userAgent: uarand.GetRandom,
	}
}

func normalizeURL(url string) string {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "https://" + url
	}
	return url
}

// Load fetches the page with a freshly chosen User-Agent and converts its
// HTML to text.
func (l *SiteLoader) Load(ctx context.Context, doc Document) (string, error) {
	u, err := urlDocument(doc)
	if err != nil {
		return "", err
	}

	url := normalizeURL(u.URL)
	ua := l.userAgent()
	slog.Info("fetching site", "url", url, "user_agent", ua)

	res, err := l.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if !res.IsSuccess() {
		return "", fmt.Errorf("%w: %s returned status %d", ErrUnreachable, url, res.StatusCode())
	}

	text, err := l.converter.ConvertString(res.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	return strings.TrimSpace(removeHardcodedImages(text)), nil
}
