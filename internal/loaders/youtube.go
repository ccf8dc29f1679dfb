package loaders

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
)

// transcriptClient is the part of youtube.Client the loader needs.
type transcriptClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetTranscriptCtx(ctx context.Context, video *youtube.Video, lang string) (youtube.VideoTranscript, error)
}

type YoutubeLoader struct {
	client   transcriptClient
	language string
}

func NewYoutubeLoader(timeout time.Duration, language string) *YoutubeLoader {
	return &YoutubeLoader{
		client:   &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}},
		language: language,
	}
}

// VideoID accepts a watch url, a youtu.be short link or a bare video id.
func VideoID(ref string) (string, error) {
	id, err := youtube.ExtractVideoID(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("%w: no video id in '%s': %v", ErrParseFailure, ref, err)
	}
	return id, nil
}

func (l *YoutubeLoader) Load(ctx context.Context, doc Document) (string, error) {
	u, err := urlDocument(doc)
	if err != nil {
		return "", err
	}

	id, err := VideoID(u.URL)
	if err != nil {
		return "", err
	}

	video, err := l.client.GetVideoContext(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: error fetching video %s: %v", ErrUnreachable, id, err)
	}

	segments, err := l.client.GetTranscriptCtx(ctx, video, l.language)
	if err != nil {
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			return "", fmt.Errorf("%w: video %s has no transcript in '%s'", ErrEmpty, id, l.language)
		}
		return "", fmt.Errorf("%w: error fetching transcript of %s: %v", ErrUnreachable, id, err)
	}

	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		line := strings.TrimSpace(html.UnescapeString(segment.Text))
		if line != "" {
			parts = append(parts, line)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: video %s has no transcript in '%s'", ErrEmpty, id, l.language)
	}

	return strings.Join(parts, " "), nil
}
