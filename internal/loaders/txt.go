package loaders

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"
)

type TxtLoader struct {
	stagingDir string
}

func NewTxtLoader(stagingDir string) *TxtLoader {
	return &TxtLoader{stagingDir: stagingDir}
}

func (l *TxtLoader) Load(ctx context.Context, doc Document) (string, error) {
	file, err := fileDocument(doc)
	if err != nil {
		return "", err
	}

	path, cleanup, err := stage(l.stagingDir, file)
	if err != nil {
		return "", err
	}
	defer cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading staged text: %w", err)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid utf-8", ErrParseFailure)
	}

	return string(data), nil
}
