package loaders

import (
	"fmt"
	"log/slog"
	"os"
)

// stage writes the file content to a temporary file for backends that parse
// from disk. The returned cleanup removes it, logging rather than failing if
// the removal does not succeed.
func stage(dir string, doc FileDocument) (string, func(), error) {
	data, err := doc.Content.ReadAll()
	doc.Content.Reset()
	if err != nil {
		return "", nil, fmt.Errorf("%w: error reading upload: %v", ErrParseFailure, err)
	}

	file, err := os.CreateTemp(dir, "docgpt-*."+doc.Kind.Extension())
	if err != nil {
		return "", nil, fmt.Errorf("error creating staging file: %w", err)
	}

	path := file.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil {
			slog.Warn("unable to remove staging file", "path", path, "error", err)
		}
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		cleanup()
		return "", nil, fmt.Errorf("error writing staging file: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("error closing staging file: %w", err)
	}

	return path, cleanup, nil
}

func fileDocument(doc Document) (FileDocument, error) {
	file, ok := doc.(FileDocument)
	if !ok {
		return FileDocument{}, fmt.Errorf("%w: expected an uploaded file for %s", ErrUnsupportedType, doc.Type())
	}
	return file, nil
}

func urlDocument(doc Document) (URLDocument, error) {
	u, ok := doc.(URLDocument)
	if !ok {
		return URLDocument{}, fmt.Errorf("%w: expected a url for %s", ErrUnsupportedType, doc.Type())
	}
	return u, nil
}
