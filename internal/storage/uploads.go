package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// UploadsBucket is also the leading directory of every stored upload path.
const UploadsBucket = "uploads"

// UploadName builds "<stem>_<YYYYMMDD_HHMMSS>.<ext>" from the original file
// name. Two uploads of the same name within one second collide.
func UploadName(original, ext string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "upload"
	}
	return fmt.Sprintf("%s_%s.%s", stem, now.Format("20060102_150405"), ext)
}

// Uploads stores uploaded documents and resolves the paths recorded on chats.
type Uploads struct {
	provider Provider
	now      func() time.Time
}

func NewUploads(provider Provider) *Uploads {
	return &Uploads{provider: provider, now: time.Now}
}

func (u *Uploads) Init(ctx context.Context) error {
	return u.provider.CreateBucket(ctx, UploadsBucket)
}

// Save stores data and returns its path, "uploads/<name>".
func (u *Uploads) Save(ctx context.Context, original, ext string, data io.Reader) (string, error) {
	name := UploadName(original, ext, u.now())
	if err := u.provider.PutObject(ctx, UploadsBucket, name, data); err != nil {
		return "", fmt.Errorf("error saving upload %s: %w", original, err)
	}
	return path.Join(UploadsBucket, name), nil
}

func (u *Uploads) keyOf(stored string) (string, error) {
	key, ok := strings.CutPrefix(stored, UploadsBucket+"/")
	if !ok || key == "" {
		return "", fmt.Errorf("invalid upload path '%s'", stored)
	}
	return key, nil
}

func (u *Uploads) Open(ctx context.Context, stored string) ([]byte, error) {
	key, err := u.keyOf(stored)
	if err != nil {
		return nil, err
	}
	return u.provider.GetObject(ctx, UploadsBucket, key)
}

func (u *Uploads) Remove(ctx context.Context, stored string) error {
	key, err := u.keyOf(stored)
	if err != nil {
		return err
	}
	return u.provider.DeleteObject(ctx, UploadsBucket, key)
}
