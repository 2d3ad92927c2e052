package storage

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/config"
)

const dataURIPrefix = "data:image/"

// ImageStore writes uploaded recipe photos under the configured media dir.
type ImageStore struct {
	dir string
}

func NewImageStore(cfg *config.Config) (*ImageStore, error) {
	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create media dir")
	}
	return &ImageStore{dir: cfg.MediaDir}, nil
}

// Save decodes a "data:image/...;base64," payload and stores it under a fresh
// name, returning the stored file name. Anything that is not a data URI is
// treated as an already-stored reference and returned unchanged, so updates
// can resubmit the reference they were served.
func (s *ImageStore) Save(payload string) (string, error) {
	if !strings.HasPrefix(payload, dataURIPrefix) {
		return payload, nil
	}

	meta, data, found := strings.Cut(payload, ";base64,")
	if !found {
		return "", errors.New("image payload is not base64 encoded")
	}
	ext := strings.TrimPrefix(meta, dataURIPrefix)
	if ext == "jpeg" {
		ext = "jpg"
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", errors.Wrap(err, "decode image payload")
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", errors.Wrap(err, "decode image")
	}

	name := uuid.New().String() + "." + ext
	if err := imaging.Save(img, filepath.Join(s.dir, name)); err != nil {
		return "", errors.Wrap(err, "save image")
	}
	return name, nil
}

// Remove deletes a file previously returned by Save.
func (s *ImageStore) Remove(ref string) error {
	if err := os.Remove(filepath.Join(s.dir, filepath.Base(ref))); err != nil {
		return errors.Wrap(err, "remove image")
	}
	return nil
}
