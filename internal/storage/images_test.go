package storage

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/config"
)

func newTestStore(t *testing.T) *ImageStore {
	t.Helper()
	store, err := NewImageStore(&config.Config{MediaDir: t.TempDir()})
	require.NoError(t, err)
	return store
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	buf := bytes.Buffer{}
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestSaveDataURI(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.Save(pngDataURI(t))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".png"), ref)

	_, err = os.Stat(filepath.Join(store.dir, ref))
	assert.NoError(t, err)
}

func TestSavePassesThroughStoredRefs(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.Save("already-stored.png")
	require.NoError(t, err)
	assert.Equal(t, "already-stored.png", ref)
}

func TestRemoveDeletesStoredFile(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.Save(pngDataURI(t))
	require.NoError(t, err)

	require.NoError(t, store.Remove(ref))

	_, err = os.Stat(filepath.Join(store.dir, ref))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, store.Remove(ref))
}

func TestSaveRejectsGarbage(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("data:image/png;base64,not-base64!!!")
	assert.Error(t, err)

	_, err = store.Save("data:image/png,no-encoding-marker")
	assert.Error(t, err)
}
