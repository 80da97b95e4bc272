package library

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImporter_ImportPhoto(t *testing.T) {
	s := NewStore(nil)
	im := NewImporter(s, t.TempDir(), nil)

	item, err := im.ImportPhoto(bytes.NewReader(pngBytes(t, 12, 8)))
	require.NoError(t, err)

	assert.Equal(t, KindPhoto, item.Kind)
	assert.Equal(t, 12, item.Photo.Bounds().Dx())
	assert.Equal(t, 1, s.Len())

	_, err = im.ImportPhoto(strings.NewReader("not an image"))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestImporter_ImportVideo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "library")
	s := NewStore(nil)
	im := NewImporter(s, dir, nil)

	item, err := im.ImportVideo("../clip one.mov", strings.NewReader("first"))
	require.NoError(t, err)
	assert.Equal(t, KindVideo, item.Kind)
	assert.Equal(t, filepath.Join(dir, "clip_one.mov"), item.VideoPath)

	data, err := os.ReadFile(item.VideoPath)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	t.Run("same name keeps earlier file", func(t *testing.T) {
		again, err := im.ImportVideo("clip one.mov", strings.NewReader("second"))
		require.NoError(t, err)
		assert.NotEqual(t, item.ID, again.ID)
		assert.NotEqual(t, item.VideoPath, again.VideoPath)
		assert.Equal(t, dir, filepath.Dir(again.VideoPath))
		assert.True(t, strings.HasPrefix(filepath.Base(again.VideoPath), "clip_one-"))
		assert.Equal(t, ".mov", filepath.Ext(again.VideoPath))

		first, err := os.ReadFile(item.VideoPath)
		require.NoError(t, err)
		assert.Equal(t, "first", string(first))

		second, err := os.ReadFile(again.VideoPath)
		require.NoError(t, err)
		assert.Equal(t, "second", string(second))
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := im.ImportVideo("/", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"IMG_0001.MOV", "IMG_0001.MOV"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\clip.mp4`, "clip.mp4"},
		{"clip (1).MOV", "clip_1_.MOV"},
		{".hidden.mp4", "hidden.mp4"},
		{"", ""},
		{"/", ""},
		{"???", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}
