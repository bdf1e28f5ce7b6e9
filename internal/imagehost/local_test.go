package imagehost

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caidasapi/internal/config"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestLocalUploadFromFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "caida.png")
	data := pngBytes(t, 1200, 800)
	require.NoError(t, os.WriteFile(src, data, 0o644))

	dir := t.TempDir()
	host, err := NewLocal(dir, "http://localhost:5000/media/", 80, nil)
	require.NoError(t, err)

	asset, err := host.Upload(context.Background(), src, "imagen_20260301_100000")
	require.NoError(t, err)

	assert.Equal(t, "imagen_20260301_100000", asset.PublicID)
	assert.Equal(t, "png", asset.Format)
	assert.Equal(t, int64(len(data)), asset.Bytes)
	assert.Equal(t, 1200, asset.Width)
	assert.Equal(t, 800, asset.Height)

	assert.Equal(t, "http://localhost:5000/media/imagen_20260301_100000.png", asset.URLs.Original)
	assert.Equal(t, "http://localhost:5000/media/imagen_20260301_100000-opt.jpg", asset.URLs.Optimized)
	assert.Equal(t, "http://localhost:5000/media/imagen_20260301_100000-w500-h500.jpg", asset.URLs.Thumbnail)

	w, h := imageSize(t, filepath.Join(dir, "imagen_20260301_100000-w500-h500.jpg"))
	assert.Equal(t, 500, w)
	assert.Equal(t, 500, h)

	w, h = imageSize(t, filepath.Join(dir, "imagen_20260301_100000-w1000-h1000.jpg"))
	assert.Equal(t, 1000, w)
	assert.Equal(t, 1000, h)

	original, err := os.ReadFile(filepath.Join(dir, "imagen_20260301_100000.png"))
	require.NoError(t, err)
	assert.Equal(t, data, original)
}

func TestLocalUploadFromURL(t *testing.T) {
	data := pngBytes(t, 64, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	host, err := NewLocal(t.TempDir(), "http://media", 0, nil)
	require.NoError(t, err)

	asset, err := host.Upload(context.Background(), srv.URL+"/foto.png", "imagen_x")
	require.NoError(t, err)
	assert.Equal(t, 64, asset.Width)
	assert.Equal(t, "http://media/imagen_x-w500-h500.jpg", asset.URLs.Thumbnail)
}

func TestLocalUploadFailures(t *testing.T) {
	host, err := NewLocal(t.TempDir(), "http://media", 85, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		_, err := host.Upload(ctx, filepath.Join(t.TempDir(), "nope.png"), "imagen_a")
		assert.Error(t, err)
	})

	t.Run("not an image", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "fake.png")
		require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
		_, err := host.Upload(ctx, src, "imagen_b")
		assert.Error(t, err)
	})

	t.Run("remote error status", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		_, err := host.Upload(ctx, srv.URL+"/x.png", "imagen_c")
		assert.Error(t, err)
	})
}

func TestNewProvider(t *testing.T) {
	host, err := New(config.ImageHostConfig{
		Provider: config.ProviderLocal,
		Local:    config.LocalHostConfig{Dir: t.TempDir(), Quality: 85},
	}, "http://localhost:5000", nil)
	require.NoError(t, err)
	local, ok := host.(*Local)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:5000/media/a", local.url("a"))

	_, err = New(config.ImageHostConfig{Provider: config.ProviderCloudinary}, "", nil)
	assert.Error(t, err)

	_, err = New(config.ImageHostConfig{Provider: "s3"}, "", nil)
	assert.Error(t, err)
}

func TestCloudinaryTransformations(t *testing.T) {
	assert.Equal(t, "w_500,h_500,c_auto,g_auto|w_1000,h_1000,c_auto,g_auto", eagerTransformations)
	assert.Equal(t, "f_auto,q_auto", optimizedTransformation)
}
