package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caidasapi/internal/database"
	"caidasapi/internal/imagehost"
	"caidasapi/internal/models"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	s, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "services.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

// fakeHost records uploads and returns canned assets.
type fakeHost struct {
	mu      sync.Mutex
	calls   int
	sources []string
	ids     []string
	err     error
}

func (f *fakeHost) Upload(_ context.Context, source, publicID string) (*imagehost.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.sources = append(f.sources, source)
	f.ids = append(f.ids, publicID)
	if f.err != nil {
		return nil, f.err
	}
	return &imagehost.Asset{
		PublicID: publicID,
		URLs: models.HostedURLs{
			Original:  "https://img.example/" + publicID,
			Optimized: "https://img.example/f_auto,q_auto/" + publicID,
			Thumbnail: "https://img.example/w_500,h_500/" + publicID,
		},
		Format: "png",
		Bytes:  68,
		Width:  1,
		Height: 1,
	}, nil
}

func (f *fakeHost) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	return buf.Bytes()
}

func writeTempImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, pngData(t), 0o644))
	return path
}
