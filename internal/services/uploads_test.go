package services

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caidasapi/internal/apperr"
)

func multipartFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("imagen", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/imagenes", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["imagen"][0]
}

func TestSaveUpload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	data := pngData(t)

	path, err := SaveUpload(multipartFile(t, "Foto.PNG", data), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".png"))
	assert.NotContains(t, filepath.Base(path), "Foto")

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestSaveUploadRejects(t *testing.T) {
	dir := t.TempDir()

	_, err := SaveUpload(multipartFile(t, "doc.pdf", pngData(t)), dir)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = SaveUpload(multipartFile(t, "fake.jpg", []byte("<html><body>hola</body></html>")), dir)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageContentType(t *testing.T) {
	ct, ok := ImageContentType("a/b/photo.JPEG")
	assert.True(t, ok)
	assert.Equal(t, "image/jpeg", ct)

	_, ok = ImageContentType("photo.webp")
	assert.False(t, ok)
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(16)
	require.NoError(t, err)
	b, err := GenerateSecureToken(16)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 22)
	assert.NotContains(t, a, "/")
}
