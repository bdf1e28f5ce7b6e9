package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"caidasapi/internal/apperr"
)

// AllowedImageTypes maps the accepted file extensions to their content type.
var AllowedImageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// ImageContentType returns the content type for filename's extension and
// whether that extension is accepted.
func ImageContentType(filename string) (string, bool) {
	ct, ok := AllowedImageTypes[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

// SaveUpload stores a multipart file under dir with a random name and the
// original extension and returns its path. The caller owns the file.
func SaveUpload(fileHeader *multipart.FileHeader, dir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := AllowedImageTypes[ext]; !ok {
		return "", apperr.Validation("file type not allowed, use png, jpg, jpeg or gif")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "could not read uploaded file", err)
	}
	defer file.Close()

	// Sniff the first 512 bytes; EOF only means the file is smaller.
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", apperr.Wrap(apperr.KindValidation, "could not read uploaded file", err)
	}
	contentType := http.DetectContentType(buffer[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Validation(fmt.Sprintf("uploaded file is not an image (%s)", contentType))
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding upload: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory %s: %w", dir, err)
	}

	randomName, err := GenerateSecureToken(16)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, randomName+ext)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// GenerateSecureToken returns length random bytes, base64url encoded.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
