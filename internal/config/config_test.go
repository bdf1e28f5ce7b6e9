package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, "http://localhost:5000", cfg.Server.BaseURL)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ProviderLocal, cfg.ImageHost.Provider)
	assert.Equal(t, 10*time.Second, cfg.Database.Timeout)
	assert.Equal(t, int64(10), cfg.Uploads.MaxUploadMB)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CAIDAS_DATABASE_DRIVER", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("CAIDAS_IMAGEHOST_PROBE_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, DriverMongo, cfg.Database.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, 3*time.Second, cfg.ImageHost.ProbeTimeout)
}

func TestPrefixedEnvWinsOverConventional(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CAIDAS_SERVER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 7000
  base_url: "https://caidas.example.com/"
imagehost:
  provider: cloudinary
  cloudinary:
    cloud_name: demo
    api_key: key
    api_secret: secret
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "https://caidas.example.com", cfg.Server.BaseURL)
	assert.Equal(t, ProviderCloudinary, cfg.ImageHost.Provider)
	assert.Equal(t, "demo", cfg.ImageHost.Cloudinary.CloudName)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":        {"CAIDAS_DATABASE_DRIVER": "postgres"},
		"mongo without uri":     {"CAIDAS_DATABASE_DRIVER": "mongo"},
		"unknown provider":      {"CAIDAS_IMAGEHOST_PROVIDER": "s3"},
		"cloudinary no creds":   {"CAIDAS_IMAGEHOST_PROVIDER": "cloudinary"},
		"production no secret":  {"CAIDAS_SERVER_ENV": "production"},
		"bad quality":           {"CAIDAS_IMAGEHOST_LOCAL_QUALITY": "0"},
		"non positive max size": {"CAIDAS_UPLOADS_MAX_UPLOAD_MB": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
