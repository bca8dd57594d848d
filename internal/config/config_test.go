package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestDecode_Defaults(t *testing.T) {
	cfg, err := decode(newTestViper())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr)
	assert.Equal(t, 90*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.ResetTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "jwt", cfg.Auth.CookieName)
	assert.Equal(t, "log", cfg.Mail.Transport)
	assert.Equal(t, []string{"http://localhost:5173", "https://attire-clothing.vercel.app"}, cfg.CORS.Origins)
	assert.False(t, cfg.IsProduction())
}

func TestDecode_OverridesAndTrimsOrigins(t *testing.T) {
	v := newTestViper()
	v.Set("env", "Production")
	v.Set("auth.tokenttl", "1h")
	v.Set("cors.origins", []string{" https://a.example ", "", "https://b.example"})

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.Origins)
}

func TestValidate(t *testing.T) {
	cfg, err := decode(newTestViper())
	require.NoError(t, err)

	require.EqualError(t, cfg.Validate(), "auth jwt secret is required")

	cfg.Auth.JWTSecret = "s3cret"
	require.NoError(t, cfg.Validate())

	cfg.Mail.Transport = "s3"
	require.Error(t, cfg.Validate())
	cfg.Storage.Bucket = "outbox"
	require.NoError(t, cfg.Validate())

	cfg.Mail.Transport = "pigeon"
	require.Error(t, cfg.Validate())
}

func TestLoadDotEnv_DoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nATTIRE_TEST_NEW=\"fresh\"\nATTIRE_TEST_KEEP=file\ninvalid-line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ATTIRE_TEST_KEEP", "env")
	t.Setenv("ATTIRE_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("ATTIRE_TEST_NEW"))

	loadDotEnv(path)

	assert.Equal(t, "fresh", os.Getenv("ATTIRE_TEST_NEW"))
	assert.Equal(t, "env", os.Getenv("ATTIRE_TEST_KEEP"))
}
