package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	cfg := loadFromEnv()
	cfg.Database.Password = "secret"
	cfg.JWT.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.LeadAPI.BaseURL = "https://leads.example.com/api"
	return cfg
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("LEAD_API_BASE_URL", "https://crm.example.com")
	t.Setenv("LEAD_API_TIMEOUT", "3s")
	t.Setenv("LEAD_API_CONVERTED_STAGE_ID", "stage-42")
	t.Setenv("DOCUMENTS_PROVIDER", "s3")
	t.Setenv("DOCUMENTS_S3_BUCKET", "lead-docs")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("CACHE_ENABLED", "false")

	cfg := loadFromEnv()
	assert.Equal(t, "https://crm.example.com", cfg.LeadAPI.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.LeadAPI.Timeout)
	assert.Equal(t, "stage-42", cfg.LeadAPI.ConvertedStageID)
	assert.Equal(t, 2*time.Second, cfg.LeadAPI.StageAdvanceMaxElapsed)
	assert.Equal(t, "s3", cfg.Documents.Provider)
	assert.Equal(t, "lead-docs", cfg.Documents.S3Bucket)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.AllowedOrigins)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadFromEnv_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("LEAD_API_TIMEOUT", "soon")

	cfg := loadFromEnv()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.LeadAPI.Timeout)
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProductionConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*ProductionConfig) {}},
		{
			name:    "missing lead api",
			mutate:  func(c *ProductionConfig) { c.LeadAPI.BaseURL = "" },
			wantErr: "LEAD_API_BASE_URL is required",
		},
		{
			name:    "relative lead api",
			mutate:  func(c *ProductionConfig) { c.LeadAPI.BaseURL = "/api" },
			wantErr: "LEAD_API_BASE_URL must be an absolute URL",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *ProductionConfig) { c.JWT.SecretKey = "short" },
			wantErr: "JWT_SECRET_KEY must be at least 32 characters long",
		},
		{
			name: "rsa keys replace the secret",
			mutate: func(c *ProductionConfig) {
				c.JWT.SecretKey = ""
				c.JWT.UseRSAKeys = true
				c.JWT.PrivateKey = "private"
				c.JWT.PublicKey = "public"
			},
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *ProductionConfig) { c.Documents.Provider = "s3" },
			wantErr: "DOCUMENTS_S3_BUCKET is required",
		},
		{
			name:    "unknown documents provider",
			mutate:  func(c *ProductionConfig) { c.Documents.Provider = "ftp" },
			wantErr: "DOCUMENTS_PROVIDER must be one of",
		},
		{
			name: "file logging without path",
			mutate: func(c *ProductionConfig) {
				c.Logging.Output = "both"
				c.Logging.FilePath = ""
			},
			wantErr: "LOG_FILE_PATH is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProductionConfig_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = ""
	cfg.LeadAPI.BaseURL = ""
	cfg.Server.Port = 0

	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD is required")
	assert.Contains(t, err.Error(), "LEAD_API_BASE_URL is required")
	assert.Contains(t, err.Error(), "SERVER_PORT must be between 1 and 65535")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEADFLOW_TEST_FROM_FILE=\"from file\"\nLEADFLOW_TEST_KEEP=file\n"), 0o600))

	t.Setenv("LEADFLOW_TEST_KEEP", "env")
	t.Cleanup(func() { _ = os.Unsetenv("LEADFLOW_TEST_FROM_FILE") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from file", os.Getenv("LEADFLOW_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("LEADFLOW_TEST_KEEP"))

	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
