package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "http scheme preserved",
			raw:      "http://localhost:3000",
			expected: "http://localhost:3000",
		},
		{
			name:     "https scheme preserved",
			raw:      "https://api.educonnect.dev",
			expected: "https://api.educonnect.dev",
		},
		{
			name:     "missing scheme gets https",
			raw:      "api.educonnect.dev",
			expected: "https://api.educonnect.dev",
		},
		{
			name:     "trailing slash stripped",
			raw:      "https://api.educonnect.dev/",
			expected: "https://api.educonnect.dev",
		},
		{
			name:     "multiple trailing slashes stripped",
			raw:      "api.educonnect.dev///",
			expected: "https://api.educonnect.dev",
		},
		{
			name:     "surrounding whitespace trimmed",
			raw:      "  https://api.educonnect.dev  ",
			expected: "https://api.educonnect.dev",
		},
		{
			name:     "empty stays empty",
			raw:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeBaseURL(tt.raw))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API:   APIConfig{BaseURL: "https://api.educonnect.dev", RestoreTimeoutSeconds: 15},
			Shell: ShellConfig{Addr: ":8080"},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing base URL fails", func(t *testing.T) {
		cfg := valid()
		cfg.API.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative request timeout fails", func(t *testing.T) {
		cfg := valid()
		cfg.API.RequestTimeoutSeconds = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing shell addr fails", func(t *testing.T) {
		cfg := valid()
		cfg.Shell.Addr = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("profiling enabled requires endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.Profiling.Enabled = true
		assert.Error(t, cfg.Validate())

		cfg.Profiling.Endpoint = "pyroscope:4040"
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_Environment(t *testing.T) {
	dev := &Config{API: APIConfig{AppEnv: "development"}}
	prod := &Config{API: APIConfig{AppEnv: "production"}}

	assert.True(t, dev.IsDevelopment())
	assert.False(t, dev.IsProduction())
	assert.True(t, prod.IsProduction())
	assert.False(t, prod.IsDevelopment())
}
