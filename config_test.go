package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, false},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, false},
		{"cert and key", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, true},
		{"port zero", func(c *Config) { c.port = 0 }, false},
		{"port too high", func(c *Config) { c.port = 70000 }, false},
		{"no categories", func(c *Config) { c.categories = 0 }, false},
		{"no clues", func(c *Config) { c.clues = 0 }, false},
		{"pool smaller than board", func(c *Config) { c.categoryPool = 2 }, false},
		{"no fetch attempts", func(c *Config) { c.fetchRetries = 0 }, false},
		{"api url without scheme", func(c *Config) { c.apiURL = "jservice.io/api" }, false},
		{"api url ftp", func(c *Config) { c.apiURL = "ftp://jservice.io/api" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)

			err := cfg.validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, "https://jservice.io/api/", cfg.apiURL)
	assert.Equal(t, 6, cfg.categories)
	assert.Equal(t, 5, cfg.clues)
	assert.Equal(t, 100, cfg.categoryPool)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 60*time.Minute, cfg.sessionTimeout)
	assert.NoError(t, cfg.validate())
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("TRIVIABOARD_CATEGORIES", "4")
	t.Setenv("TRIVIABOARD_FETCH_TIMEOUT", "3s")
	t.Setenv("TRIVIABOARD_API_URL", "http://localhost:3000/api/")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 4, cfg.categories)
	assert.Equal(t, 3*time.Second, cfg.fetchTimeout)
	assert.Equal(t, "http://localhost:3000/api/", cfg.apiURL)
}

func TestFlagsParse(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{"--clues", "3", "-p", "9000", "--fetch_concurrency", "6"}))
	assert.Equal(t, 3, cfg.clues)
	assert.Equal(t, 9000, cfg.port)
	assert.Equal(t, 6, cfg.fetchConcurrency)
}

func TestNewBuilder(t *testing.T) {
	cfg := testConfig()

	b, err := cfg.newBuilder()
	require.NoError(t, err)
	assert.NotNil(t, b)

	cfg.apiURL = "::bad"
	_, err = cfg.newBuilder()
	assert.Error(t, err)
}
