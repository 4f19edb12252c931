package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := NewLoader("APP").Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.GithubConcurrency)
	assert.Equal(t, 80, cfg.GithubRateLimit)
	assert.Equal(t, 50, cfg.OpenaiRateLimit)
}

func TestLoadFallsBackToUnprefixedOpenAIKey(t *testing.T) {
	t.Setenv("APP_OPENAI_API_KEY", "")
	t.Setenv(string(SecretOpenAIKey), "sk-conventional")

	cfg, err := NewLoader("APP").Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-conventional", cfg.OpenaiApiKey)
}

func TestLoadPrefersPrefixedOpenAIKey(t *testing.T) {
	t.Setenv("APP_OPENAI_API_KEY", "sk-prefixed")
	t.Setenv(string(SecretOpenAIKey), "sk-conventional")

	cfg, err := NewLoader("APP").Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-prefixed", cfg.OpenaiApiKey)
}

func TestFetchSecretByNameMissing(t *testing.T) {
	t.Setenv(string(SecretOpenAIKey), "")

	_, err := FetchSecretByName(SecretOpenAIKey)
	assert.Error(t, err)
}
