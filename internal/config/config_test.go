package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsApplyWithoutEnvOrFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "podebaterap.db", cfg.StoreConnection)
	require.ElementsMatch(t, []string{"MC Inflation", "DJ Deficit"}, cfg.PersonasSeed)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("PODEBATERAP_HTTP_ADDR", ":9090")
	t.Setenv("PODEBATERAP_LLM_APIKEY", "secret-key")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, "secret-key", cfg.LLMAPIKey)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		if len(e) > len("PODEBATERAP_") && e[:len("PODEBATERAP_")] == "PODEBATERAP_" {
			key := e[:indexByte(e, '=')]
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
