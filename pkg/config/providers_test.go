package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providersJSON = `[
  {
    "PROVIDER_NAME": "5N DevNet",
    "AUTH_URL": "https://auth.example.com/token",
    "JSON_API": {
      "API_URL": "https://ledger.example.com/v2/",
      "CLIENT_ID": "ledger-client",
      "CLIENT_SECRET": "secret",
      "AUDIENCE": "ledger",
      "SCOPE": "daml_ledger_api",
      "PARTY_ID": "FM::1220abc",
      "USER_ID": "fairmint-user"
    },
    "VALIDATOR_API": {
      "API_URL": "https://validator.example.com",
      "GRANT_TYPE": "password",
      "CLIENT_ID": "validator-client",
      "USERNAME": "operator",
      "PASSWORD": "pw",
      "PARTY_ID": "FM::1220abc",
      "USER_ID": "fairmint-user"
    }
  },
  {
    "PROVIDER_NAME": "Intellect",
    "AUTH_URL": "https://auth.intellect.example.com/token",
    "PARTY_HINT_PREFIX": "IX:",
    "JSON_API": {
      "API_URL": "https://ledger.intellect.example.com",
      "CLIENT_ID": "intellect",
      "PARTY_ID": "IX::1220def",
      "USER_ID": "ix-user"
    }
  }
]`

func envFrom(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestLoadFromProvidersEnv(t *testing.T) {
	providers, err := Load(LoadOptions{Getenv: envFrom(map[string]string{EnvProviders: providersJSON})})
	require.NoError(t, err)

	assert.Equal(t, SourceEnv, providers.Source())
	assert.Equal(t, []string{"5N DevNet", "Intellect"}, providers.Names())

	first, ok := providers.ByIndex(0)
	require.True(t, ok)
	assert.Equal(t, "https://ledger.example.com/v2", first.JSONAPI.APIURL)
	assert.Equal(t, GrantClientCredentials, first.JSONAPI.GrantType)
	assert.Equal(t, GrantPassword, first.ValidatorAPI.GrantType)
	assert.Equal(t, "operator", first.ValidatorAPI.Username)
	assert.Equal(t, DefaultPartyHintPrefix, first.HintPrefix())

	second, ok := providers.ByName("Intellect")
	require.True(t, ok)
	assert.Equal(t, "IX:", second.HintPrefix())
	assert.False(t, second.ValidatorAPI.Configured())

	_, ok = providers.ByIndex(2)
	assert.False(t, ok)
	_, ok = providers.ByName("missing")
	assert.False(t, ok)
}

func TestLoadRejectsMalformedProvidersEnv(t *testing.T) {
	_, err := Load(LoadOptions{Getenv: envFrom(map[string]string{EnvProviders: "{not json"})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CANTON_PROVIDERS")
}

func TestLoadValidatesProviders(t *testing.T) {
	cases := map[string]string{
		"missing name":     `[{"AUTH_URL":"https://auth"}]`,
		"missing auth url": `[{"PROVIDER_NAME":"p"}]`,
		"unknown grant":    `[{"PROVIDER_NAME":"p","AUTH_URL":"https://auth","JSON_API":{"API_URL":"https://l","GRANT_TYPE":"implicit"}}]`,
		"password no user": `[{"PROVIDER_NAME":"p","AUTH_URL":"https://auth","JSON_API":{"API_URL":"https://l","GRANT_TYPE":"password"}}]`,
		"duplicate names":  `[{"PROVIDER_NAME":"p","AUTH_URL":"https://a"},{"PROVIDER_NAME":"p","AUTH_URL":"https://b"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(LoadOptions{Getenv: envFrom(map[string]string{EnvProviders: raw})})
			require.Error(t, err)
		})
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	content := `providers:
  - PROVIDER_NAME: Local
    AUTH_URL: http://localhost:8081/token
    JSON_API:
      API_URL: http://localhost:7575/v2
      CLIENT_ID: local
      CLIENT_SECRET: local-secret
      PARTY_ID: local::1220
      USER_ID: participant_admin
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	providers, err := Load(LoadOptions{ConfigFile: path, Getenv: envFrom(nil)})
	require.NoError(t, err)
	assert.Equal(t, SourceFile, providers.Source())

	provider, err := providers.Select("Local")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7575/v2", provider.JSONAPI.APIURL)
	assert.Equal(t, "local-secret", provider.JSONAPI.ClientSecret)
	assert.Equal(t, "participant_admin", provider.JSONAPI.UserID)
}

func TestLoadEnvTakesPrecedenceOverConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"providers":[{"PROVIDER_NAME":"File","AUTH_URL":"https://f"}]}`), 0o600))

	providers, err := Load(LoadOptions{
		ConfigFile: path,
		Getenv:     envFrom(map[string]string{EnvProviders: providersJSON}),
	})
	require.NoError(t, err)
	assert.Equal(t, SourceEnv, providers.Source())
}

func TestLoadLegacyEnvironment(t *testing.T) {
	providers, err := Load(LoadOptions{Getenv: envFrom(map[string]string{
		EnvAuthURL:      "https://auth.example.com/token",
		EnvLedgerAPIURL: "https://ledger.example.com/v2",
		EnvClientID:     "client",
		EnvClientSecret: "secret",
		EnvAudience:     "aud",
		EnvScope:        "daml_ledger_api",
		EnvPartyID:      "FM::1220",
		EnvUserID:       "user",
	})})
	require.NoError(t, err)
	assert.Equal(t, SourceLegacy, providers.Source())

	provider, err := providers.Select("")
	require.NoError(t, err)
	assert.Equal(t, "default", provider.Name)
	assert.Equal(t, "aud", provider.JSONAPI.Audience)
	assert.Equal(t, "FM::1220", provider.JSONAPI.PartyID)
	assert.False(t, provider.ValidatorAPI.Configured())

	api, err := provider.API(JSONAPI)
	require.NoError(t, err)
	assert.Equal(t, "client", api.ClientID)

	_, err = provider.API(ValidatorAPI)
	require.Error(t, err)
}

func TestLoadWithoutAnySource(t *testing.T) {
	_, err := Load(LoadOptions{Getenv: envFrom(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no providers configured")
}

func TestSelectUnknownProviderListsAvailable(t *testing.T) {
	providers, err := New(
		Provider{Name: "a", AuthURL: "https://a"},
		Provider{Name: "b", AuthURL: "https://b"},
	)
	require.NoError(t, err)

	_, err = providers.Select("c")
	require.EqualError(t, err, `provider "c" not found; available providers: a, b`)

	provider, err := providers.Select("")
	require.NoError(t, err)
	assert.Equal(t, "a", provider.Name)
}

func TestAllReturnsCopy(t *testing.T) {
	providers, err := New(Provider{Name: "a", AuthURL: "https://a"})
	require.NoError(t, err)

	all := providers.All()
	all[0].Name = "mutated"

	provider, _ := providers.ByIndex(0)
	assert.Equal(t, "a", provider.Name)
}

func TestProviderAPIRequiresClientID(t *testing.T) {
	provider := Provider{Name: "p", JSONAPI: API{APIURL: "https://l"}}
	_, err := provider.API(JSONAPI)
	require.EqualError(t, err, `provider "p" has no JSON_API.CLIENT_ID`)

	_, err = provider.API(APIKind("OTHER"))
	require.Error(t, err)
}
