package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Legacy single-provider environment variables.
const (
	EnvAuthURL         = "AUTH_URL"
	EnvLedgerAPIURL    = "LEDGER_API_URL"
	EnvValidatorAPIURL = "VALIDATOR_API_URL"
	EnvClientID        = "CLIENT_ID"
	EnvClientSecret    = "CLIENT_SECRET"
	EnvAudience        = "AUDIENCE"
	EnvScope           = "SCOPE"
	EnvPartyID         = "FAIRMINT_PARTY_ID"
	EnvUserID          = "FAIRMINT_USER_ID"
	EnvProviderName    = "PROVIDER_NAME"

	legacyProviderName = "default"
)

// Sources a provider list can be loaded from.
const (
	SourceEnv    = "env"
	SourceFile   = "file"
	SourceLegacy = "legacy-env"
)

// LoadOptions controls where Load looks for providers.
type LoadOptions struct {
	// ConfigFile is an optional YAML or JSON file with a "providers" list.
	ConfigFile string
	// Getenv overrides os.Getenv.
	Getenv func(string) string
}

// Providers is an immutable, ordered list of providers.
type Providers struct {
	providers []Provider
	source    string
}

// Load reads providers from the first source that defines any.
func Load(options LoadOptions) (*Providers, error) {
	getenv := options.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if raw := strings.TrimSpace(getenv(EnvProviders)); raw != "" {
		var entries []map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", EnvProviders)
		}
		providers, err := decodeProviders(entries)
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid %s", EnvProviders)
		}
		if len(providers) > 0 {
			return newProviders(SourceEnv, providers)
		}
	}

	if options.ConfigFile != "" {
		providers, err := readConfigFile(options.ConfigFile)
		if err != nil {
			return nil, err
		}
		if len(providers) > 0 {
			return newProviders(SourceFile, providers)
		}
	}

	if legacy, ok := legacyProvider(getenv); ok {
		return newProviders(SourceLegacy, []Provider{legacy})
	}

	return nil, errors.Errorf(
		"no providers configured: set %s, pass a config file, or set %s and %s",
		EnvProviders, EnvAuthURL, EnvLedgerAPIURL,
	)
}

// New builds a provider list from explicit values.
func New(providers ...Provider) (*Providers, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	return newProviders("", providers)
}

func newProviders(source string, providers []Provider) (*Providers, error) {
	seen := map[string]struct{}{}
	normalized := make([]Provider, 0, len(providers))
	for index, provider := range providers {
		provider = provider.normalized()
		if err := provider.validate(); err != nil {
			return nil, errors.WithMessagef(err, "provider %d", index)
		}
		if _, duplicate := seen[provider.Name]; duplicate {
			return nil, errors.Errorf("duplicate provider name %q", provider.Name)
		}
		seen[provider.Name] = struct{}{}
		normalized = append(normalized, provider)
	}
	return &Providers{providers: normalized, source: source}, nil
}

func readConfigFile(path string) ([]Provider, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	raw := v.Get("providers")
	if raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil, errors.Errorf("config file %s: providers must be a list", path)
	}
	providers, err := decodeProviders(entries)
	if err != nil {
		return nil, errors.WithMessagef(err, "config file %s", path)
	}
	return providers, nil
}

func decodeProviders[T any](entries []T) ([]Provider, error) {
	providers := make([]Provider, 0, len(entries))
	for index, entry := range entries {
		var provider Provider
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "mapstructure",
			WeaklyTypedInput: true,
			Result:           &provider,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to build decoder")
		}
		if err := decoder.Decode(entry); err != nil {
			return nil, errors.Wrapf(err, "failed to decode provider %d", index)
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

func legacyProvider(getenv func(string) string) (Provider, bool) {
	authURL := strings.TrimSpace(getenv(EnvAuthURL))
	ledgerURL := strings.TrimSpace(getenv(EnvLedgerAPIURL))
	if authURL == "" || ledgerURL == "" {
		return Provider{}, false
	}

	name := strings.TrimSpace(getenv(EnvProviderName))
	if name == "" {
		name = legacyProviderName
	}
	api := API{
		APIURL:       ledgerURL,
		GrantType:    GrantClientCredentials,
		ClientID:     getenv(EnvClientID),
		ClientSecret: getenv(EnvClientSecret),
		Audience:     getenv(EnvAudience),
		Scope:        getenv(EnvScope),
		PartyID:      getenv(EnvPartyID),
		UserID:       getenv(EnvUserID),
	}
	validator := api
	validator.APIURL = getenv(EnvValidatorAPIURL)

	return Provider{
		Name:         name,
		AuthURL:      authURL,
		JSONAPI:      api,
		ValidatorAPI: validator,
	}, true
}

// Source reports which source the providers were loaded from.
func (p *Providers) Source() string {
	return p.source
}

// All returns a copy of every provider in configured order.
func (p *Providers) All() []Provider {
	return append([]Provider(nil), p.providers...)
}

// Names returns the provider names in configured order.
func (p *Providers) Names() []string {
	names := make([]string, 0, len(p.providers))
	for _, provider := range p.providers {
		names = append(names, provider.Name)
	}
	return names
}

// ByName returns the provider with the given name.
func (p *Providers) ByName(name string) (Provider, bool) {
	for _, provider := range p.providers {
		if provider.Name == name {
			return provider, true
		}
	}
	return Provider{}, false
}

// ByIndex returns the provider at index.
func (p *Providers) ByIndex(index int) (Provider, bool) {
	if index < 0 || index >= len(p.providers) {
		return Provider{}, false
	}
	return p.providers[index], true
}

// Select returns the named provider, or the first one when name is empty.
func (p *Providers) Select(name string) (Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		provider, ok := p.ByIndex(0)
		if !ok {
			return Provider{}, errors.New("no providers configured")
		}
		return provider, nil
	}
	provider, ok := p.ByName(name)
	if !ok {
		return Provider{}, errors.Errorf(
			"provider %q not found; available providers: %s",
			name, strings.Join(p.Names(), ", "),
		)
	}
	return provider, nil
}
