package config

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	EnvProviders = "CANTON_PROVIDERS"

	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"

	DefaultPartyHintPrefix = "FM:"
)

// APIKind selects one of the API blocks of a provider.
type APIKind string

const (
	JSONAPI      APIKind = "JSON_API"
	ValidatorAPI APIKind = "VALIDATOR_API"
)

// API holds the endpoint and credentials of one provider API.
type API struct {
	APIURL       string `mapstructure:"API_URL" json:"API_URL" yaml:"API_URL"`
	GrantType    string `mapstructure:"GRANT_TYPE" json:"GRANT_TYPE" yaml:"GRANT_TYPE"`
	ClientID     string `mapstructure:"CLIENT_ID" json:"CLIENT_ID" yaml:"CLIENT_ID"`
	ClientSecret string `mapstructure:"CLIENT_SECRET" json:"CLIENT_SECRET,omitempty" yaml:"CLIENT_SECRET,omitempty"`
	Audience     string `mapstructure:"AUDIENCE" json:"AUDIENCE,omitempty" yaml:"AUDIENCE,omitempty"`
	Username     string `mapstructure:"USERNAME" json:"USERNAME,omitempty" yaml:"USERNAME,omitempty"`
	Password     string `mapstructure:"PASSWORD" json:"PASSWORD,omitempty" yaml:"PASSWORD,omitempty"`
	Scope        string `mapstructure:"SCOPE" json:"SCOPE,omitempty" yaml:"SCOPE,omitempty"`
	PartyID      string `mapstructure:"PARTY_ID" json:"PARTY_ID" yaml:"PARTY_ID"`
	UserID       string `mapstructure:"USER_ID" json:"USER_ID" yaml:"USER_ID"`
}

// Configured reports whether the API has an endpoint.
func (a API) Configured() bool {
	return strings.TrimSpace(a.APIURL) != ""
}

// Provider is one named Canton participant.
type Provider struct {
	Name            string `mapstructure:"PROVIDER_NAME" json:"PROVIDER_NAME" yaml:"PROVIDER_NAME"`
	AuthURL         string `mapstructure:"AUTH_URL" json:"AUTH_URL" yaml:"AUTH_URL"`
	PartyHintPrefix string `mapstructure:"PARTY_HINT_PREFIX" json:"PARTY_HINT_PREFIX,omitempty" yaml:"PARTY_HINT_PREFIX,omitempty"`
	JSONAPI         API    `mapstructure:"JSON_API" json:"JSON_API" yaml:"JSON_API"`
	ValidatorAPI    API    `mapstructure:"VALIDATOR_API" json:"VALIDATOR_API" yaml:"VALIDATOR_API"`
}

// API returns the settings for kind. It fails when the provider has no
// endpoint or client id for that API.
func (p Provider) API(kind APIKind) (API, error) {
	var api API
	switch kind {
	case JSONAPI:
		api = p.JSONAPI
	case ValidatorAPI:
		api = p.ValidatorAPI
	default:
		return API{}, errors.Errorf("unknown API kind %q", kind)
	}
	if !api.Configured() {
		return API{}, errors.Errorf("provider %q has no %s.API_URL", p.Name, kind)
	}
	if strings.TrimSpace(api.ClientID) == "" {
		return API{}, errors.Errorf("provider %q has no %s.CLIENT_ID", p.Name, kind)
	}
	return api, nil
}

// HintPrefix returns the prefix applied to party id hints.
func (p Provider) HintPrefix() string {
	if p.PartyHintPrefix == "" {
		return DefaultPartyHintPrefix
	}
	return p.PartyHintPrefix
}

func (p Provider) normalized() Provider {
	p.Name = strings.TrimSpace(p.Name)
	p.AuthURL = strings.TrimSpace(p.AuthURL)
	p.JSONAPI = p.JSONAPI.normalized()
	p.ValidatorAPI = p.ValidatorAPI.normalized()
	return p
}

func (a API) normalized() API {
	a.APIURL = strings.TrimRight(strings.TrimSpace(a.APIURL), "/")
	a.GrantType = strings.TrimSpace(a.GrantType)
	if a.GrantType == "" {
		a.GrantType = GrantClientCredentials
	}
	return a
}

func (p Provider) validate() error {
	if p.Name == "" {
		return errors.New("PROVIDER_NAME is required")
	}
	if p.AuthURL == "" {
		return errors.Errorf("provider %q: AUTH_URL is required", p.Name)
	}
	for kind, api := range map[APIKind]API{JSONAPI: p.JSONAPI, ValidatorAPI: p.ValidatorAPI} {
		if !api.Configured() {
			continue
		}
		switch api.GrantType {
		case GrantClientCredentials:
		case GrantPassword:
			if api.Username == "" {
				return errors.Errorf("provider %q: %s.USERNAME is required for the password grant", p.Name, kind)
			}
		default:
			return errors.Errorf("provider %q: unsupported %s.GRANT_TYPE %q", p.Name, kind, api.GrantType)
		}
	}
	return nil
}
