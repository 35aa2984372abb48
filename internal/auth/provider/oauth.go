// Package provider wraps the OAuth identity exchange: trading a one-time
// authorization code for tokens plus the provider's identity claims.
package provider

import (
	"fmt"

	"github.com/relaylab/mfa-relay/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// Provider names as they appear in query parameters and account rows.
const (
	Google = "google"
	Azure  = "azure"
)

// Endpoint holds everything needed to run one provider's code exchange.
// UserInfoURL is hit with the freshly exchanged token to learn who
// authenticated.
type Endpoint struct {
	Config      *oauth2.Config // RedirectURL left empty, filled per request
	UserInfoURL string
}

// Client performs identity exchanges against its configured providers.
type Client struct {
	endpoints map[string]Endpoint
}

// NewClient builds a Client for the standard Google and Azure endpoints.
func NewClient(cfg config.OAuthConfig) *Client {
	return &Client{endpoints: map[string]Endpoint{
		Google: {
			Config: &oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Scopes: []string{
					"https://www.googleapis.com/auth/userinfo.email",
					"https://www.googleapis.com/auth/gmail.readonly",
				},
				Endpoint: google.Endpoint,
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
		Azure: {
			Config: &oauth2.Config{
				ClientID:     cfg.Azure.ClientID,
				ClientSecret: cfg.Azure.ClientSecret,
				Scopes: []string{
					"openid", "email", "offline_access",
					"https://graph.microsoft.com/Mail.Read",
				},
				Endpoint: microsoft.AzureADEndpoint("common"),
			},
			UserInfoURL: "https://graph.microsoft.com/v1.0/me",
		},
	}}
}

// NewClientWithEndpoints builds a Client over explicit endpoints. Tests use
// this to point the exchange at a local fake provider.
func NewClientWithEndpoints(endpoints map[string]Endpoint) *Client {
	return &Client{endpoints: endpoints}
}

// Known reports whether the provider name is configured.
func (c *Client) Known(providerName string) bool {
	_, ok := c.endpoints[providerName]
	return ok
}

// AuthCodeURL builds the consent-page URL for a provider. redirectURL must
// be the absolute callback URL for this deployment, including any query
// parameters that have to survive the round trip.
func (c *Client) AuthCodeURL(providerName, redirectURL, state string) (string, error) {
	ep, ok := c.endpoints[providerName]
	if !ok {
		return "", fmt.Errorf("unknown oauth provider %q", providerName)
	}
	conf := *ep.Config
	conf.RedirectURL = redirectURL
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}
