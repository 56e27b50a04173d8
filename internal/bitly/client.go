// Package bitly exchanges bit.ly OAuth authorization codes for access tokens
// (step 3 of the bit.ly OAuth web flow).
package bitly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
)

// Default bit.ly OAuth endpoints.
const (
	DefaultAuthURL  = "https://bitly.com/oauth/authorize"
	DefaultTokenURL = "https://api-ssl.bitly.com/oauth/access_token"
)

// Config holds the bit.ly application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	// RedirectURI is registered with bit.ly for the production site.
	RedirectURI string
	// IntegrationRedirectURI replaces RedirectURI for integration deployments.
	IntegrationRedirectURI string
	AuthURL                string
	TokenURL               string
}

// Token is the result of a successful code exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	Login       string `json:"login,omitempty"`
	APIKey      string `json:"apiKey,omitempty"`
}

// StatusError is returned when bit.ly answers the exchange with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bitly returned error code %d", e.StatusCode)
}

// Exchanger turns authorization codes into tokens.
type Exchanger interface {
	Exchange(ctx context.Context, code string, integration bool) (*Token, error)
}

// Client performs the code exchange against bit.ly.
type Client struct {
	prod        *oauth2.Config
	integration *oauth2.Config
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint := oauth2.Endpoint{
		AuthURL:   cfg.AuthURL,
		TokenURL:  cfg.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	prod := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  cfg.RedirectURI,
	}
	integration := *prod
	if cfg.IntegrationRedirectURI != "" {
		integration.RedirectURL = cfg.IntegrationRedirectURI
	}

	// bit.ly answers form-encoded unless JSON is asked for
	client := *httpClient
	client.Transport = acceptJSON{base: httpClient.Transport}

	return &Client{
		prod:        prod,
		integration: &integration,
		httpClient:  &client,
		logger:      logger.With(slog.String("component", "bitly_client")),
	}
}

// AuthCodeURL returns the bit.ly authorization page URL for state.
func (c *Client) AuthCodeURL(state string) string {
	return c.prod.AuthCodeURL(state)
}

// Exchange trades code for an access token. A non-2xx answer from bit.ly is
// returned as *StatusError; anything else that fails is a transport error.
func (c *Client) Exchange(ctx context.Context, code string, integration bool) (*Token, error) {
	conf := c.prod
	if integration {
		conf = c.integration
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			c.logger.WarnContext(ctx, "bit.ly rejected authorization code",
				slog.Int("status", retrieveErr.Response.StatusCode),
				slog.String("error_code", retrieveErr.ErrorCode),
			)
			return nil, &StatusError{StatusCode: retrieveErr.Response.StatusCode, Body: retrieveErr.Body}
		}
		c.logger.ErrorContext(ctx, "bit.ly token request failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("requesting bit.ly token: %w", err)
	}

	return &Token{
		AccessToken: tok.AccessToken,
		Login:       extraString(tok, "login"),
		APIKey:      extraString(tok, "apiKey"),
	}, nil
}

func extraString(tok *oauth2.Token, key string) string {
	switch v := tok.Extra(key).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

type acceptJSON struct {
	base http.RoundTripper
}

func (t acceptJSON) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("Accept", "application/json")
	return base.RoundTrip(req)
}
