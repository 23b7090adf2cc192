package apiclient

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Fairmint/canton/pkg/auditlog"
	"github.com/Fairmint/canton/pkg/config"
)

const redacted = "[redacted]"

// Authenticate requests a new access token with the grant configured for
// the client's API and stores it for subsequent requests.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.authenticateLocked(ctx)
}

// BearerToken returns the stored token, authenticating first when there is
// none.
func (c *Client) BearerToken(ctx context.Context) (string, error) {
	if token := c.currentToken(); token != "" {
		return token, nil
	}

	c.authMu.Lock()
	defer c.authMu.Unlock()
	if token := c.currentToken(); token != "" {
		return token, nil
	}
	return c.authenticateLocked(ctx)
}

// InvalidateToken drops the stored token so the next authenticated request
// fetches a new one.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) tokenConfig() *clientcredentials.Config {
	params := url.Values{}
	if c.api.GrantType == config.GrantPassword {
		params.Set("grant_type", config.GrantPassword)
		params.Set("username", c.api.Username)
		params.Set("password", c.api.Password)
	}
	if c.api.Audience != "" {
		params.Set("audience", c.api.Audience)
	}

	var scopes []string
	if scope := strings.TrimSpace(c.api.Scope); scope != "" {
		scopes = strings.Fields(scope)
	}

	return &clientcredentials.Config{
		ClientID:       c.api.ClientID,
		ClientSecret:   c.api.ClientSecret,
		TokenURL:       c.provider.AuthURL,
		Scopes:         scopes,
		EndpointParams: params,
		AuthStyle:      oauth2.AuthStyleInParams,
	}
}

// authLogRequest mirrors the submitted form with secrets redacted.
func (c *Client) authLogRequest() map[string]any {
	form := map[string]any{
		"grant_type": c.api.GrantType,
		"client_id":  c.api.ClientID,
	}
	if c.api.ClientSecret != "" {
		form["client_secret"] = redacted
	}
	if c.api.Audience != "" {
		form["audience"] = c.api.Audience
	}
	if c.api.Scope != "" {
		form["scope"] = c.api.Scope
	}
	if c.api.GrantType == config.GrantPassword {
		form["username"] = c.api.Username
		form["password"] = redacted
	}
	return form
}

func (c *Client) authenticateLocked(ctx context.Context) (string, error) {
	tokenURL := c.provider.AuthURL
	requestLog := c.authLogRequest()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.tokenConfig().Token(ctx)
	if err != nil {
		authErr := &AuthenticationError{URL: tokenURL, Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			authErr.Body = parseErrorBody(retrieveErr.Body)
			if retrieveErr.Response != nil {
				authErr.Status = retrieveErr.Response.StatusCode
			}
		}
		errorValue := authErr.Body
		if errorValue == nil || errorValue == "" {
			errorValue = err.Error()
		}
		c.audit.Record(auditlog.Entry{
			URL:      tokenURL,
			Request:  requestLog,
			Response: map[string]any{"error": errorValue},
		})
		c.metrics.observeAuth(string(c.kind), "failure")
		c.logger.Warn("authentication failed", zap.String("auth_url", tokenURL), zap.Error(authErr))
		return "", authErr
	}

	response := map[string]any{
		"access_token": redacted,
		"token_type":   token.TokenType,
	}
	if !token.Expiry.IsZero() {
		response["expiry"] = token.Expiry.UTC().Format(time.RFC3339)
	}
	c.audit.Record(auditlog.Entry{URL: tokenURL, Request: requestLog, Response: response})
	c.metrics.observeAuth(string(c.kind), "success")
	c.logTokenClaims(token.AccessToken)

	c.mu.Lock()
	c.token = token.AccessToken
	c.mu.Unlock()
	return token.AccessToken, nil
}

func (c *Client) logTokenClaims(accessToken string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		c.logger.Debug("authenticated with opaque token")
		return
	}
	fields := []zap.Field{}
	if subject, err := claims.GetSubject(); err == nil && subject != "" {
		fields = append(fields, zap.String("subject", subject))
	}
	if expiry, err := claims.GetExpirationTime(); err == nil && expiry != nil {
		fields = append(fields, zap.Time("expires_at", expiry.Time))
	}
	c.logger.Debug("authenticated", fields...)
}
