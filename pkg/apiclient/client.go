package apiclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/auditlog"
	"github.com/Fairmint/canton/pkg/config"
	"github.com/Fairmint/canton/pkg/shared"
)

const (
	DefaultUserAgent   = "fairmint-canton-go"
	DefaultHTTPTimeout = 60 * time.Second

	ContentTypeJSON        = "application/json"
	ContentTypeOctetStream = "application/octet-stream"

	acceptEncoding = "br, gzip"
)

// Config configures a Client.
type Config struct {
	Provider   config.Provider
	API        config.APIKind
	HTTPClient *http.Client
	AuditLog   *auditlog.Writer
	Logger     *zap.Logger
	Metrics    *Metrics
	UserAgent  string
}

// RequestOptions controls a single request.
type RequestOptions struct {
	ContentType  string
	RequiresAuth bool
	// LogPayload replaces the request body in the audit log.
	LogPayload any
}

// Client executes authenticated requests against one provider API.
type Client struct {
	provider   config.Provider
	kind       config.APIKind
	api        config.API
	baseURL    *url.URL
	httpClient *http.Client
	audit      *auditlog.Writer
	logger     *zap.Logger
	metrics    *Metrics
	userAgent  string

	authMu sync.Mutex
	mu     sync.RWMutex
	token  string
}

// New validates cfg and creates a Client.
func New(cfg Config) (*Client, error) {
	kind := cfg.API
	if kind == "" {
		kind = config.JSONAPI
	}
	api, err := cfg.Provider.API(kind)
	if err != nil {
		return nil, err
	}

	baseURL, err := parseHTTPURL(api.APIURL)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid %s.API_URL", kind)
	}
	if _, err := parseHTTPURL(cfg.Provider.AuthURL); err != nil {
		return nil, errors.WithMessage(err, "invalid AUTH_URL")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		provider:   cfg.Provider,
		kind:       kind,
		api:        api,
		baseURL:    baseURL,
		httpClient: httpClient,
		audit:      cfg.AuditLog,
		logger: shared.LoggerOrNop(cfg.Logger).With(
			zap.String("provider", cfg.Provider.Name),
			zap.String("api", string(kind)),
		),
		metrics:   cfg.Metrics,
		userAgent: userAgent,
	}, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %q", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Errorf("%q must use http or https", raw)
	}
	if parsed.Host == "" {
		return nil, errors.Errorf("%q has no host", raw)
	}
	return parsed, nil
}

// Provider returns the provider the client was built for.
func (c *Client) Provider() config.Provider {
	return c.provider
}

// API returns the settings of the API the client talks to.
func (c *Client) API() config.API {
	return c.api
}

// Kind returns which provider API the client talks to.
func (c *Client) Kind() config.APIKind {
	return c.kind
}

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// AuditLog returns the writer requests are recorded to, which may be nil.
func (c *Client) AuditLog() *auditlog.Writer {
	return c.audit
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL resolves path against the API base URL. Absolute URLs are returned
// unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL() + path
}

// Do performs one request and returns the decoded response body. When
// RequiresAuth is set and the server answers with the security-sensitive
// cause, the token is refreshed and the request retried once; if the retry
// also fails, the first error is returned.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body []byte,
	options RequestOptions,
) ([]byte, error) {
	target := c.URL(path)
	started := time.Now()

	payload, err := c.attempt(ctx, method, target, body, options)
	if err == nil {
		c.metrics.observeRequest(string(c.kind), method, "success", time.Since(started).Seconds())
		return payload, nil
	}

	var apiErr *APIError
	if !options.RequiresAuth || !errors.As(err, &apiErr) || apiErr.Cause() != SecuritySensitiveCause {
		c.metrics.observeRequest(string(c.kind), method, outcomeOf(err), time.Since(started).Seconds())
		return nil, err
	}

	c.logger.Info("token rejected; re-authenticating and retrying once",
		zap.String("method", method),
		zap.String("url", target),
	)
	c.metrics.observeRetry(string(c.kind))
	c.InvalidateToken()
	if _, authErr := c.BearerToken(ctx); authErr != nil {
		c.metrics.observeRequest(string(c.kind), method, "auth_error", time.Since(started).Seconds())
		return nil, authErr
	}

	payload, retryErr := c.attempt(ctx, method, target, body, options)
	if retryErr != nil {
		c.logger.Warn("retry failed; returning original error",
			zap.String("url", target),
			zap.NamedError("retry_error", retryErr),
		)
		c.metrics.observeRequest(string(c.kind), method, outcomeOf(err), time.Since(started).Seconds())
		return nil, err
	}
	c.metrics.observeRequest(string(c.kind), method, "success", time.Since(started).Seconds())
	return payload, nil
}

func outcomeOf(err error) string {
	var apiErr *APIError
	var authErr *AuthenticationError
	switch {
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "transport_error"
	}
}

func (c *Client) attempt(
	ctx context.Context,
	method string,
	target string,
	body []byte,
	options RequestOptions,
) ([]byte, error) {
	var token string
	if options.RequiresAuth {
		var err error
		token, err = c.BearerToken(ctx)
		if err != nil {
			return nil, err
		}
	}

	var requestBody io.Reader
	if body != nil {
		requestBody = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, target, requestBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s %s", method, target)
	}

	request.Header.Set("Accept", ContentTypeJSON)
	request.Header.Set("Accept-Encoding", acceptEncoding)
	request.Header.Set("User-Agent", c.userAgent)
	request.Header.Set("X-Request-Id", uuid.NewString())
	if options.ContentType != "" && body != nil {
		request.Header.Set("Content-Type", options.ContentType)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	logRequest := options.LogPayload
	if logRequest == nil {
		logRequest = describeRequestBody(body, options.ContentType)
	}

	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("url", target),
		zap.String("request_id", request.Header.Get("X-Request-Id")),
	)

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.audit.Record(auditlog.Entry{
			URL:      target,
			Request:  logRequest,
			Response: map[string]any{"error": err.Error()},
		})
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	defer response.Body.Close()

	responseBody, err := readBody(response)
	if err != nil {
		c.audit.Record(auditlog.Entry{
			URL:      target,
			Request:  logRequest,
			Response: map[string]any{"error": err.Error()},
		})
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		parsed := parseErrorBody(responseBody)
		errorValue := parsed
		if errorValue == "" {
			errorValue = response.Status
		}
		c.audit.Record(auditlog.Entry{
			URL:      target,
			Request:  logRequest,
			Response: map[string]any{"error": errorValue},
		})
		return nil, &APIError{
			Method:     method,
			URL:        target,
			Status:     response.StatusCode,
			StatusText: response.Status,
			Body:       parsed,
		}
	}

	c.audit.Record(auditlog.Entry{
		URL:      target,
		Request:  logRequest,
		Response: describeResponseBody(responseBody),
	})
	return responseBody, nil
}

func readBody(response *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if len(raw) == 0 {
		return raw, nil
	}

	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(response.Header.Get("Content-Encoding"))) {
	case "br":
		reader = brotli.NewReader(bytes.NewReader(raw))
	case "gzip":
		gzipReader, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.Wrap(err, "failed to open gzip response")
		}
		defer gzipReader.Close()
		reader = gzipReader
	default:
		return raw, nil
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode response body")
	}
	return body, nil
}

func describeRequestBody(body []byte, contentType string) any {
	if body == nil {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	if strings.HasPrefix(contentType, "text/") || strings.Contains(contentType, "x-www-form-urlencoded") {
		return string(body)
	}
	return fmt.Sprintf("[%d bytes]", len(body))
}

func describeResponseBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(trimmed)
}

// GetJSON performs an authenticated GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	payload, err := c.Do(ctx, http.MethodGet, path, nil, RequestOptions{
		ContentType:  ContentTypeJSON,
		RequiresAuth: true,
	})
	if err != nil {
		return err
	}
	return decodeInto(payload, out)
}

// PostJSON encodes in, performs an authenticated POST and decodes the
// response into out. A nil out discards the response.
func (c *Client) PostJSON(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "failed to encode request body")
	}
	payload, err := c.Do(ctx, http.MethodPost, path, body, RequestOptions{
		ContentType:  ContentTypeJSON,
		RequiresAuth: true,
	})
	if err != nil {
		return err
	}
	return decodeInto(payload, out)
}

// PostBytes performs an authenticated POST of raw bytes and decodes the
// response into out.
func (c *Client) PostBytes(ctx context.Context, path string, body []byte, contentType string, out any) error {
	payload, err := c.Do(ctx, http.MethodPost, path, body, RequestOptions{
		ContentType:  contentType,
		RequiresAuth: true,
		LogPayload:   fmt.Sprintf("[%s, %d bytes]", contentType, len(body)),
	})
	if err != nil {
		return err
	}
	return decodeInto(payload, out)
}

func decodeInto(payload []byte, out any) error {
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], payload...)
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.Wrap(err, "failed to decode response body")
	}
	return nil
}
