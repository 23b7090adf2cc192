// Package explorer serves a read-only HTTP API over the ledgers of the
// configured providers.
package explorer

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/apiclient"
	"github.com/Fairmint/canton/pkg/auditlog"
	"github.com/Fairmint/canton/pkg/config"
	"github.com/Fairmint/canton/pkg/jsonapi"
	"github.com/Fairmint/canton/pkg/validator"
)

const RequestIDHeader = "X-Request-Id"

var schemaDecoder = newSchemaDecoder()

func newSchemaDecoder() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return decoder
}

// Config configures a Server.
type Config struct {
	Providers *config.Providers
	Logger    *zap.Logger
	// Registry receives the client metrics and backs /metrics. Nil uses a
	// fresh registry.
	Registry   *prometheus.Registry
	AuditLog   *auditlog.Writer
	HTTPClient *http.Client
	// AccessLog receives combined-format access logs when set.
	AccessLog io.Writer
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string
}

// Server answers explorer requests. Ledger clients are created on first
// use and shared between requests for the same provider.
type Server struct {
	providers  *config.Providers
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *apiclient.Metrics
	audit      *auditlog.Writer
	httpClient *http.Client
	accessLog  io.Writer
	origins    []string
	router     *mux.Router

	mu         sync.Mutex
	ledgers    map[string]*jsonapi.Client
	validators map[string]*validator.Client
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Providers == nil {
		return nil, errors.New("providers are required")
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics, err := apiclient.NewMetrics(registry)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		providers:  cfg.Providers,
		logger:     logger.Named("explorer"),
		registry:   registry,
		metrics:    metrics,
		audit:      cfg.AuditLog,
		httpClient: cfg.HTTPClient,
		accessLog:  cfg.AccessLog,
		origins:    cfg.AllowedOrigins,
		ledgers:    map[string]*jsonapi.Client{},
		validators: map[string]*validator.Client{},
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Methods(http.MethodGet).Subrouter()
	api.Path("/providers").Handler(s.handler(s.providersHandler))
	api.Path("/events").Handler(s.handler(s.eventsHandler))
	api.Path("/transaction-tree/{offset}").Handler(s.handler(s.treeByOffsetHandler))
	api.Path("/transaction-tree-by-id/{updateId}").Handler(s.handler(s.treeByIDHandler))
	api.Path("/updates/{updateId}").Handler(s.handler(s.updateHandler))
	api.Path("/wallet-balance").Handler(s.handler(s.walletBalanceHandler))
	api.Path("/search").Handler(s.handler(s.searchHandler))
	r.Methods(http.MethodGet).Path("/healthz").Handler(s.handler(s.healthHandler))
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.router = r
	return s, nil
}

// Router returns the bare route table.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped with panic recovery and, when
// configured, CORS and access logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.origins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		)(h)
	}
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
	if s.accessLog != nil {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	return h
}

type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(values ...interface{}) {
	l.logger.Error("recovered from panic", zap.Any("panic", values))
}

type handleError struct {
	status  int
	message string
	err     error
}

func (e *handleError) Error() string {
	if e.err == nil {
		return e.message
	}
	if e.message == "" {
		return e.err.Error()
	}
	return e.message + ": " + e.err.Error()
}

func badRequest(message string) error {
	return &handleError{status: http.StatusBadRequest, message: message}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

// handler assigns a request id and renders returned errors as JSON.
func (s *Server) handler(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set(RequestIDHeader, requestID)
		w.Header().Set("Content-Type", "application/json")
		logger := s.logger.With(zap.String("request_id", requestID), zap.String("path", r.URL.Path))
		logger.Debug("handling request")

		err := fn(w, r)
		if err == nil {
			return
		}
		var herr *handleError
		if !errors.As(err, &herr) {
			herr = &handleError{status: http.StatusInternalServerError, err: err}
		}
		if herr.status >= http.StatusInternalServerError {
			logger.Error("request failed", zap.Int("status", herr.status), zap.Error(err))
		} else {
			logger.Info("bad request", zap.Int("status", herr.status), zap.String("error", herr.Error()))
		}
		w.WriteHeader(herr.status)
		if err := json.NewEncoder(w).Encode(errorBody{Error: herr.Error(), RequestID: requestID}); err != nil {
			logger.Warn("failed to encode error response", zap.Error(err))
		}
	}
}

func writeJSON(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

func writeRaw(w http.ResponseWriter, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	_, err := w.Write(raw)
	return err
}

func decodeQuery(r *http.Request, dst any) error {
	if err := schemaDecoder.Decode(dst, r.URL.Query()); err != nil {
		return &handleError{status: http.StatusBadRequest, message: "invalid query parameters", err: err}
	}
	return nil
}

func (s *Server) clientConfig(provider config.Provider) apiclient.Config {
	return apiclient.Config{
		Provider:   provider,
		HTTPClient: s.httpClient,
		AuditLog:   s.audit,
		Logger:     s.logger,
		Metrics:    s.metrics,
	}
}

// ledger returns the cached JSON API client of the named provider, the
// first provider when name is empty.
func (s *Server) ledger(name string) (*jsonapi.Client, error) {
	provider, err := s.providers.Select(strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.ledgers[provider.Name]; ok {
		return client, nil
	}
	client, err := jsonapi.New(s.clientConfig(provider))
	if err != nil {
		return nil, errors.WithMessagef(err, "provider %q", provider.Name)
	}
	s.ledgers[provider.Name] = client
	return client, nil
}

func (s *Server) validator(name string) (*validator.Client, error) {
	provider, err := s.providers.Select(strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.validators[provider.Name]; ok {
		return client, nil
	}
	client, err := validator.New(s.clientConfig(provider))
	if err != nil {
		return nil, errors.WithMessagef(err, "provider %q", provider.Name)
	}
	s.validators[provider.Name] = client
	return client, nil
}
