package jsonapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fairmint/canton/pkg/apiclient"
	"github.com/Fairmint/canton/pkg/config"
)

type recordedRequest struct {
	Method      string
	Path        string
	Query       map[string][]string
	ContentType string
	Body        []byte
}

func (r recordedRequest) JSON(t *testing.T) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &decoded))
	return decoded
}

type fakeLedger struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newFakeLedger(t *testing.T) *fakeLedger {
	t.Helper()
	ledger := &fakeLedger{t: t, handlers: map[string]http.HandlerFunc{}}
	ledger.server = httptest.NewServer(http.HandlerFunc(ledger.serve))
	t.Cleanup(ledger.server.Close)
	return ledger
}

// handle registers a handler for "METHOD /path" (path without the /v2 base).
func (l *fakeLedger) handle(route string, handler http.HandlerFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[route] = handler
}

func (l *fakeLedger) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/token" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"ledger-token","token_type":"Bearer"}`)
		return
	}

	body, _ := io.ReadAll(r.Body)
	path := strings.TrimPrefix(r.URL.Path, "/v2")
	l.mu.Lock()
	l.requests = append(l.requests, recordedRequest{
		Method:      r.Method,
		Path:        path,
		Query:       r.URL.Query(),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	handler, ok := l.handlers[r.Method+" "+path]
	l.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"NOT_FOUND","cause":"no route"}`)
		return
	}
	handler(w, r)
}

func (l *fakeLedger) recorded() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.requests...)
}

func (l *fakeLedger) provider() config.Provider {
	return config.Provider{
		Name:    "fake",
		AuthURL: l.server.URL + "/token",
		JSONAPI: config.API{
			APIURL:    l.server.URL + "/v2",
			GrantType: config.GrantClientCredentials,
			ClientID:  "client",
			PartyID:   "FM:Fairmint::1220aa",
			UserID:    "fairmint-user",
		},
	}
}

func (l *fakeLedger) client(t *testing.T, options ...Option) *Client {
	t.Helper()
	client, err := New(apiclient.Config{Provider: l.provider()}, options...)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, body)
	}
}
