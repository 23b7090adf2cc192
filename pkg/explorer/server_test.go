package explorer

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fairmint/canton/pkg/config"
)

type upstream struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	tokens   int
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.requests = append(u.requests, r)
	u.bodies = append(u.bodies, string(body))
	if r.URL.Path == "/token" {
		u.tokens++
	}
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/token":
		_, _ = io.WriteString(w, `{"access_token":"token","token_type":"Bearer"}`)
	case r.URL.Path == "/v2/events/events-by-contract-id":
		_, _ = io.WriteString(w, `{"created":{"createdEvent":{"contractId":"00abc","templateId":"pkg:Issuer:Issuer","nodeId":0},"synchronizerId":"sync"}}`)
	case strings.HasPrefix(r.URL.Path, "/v2/updates/transaction-tree-by-offset/"):
		offset := strings.TrimPrefix(r.URL.Path, "/v2/updates/transaction-tree-by-offset/")
		if offset == "404" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"code":"NOT_FOUND","cause":"offset not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"transaction":{"updateId":"1220ab","offset":`+offset+`,"eventsById":{}}}`)
	case strings.HasPrefix(r.URL.Path, "/v2/updates/transaction-tree-by-id/"):
		_, _ = io.WriteString(w, `{"transaction":{"updateId":"`+strings.TrimPrefix(r.URL.Path, "/v2/updates/transaction-tree-by-id/")+`","offset":7,"eventsById":{}}}`)
	case r.URL.Path == "/v2/updates/update-by-id":
		_, _ = io.WriteString(w, `{"update":{"Transaction":{"value":{"updateId":"1220ab"}}}}`)
	case r.URL.Path == "/api/validator/v0/wallet/balance":
		_, _ = io.WriteString(w, `{"round":12,"effective_unlocked_qty":"100.5","effective_locked_qty":"0","total_holding_fees":"0.25"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"cause":"no route"}`)
	}
}

func (u *upstream) lastRequest(t *testing.T) *http.Request {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.NotEmpty(t, u.requests)
	return u.requests[len(u.requests)-1]
}

func (u *upstream) lastBody(t *testing.T) string {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.NotEmpty(t, u.bodies)
	return u.bodies[len(u.bodies)-1]
}

func testProvider(name string, baseURL string) config.Provider {
	return config.Provider{
		Name:    name,
		AuthURL: baseURL + "/token",
		JSONAPI: config.API{
			APIURL:   baseURL + "/v2",
			ClientID: "ledger-client",
			PartyID:  "FM:" + name + "::1220",
			UserID:   name + "-user",
		},
		ValidatorAPI: config.API{
			APIURL:   baseURL,
			ClientID: "validator-client",
		},
	}
}

func newTestServer(t *testing.T) (*Server, *upstream) {
	t.Helper()
	u := newUpstream(t)
	providers, err := config.New(testProvider("Primary", u.server.URL), testProvider("Secondary", u.server.URL))
	require.NoError(t, err)
	server, err := New(Config{Providers: providers, Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	return server, u
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestProviders(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/providers")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `[
		{"name":"Primary","displayName":"Primary"},
		{"name":"Secondary","displayName":"Secondary"}
	]`, recorder.Body.String())
	assert.NotContains(t, recorder.Body.String(), "::1220")
	assert.NotContains(t, recorder.Body.String(), "-user")
	assert.NotEmpty(t, recorder.Header().Get(RequestIDHeader))
}

func TestEvents(t *testing.T) {
	server, u := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/events?contractId=00abc&provider=Secondary")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "00abc", decodeBody(t, recorder)["created"].(map[string]any)["createdEvent"].(map[string]any)["contractId"])

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(u.lastBody(t)), &sent))
	assert.Equal(t, []any{"FM:Secondary::1220"}, sent["requestingParties"])
}

func TestEventsRequiresContractID(t *testing.T) {
	server, u := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/events")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "Contract ID is required", body["error"])
	assert.Equal(t, recorder.Header().Get(RequestIDHeader), body["requestId"])
	assert.Empty(t, u.requests)
}

func TestTransactionTreeByOffset(t *testing.T) {
	server, u := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/transaction-tree/42")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.JSONEq(t, `{"transaction":{"updateId":"1220ab","offset":42,"eventsById":{}}}`, recorder.Body.String())
	assert.Equal(t, "FM:Primary::1220", u.lastRequest(t).URL.Query().Get("parties"))
}

func TestUpstreamErrorIsInternal(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/transaction-tree/404")
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, decodeBody(t, recorder)["error"], "offset not found")
}

func TestTransactionTreeByID(t *testing.T) {
	server, u := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/transaction-tree-by-id/1220ff?eventFormat=verbose&includeCreatedEventBlob=false")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "1220ff", decodeBody(t, recorder)["transaction"].(map[string]any)["updateId"])

	query := u.lastRequest(t).URL.Query()
	assert.Equal(t, "verbose", query.Get("eventFormat"))
	assert.Equal(t, "false", query.Get("includeCreatedEventBlob"))
}

func TestUpdateByID(t *testing.T) {
	server, u := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/updates/1220ab")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Contains(t, recorder.Body.String(), `"Transaction"`)
	assert.Contains(t, u.lastBody(t), `"updateId":"1220ab"`)
}

func TestWalletBalance(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/wallet-balance")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "Provider parameter is required", decodeBody(t, recorder)["error"])

	recorder = get(t, server.Handler(), "/api/wallet-balance?provider=Primary")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.JSONEq(t, `{"round":12,"effective_unlocked_qty":"100.5","effective_locked_qty":"0","total_holding_fees":"0.25"}`,
		recorder.Body.String())
}

func TestUnknownProvider(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := get(t, server.Handler(), "/api/wallet-balance?provider=Nope")
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, `provider "Nope" not found; available providers: Primary, Secondary`, decodeBody(t, recorder)["error"])
}

func TestSearch(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		query string
		kind  string
	}{
		{"42", "offset"},
		{"1220" + strings.Repeat("ab", 30), "update_id"},
		{"00" + strings.Repeat("cd", 35), "contract_id"},
	}
	for _, tt := range tests {
		recorder := get(t, server.Handler(), "/api/search?q="+tt.query)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		body := decodeBody(t, recorder)
		assert.Equal(t, tt.kind, body["kind"], tt.query)
		assert.Equal(t, tt.query, body["query"])
		assert.NotNil(t, body["result"])
	}

	recorder := get(t, server.Handler(), "/api/search?q=FM:Alice")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestClientsAreCachedPerProvider(t *testing.T) {
	server, u := newTestServer(t)

	for i := 0; i < 3; i++ {
		recorder := get(t, server.Handler(), "/api/transaction-tree/1")
		require.Equal(t, http.StatusOK, recorder.Code)
	}
	get(t, server.Handler(), "/api/transaction-tree/1?provider=Secondary")

	u.mu.Lock()
	defer u.mu.Unlock()
	assert.Equal(t, 2, u.tokens)
}

func TestHealthAndMetrics(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := get(t, server.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())

	get(t, server.Handler(), "/api/transaction-tree/3")
	recorder = get(t, server.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `canton_client_requests_total{api="JSON_API",method="GET",outcome="success"} 1`)
}

func TestAccessLogAndCORS(t *testing.T) {
	u := newUpstream(t)
	providers, err := config.New(testProvider("Primary", u.server.URL))
	require.NoError(t, err)

	var accessLog strings.Builder
	server, err := New(Config{Providers: providers, AccessLog: &accessLog, AllowedOrigins: []string{"http://localhost:3000"}})
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set("Origin", "http://localhost:3000")
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, request)

	assert.Equal(t, "http://localhost:3000", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, accessLog.String(), `"GET /healthz HTTP/1.1" 200`)
}

func TestNewRequiresProviders(t *testing.T) {
	_, err := New(Config{})
	require.EqualError(t, err, "providers are required")
}
