package explorer

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Fairmint/canton/pkg/display"
	"github.com/Fairmint/canton/pkg/jsonapi"
)

type providerQuery struct {
	Provider string `schema:"provider"`
}

type eventsQuery struct {
	ContractID string `schema:"contractId"`
	Provider   string `schema:"provider"`
}

type treeQuery struct {
	Provider                string `schema:"provider"`
	EventFormat             string `schema:"eventFormat"`
	IncludeCreatedEventBlob string `schema:"includeCreatedEventBlob"`
}

func (q treeQuery) options() jsonapi.TreeOptions {
	options := jsonapi.TreeOptions{EventFormat: q.EventFormat}
	if q.IncludeCreatedEventBlob != "" {
		include := q.IncludeCreatedEventBlob == "true"
		options.IncludeCreatedEventBlob = &include
	}
	return options
}

type searchQuery struct {
	Q        string `schema:"q"`
	Provider string `schema:"provider"`
}

// ProviderSummary is what the explorer discloses about a provider.
type ProviderSummary struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// SearchResult tags a search answer with what the query was taken for.
type SearchResult struct {
	Kind   string `json:"kind"`
	Query  string `json:"query"`
	Result any    `json:"result"`
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) providersHandler(w http.ResponseWriter, _ *http.Request) error {
	providers := s.providers.All()
	summaries := make([]ProviderSummary, 0, len(providers))
	for _, provider := range providers {
		summaries = append(summaries, ProviderSummary{
			Name:        provider.Name,
			DisplayName: provider.Name,
		})
	}
	return writeJSON(w, summaries)
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) error {
	var query eventsQuery
	if err := decodeQuery(r, &query); err != nil {
		return err
	}
	if strings.TrimSpace(query.ContractID) == "" {
		return badRequest("Contract ID is required")
	}
	client, err := s.ledger(query.Provider)
	if err != nil {
		return err
	}
	events, err := client.GetEventsByContractID(r.Context(), query.ContractID)
	if err != nil {
		return err
	}
	return writeRaw(w, events.Raw)
}

func (s *Server) treeByOffsetHandler(w http.ResponseWriter, r *http.Request) error {
	var query providerQuery
	if err := decodeQuery(r, &query); err != nil {
		return err
	}
	client, err := s.ledger(query.Provider)
	if err != nil {
		return err
	}
	tree, err := client.GetTransactionTreeByOffset(r.Context(), mux.Vars(r)["offset"])
	if err != nil {
		return err
	}
	return writeRaw(w, tree.Raw)
}

func (s *Server) treeByIDHandler(w http.ResponseWriter, r *http.Request) error {
	var query treeQuery
	if err := decodeQuery(r, &query); err != nil {
		return err
	}
	client, err := s.ledger(query.Provider)
	if err != nil {
		return err
	}
	tree, err := client.GetTransactionTreeByID(r.Context(), mux.Vars(r)["updateId"], query.options())
	if err != nil {
		return err
	}
	return writeRaw(w, tree.Raw)
}

func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) error {
	var query providerQuery
	if err := decodeQuery(r, &query); err != nil {
		return err
	}
	client, err := s.ledger(query.Provider)
	if err != nil {
		return err
	}
	update, err := client.GetUpdateByID(r.Context(), mux.Vars(r)["updateId"])
	if err != nil {
		return err
	}
	return writeRaw(w, update)
}

func (s *Server) walletBalanceHandler(w http.ResponseWriter, r *http.Request) error {
	var query providerQuery
	if err := decodeQuery(r, &query); err != nil {
		return err
	}
	if strings.TrimSpace(query.Provider) == "" {
		return badRequest("Provider parameter is required")
	}
	client, err := s.validator(query.Provider)
	if err != nil {
		return err
	}
	balance, err := client.GetWalletBalance(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, balance)
}

// searchHandler resolves a free-form query to events, a tree by update id
// or a tree by offset.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) error {
	var query searchQuery
	if err := decodeQuery(r, &query); err != nil {
		return err
	}
	q := strings.TrimSpace(query.Q)
	if q == "" {
		return badRequest("Search query is required")
	}
	kind := display.Classify(q)
	if kind == display.Unknown {
		return badRequest("Search query is not a contract ID, update ID or offset")
	}
	client, err := s.ledger(query.Provider)
	if err != nil {
		return err
	}

	result := SearchResult{Kind: kind.String(), Query: q}
	switch kind {
	case display.ContractID:
		events, err := client.GetEventsByContractID(r.Context(), q)
		if err != nil {
			return err
		}
		result.Result = events.Raw
	case display.UpdateID:
		tree, err := client.GetTransactionTreeByID(r.Context(), q, jsonapi.TreeOptions{EventFormat: "verbose"})
		if err != nil {
			return err
		}
		result.Result = tree.Raw
	case display.Offset:
		tree, err := client.GetTransactionTreeByOffset(r.Context(), q)
		if err != nil {
			return err
		}
		result.Result = tree.Raw
	}
	return writeJSON(w, result)
}
