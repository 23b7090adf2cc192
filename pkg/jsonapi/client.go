package jsonapi

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/apiclient"
	"github.com/Fairmint/canton/pkg/auditlog"
	"github.com/Fairmint/canton/pkg/config"
)

const (
	submitPath           = "/commands/submit-and-wait-for-transaction-tree"
	partiesPath          = "/parties"
	eventsByContractPath = "/events/events-by-contract-id"
	updateByIDPath       = "/updates/update-by-id"
	treeByOffsetPath     = "/updates/transaction-tree-by-offset/"
	treeByIDPath         = "/updates/transaction-tree-by-id/"
	packagesPath         = "/packages"

	// PartyExistsCause is matched as a substring of the error cause returned
	// when a party hint is already allocated.
	PartyExistsCause = "Party already exists"

	maxPartyPages = 1000
)

// Option customizes a Client.
type Option func(*Client)

// WithCommandIDPrefix prefixes every command id with prefix. Command ids
// are otherwise the bare sequence number.
func WithCommandIDPrefix(prefix string) Option {
	return func(c *Client) {
		c.commandIDPrefix = prefix
	}
}

// Client talks to the ledger JSON API of one provider.
type Client struct {
	api             *apiclient.Client
	provider        config.Provider
	logger          *zap.Logger
	sequence        atomic.Int64
	commandIDPrefix string
}

// New creates a Client for the JSON API of cfg.Provider.
func New(cfg apiclient.Config, options ...Option) (*Client, error) {
	cfg.API = config.JSONAPI
	api, err := apiclient.New(cfg)
	if err != nil {
		return nil, err
	}
	client := &Client{
		api:      api,
		provider: cfg.Provider,
		logger:   api.Logger().Named("jsonapi"),
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// API returns the underlying request executor.
func (c *Client) API() *apiclient.Client {
	return c.api
}

// Provider returns the provider the client was built for.
func (c *Client) Provider() config.Provider {
	return c.provider
}

// PartyID returns the provider's own party.
func (c *Client) PartyID() string {
	return c.provider.JSONAPI.PartyID
}

// UserID returns the ledger user the client acts as.
func (c *Client) UserID() string {
	return c.provider.JSONAPI.UserID
}

// BearerToken returns the current access token, authenticating if needed.
func (c *Client) BearerToken(ctx context.Context) (string, error) {
	return c.api.BearerToken(ctx)
}

func (c *Client) nextCommandID() string {
	return c.commandIDPrefix + strconv.FormatInt(c.sequence.Add(1), 10)
}

func (c *Client) submit(ctx context.Context, command Command, actAs []string) (*CommandResponse, error) {
	request := CommandRequest{
		Commands:  []Command{command},
		CommandID: c.nextCommandID(),
		ActAs:     actAs,
	}
	var response CommandResponse
	if err := c.api.PostJSON(ctx, submitPath, request, &response); err != nil {
		return nil, err
	}
	c.logger.Debug("command submitted",
		zap.String("command_id", request.CommandID),
		zap.String("update_id", response.TransactionTree.UpdateID),
	)
	return &response, nil
}

// CreateCommand creates a contract and returns the id of the first created
// event in the resulting transaction.
func (c *Client) CreateCommand(ctx context.Context, params CreateCommandParams) (CreateContractResult, error) {
	response, err := c.submit(ctx, Command{Create: &CreateCommand{
		TemplateID:      params.TemplateID,
		CreateArguments: params.CreateArguments,
	}}, params.ActAs)
	if err != nil {
		return CreateContractResult{}, &CommandError{Kind: "create", TemplateID: params.TemplateID, Err: err}
	}

	tree := &response.TransactionTree
	created, ok := tree.FirstCreated("")
	if !ok {
		got := ""
		if events := tree.Events(); len(events) > 0 {
			got = events[0].Kind
		}
		return CreateContractResult{}, &CommandError{
			Kind:       "create",
			TemplateID: params.TemplateID,
			Err:        &UnexpectedEventError{Expected: KindCreated, Got: got},
		}
	}

	c.logger.Debug("contract created",
		zap.String("template_id", params.TemplateID),
		zap.String("contract_id", created.ContractID),
	)
	return CreateContractResult{ContractID: created.ContractID, UpdateID: tree.UpdateID}, nil
}

// ExerciseCommand exercises a choice and returns the full transaction tree.
func (c *Client) ExerciseCommand(ctx context.Context, params ExerciseCommandParams) (*CommandResponse, error) {
	response, err := c.submit(ctx, Command{Exercise: &ExerciseCommand{
		TemplateID:     params.TemplateID,
		ContractID:     params.ContractID,
		Choice:         params.Choice,
		ChoiceArgument: params.ChoiceArgument,
	}}, params.ActAs)
	if err != nil {
		return nil, &CommandError{
			Kind:       "exercise",
			TemplateID: params.TemplateID,
			Choice:     params.Choice,
			Err:        err,
		}
	}
	return response, nil
}

// CreateParty allocates a party for hint, prefixed with the provider's hint
// prefix, and grants the configured user CanActAs on it. When the ledger
// reports the party already exists, the existing party is looked up and
// granted instead.
func (c *Client) CreateParty(ctx context.Context, hint string) (PartyCreationResult, error) {
	prefixed := c.provider.HintPrefix() + hint

	var response struct {
		PartyDetails PartyDetails `json:"partyDetails"`
	}
	err := c.api.PostJSON(ctx, partiesPath, map[string]string{
		"partyIdHint":        prefixed,
		"identityProviderId": "",
	}, &response)
	if err == nil {
		partyID := response.PartyDetails.Party
		if err := c.SetUserRights(ctx, partyID); err != nil {
			return PartyCreationResult{}, &PartyCreationError{Hint: hint, Err: err}
		}
		c.logger.Debug("created party", zap.String("party_id", partyID))
		return PartyCreationResult{PartyID: partyID, IsNewParty: true}, nil
	}

	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Cause(), PartyExistsCause) {
		return PartyCreationResult{}, &PartyCreationError{Hint: hint, Err: err}
	}

	parties, listErr := c.ListParties(ctx)
	if listErr != nil {
		return PartyCreationResult{}, &PartyCreationError{Hint: hint, Err: listErr}
	}
	partyID, found := matchParty(parties, prefixed)
	if !found {
		return PartyCreationResult{}, &PartyCreationError{Hint: hint, Err: err}
	}
	if err := c.SetUserRights(ctx, partyID); err != nil {
		return PartyCreationResult{}, &PartyCreationError{Hint: hint, Err: err}
	}
	c.logger.Debug("reused party", zap.String("party_id", partyID))
	return PartyCreationResult{PartyID: partyID, IsNewParty: false}, nil
}

// matchParty prefers a party whose hint is exactly prefixed and falls back
// to any party starting with prefixed.
func matchParty(parties []PartyDetails, prefixed string) (string, bool) {
	for _, party := range parties {
		if strings.HasPrefix(party.Party, prefixed+"::") {
			return party.Party, true
		}
	}
	for _, party := range parties {
		if strings.HasPrefix(party.Party, prefixed) {
			return party.Party, true
		}
	}
	return "", false
}

// ListParties returns every party known to the participant, following
// page tokens.
func (c *Client) ListParties(ctx context.Context) ([]PartyDetails, error) {
	var parties []PartyDetails
	pageToken := ""
	for page := 0; page < maxPartyPages; page++ {
		path := partiesPath
		if pageToken != "" {
			path += "?" + url.Values{"pageToken": {pageToken}}.Encode()
		}
		var response struct {
			PartyDetails  []PartyDetails `json:"partyDetails"`
			NextPageToken string         `json:"nextPageToken"`
		}
		if err := c.api.GetJSON(ctx, path, &response); err != nil {
			return nil, errors.WithMessage(err, "failed to get parties")
		}
		parties = append(parties, response.PartyDetails...)
		if response.NextPageToken == "" || response.NextPageToken == pageToken {
			return parties, nil
		}
		pageToken = response.NextPageToken
	}
	return parties, nil
}

// SetUserRights grants the configured user CanActAs on partyID.
func (c *Client) SetUserRights(ctx context.Context, partyID string) error {
	userID := c.UserID()
	if userID == "" {
		return errors.New("provider has no JSON_API.USER_ID")
	}
	body := map[string]any{
		"userId": userID,
		"rights": []any{
			map[string]any{
				"kind": map[string]any{
					"CanActAs": map[string]any{
						"value": map[string]any{"party": partyID},
					},
				},
			},
		},
		"identityProviderId": "",
	}
	if err := c.api.PostJSON(ctx, "/users/"+url.PathEscape(userID)+"/rights", body, nil); err != nil {
		return errors.WithMessagef(err, "failed to grant %s rights on %s", userID, partyID)
	}
	return nil
}

// GetEventsByContractID returns the create and archive events of a
// contract as seen by the provider's party.
func (c *Client) GetEventsByContractID(ctx context.Context, contractID string) (*EventsByContractIDResponse, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, errors.New("contract ID is required")
	}
	var raw json.RawMessage
	err := c.api.PostJSON(ctx, eventsByContractPath, map[string]any{
		"contractId":        contractID,
		"requestingParties": []string{c.PartyID()},
	}, &raw)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to get events by contract ID")
	}
	response := &EventsByContractIDResponse{Raw: raw}
	if err := json.Unmarshal(raw, response); err != nil {
		return nil, errors.Wrap(err, "failed to decode events by contract ID")
	}
	return response, nil
}

// GetTransactionTreeByOffset returns the transaction tree committed at
// offset.
func (c *Client) GetTransactionTreeByOffset(ctx context.Context, offset string) (*TransactionTreeResponse, error) {
	if strings.TrimSpace(offset) == "" {
		return nil, errors.New("offset is required")
	}
	path := treeByOffsetPath + url.PathEscape(offset) + "?" + url.Values{"parties": {c.PartyID()}}.Encode()
	response, err := c.getTree(ctx, path)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to get transaction tree by offset")
	}
	return response, nil
}

// GetTransactionTreeByID returns the transaction tree of an update.
func (c *Client) GetTransactionTreeByID(ctx context.Context, updateID string, options TreeOptions) (*TransactionTreeResponse, error) {
	if strings.TrimSpace(updateID) == "" {
		return nil, errors.New("update ID is required")
	}
	query := url.Values{"parties": {c.PartyID()}}
	if options.EventFormat != "" {
		query.Set("eventFormat", options.EventFormat)
	}
	if options.IncludeCreatedEventBlob != nil {
		query.Set("includeCreatedEventBlob", strconv.FormatBool(*options.IncludeCreatedEventBlob))
	}
	path := treeByIDPath + url.PathEscape(updateID)
	response, err := c.getTree(ctx, path+"?"+query.Encode())
	if err != nil {
		return nil, errors.WithMessage(err, "failed to get transaction tree by ID")
	}
	c.api.AuditLog().Record(auditlog.Entry{
		URL:      c.api.URL(path),
		Request:  map[string]any{"updateId": updateID, "options": options},
		Response: response.Raw,
	})
	return response, nil
}

func (c *Client) getTree(ctx context.Context, path string) (*TransactionTreeResponse, error) {
	var raw json.RawMessage
	if err := c.api.GetJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	response := &TransactionTreeResponse{Raw: raw}
	if err := json.Unmarshal(raw, response); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction tree")
	}
	return response, nil
}

// GetUpdateByID returns the update, including its transaction with verbose
// events, exactly as the ledger renders it.
func (c *Client) GetUpdateByID(ctx context.Context, updateID string) (json.RawMessage, error) {
	if strings.TrimSpace(updateID) == "" {
		return nil, errors.New("update ID is required")
	}
	body := map[string]any{
		"updateId":          updateID,
		"requestingParties": []string{c.PartyID()},
		"updateFormat": map[string]any{
			"includeTransactions": map[string]any{
				"eventFormat":      map[string]any{"verbose": true},
				"transactionShape": "TRANSACTION_SHAPE_UNSPECIFIED",
			},
		},
	}
	var raw json.RawMessage
	if err := c.api.PostJSON(ctx, updateByIDPath, body, &raw); err != nil {
		return nil, errors.WithMessage(err, "failed to get update by ID")
	}
	return raw, nil
}

// UploadPackage uploads a DAR file. A missing file fails before any request
// is made.
func (c *Client) UploadPackage(ctx context.Context, path string) (json.RawMessage, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &FileNotFoundError{Path: path}
		}
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var raw json.RawMessage
	if err := c.api.PostBytes(ctx, packagesPath, content, apiclient.ContentTypeOctetStream, &raw); err != nil {
		return nil, errors.WithMessage(err, "failed to upload package")
	}
	c.logger.Info("package uploaded", zap.String("path", path), zap.Int("bytes", len(content)))
	return raw, nil
}
