package captable

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/jsonapi"
	"github.com/Fairmint/canton/pkg/shared"
)

// Config configures a Client.
type Config struct {
	Ledger Ledger
	// PackageName is the Daml package templates are referenced by.
	PackageName string
	Logger      *zap.Logger
}

// Client exercises OpenCapTable choices on behalf of its parties.
type Client struct {
	ledger      Ledger
	packageName string
	logger      *zap.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger client is required")
	}
	packageName := cfg.PackageName
	if packageName == "" {
		packageName = DefaultPackageName
	}
	return &Client{
		ledger:      cfg.Ledger,
		packageName: packageName,
		logger:      shared.LoggerOrNop(cfg.Logger).Named("captable"),
	}, nil
}

// TemplateID returns the package-name reference for entity.
func (c *Client) TemplateID(entity string) string {
	return "#" + c.packageName + ":" + entity
}

func (c *Client) exercise(
	ctx context.Context,
	entity string,
	contractID string,
	choice string,
	argument map[string]any,
	actAs string,
) (*jsonapi.TransactionTree, error) {
	response, err := c.ledger.ExerciseCommand(ctx, jsonapi.ExerciseCommandParams{
		TemplateID:     c.TemplateID(entity),
		ContractID:     contractID,
		Choice:         choice,
		ChoiceArgument: argument,
		ActAs:          []string{actAs},
	})
	if err != nil {
		return nil, err
	}
	return &response.TransactionTree, nil
}

func requireCreated(tree *jsonapi.TransactionTree, choice string, template string) (string, error) {
	created, ok := tree.FirstCreated(template)
	if !ok {
		return "", &MissingContractError{Choice: choice, Template: template, UpdateID: tree.UpdateID}
	}
	return created.ContractID, nil
}

func optionalCreated(tree *jsonapi.TransactionTree, template string) string {
	if created, ok := tree.FirstCreated(template); ok {
		return created.ContractID
	}
	return ""
}

// CreateAdminService creates the FairmintAdminService contract for the
// provider's own party.
func (c *Client) CreateAdminService(ctx context.Context) (jsonapi.CreateContractResult, error) {
	partyID := c.ledger.PartyID()
	result, err := c.ledger.CreateCommand(ctx, jsonapi.CreateCommandParams{
		TemplateID:      c.TemplateID(TemplateAdminService),
		CreateArguments: map[string]any{"fairmint": partyID},
		ActAs:           []string{partyID},
	})
	if err != nil {
		return jsonapi.CreateContractResult{}, err
	}
	c.logger.Debug("created FairmintAdminService", zap.String("contract_id", result.ContractID))
	return result, nil
}

// CreateParty allocates, or reuses, the party for hint.
func (c *Client) CreateParty(ctx context.Context, hint string) (jsonapi.PartyCreationResult, error) {
	result, err := c.ledger.CreateParty(ctx, hint)
	if err != nil {
		return jsonapi.PartyCreationResult{}, err
	}
	verb := "reused"
	if result.IsNewParty {
		verb = "created"
	}
	c.logger.Debug(verb+" party", zap.String("hint", hint), zap.String("party_id", result.PartyID))
	return result, nil
}

// AuthorizeIssuer authorizes issuerPartyID through the admin service and
// returns the IssuerAuthorization contract id.
func (c *Client) AuthorizeIssuer(ctx context.Context, adminServiceContractID string, issuerPartyID string) (string, error) {
	tree, err := c.exercise(ctx, TemplateAdminService, adminServiceContractID, ChoiceAuthorizeIssuer,
		map[string]any{"issuer": issuerPartyID}, c.ledger.PartyID())
	if err != nil {
		return "", err
	}

	authorizationID := ""
	if exercised, ok := tree.FirstExercised(ChoiceAuthorizeIssuer); ok {
		if result, err := exercised.ResultString(); err == nil {
			authorizationID = result
		}
	}
	if authorizationID == "" {
		authorizationID, err = requireCreated(tree, ChoiceAuthorizeIssuer, TemplateIssuerAuthorization)
		if err != nil {
			return "", err
		}
	}
	c.logger.Debug("authorized issuer", zap.String("contract_id", authorizationID), zap.String("party_id", issuerPartyID))
	return authorizationID, nil
}

// AcceptIssuerAuthorization creates the Issuer contract. With payment
// details the onboarding fee is paid in the same transaction.
func (c *Client) AcceptIssuerAuthorization(
	ctx context.Context,
	authorizationContractID string,
	name string,
	authorizedShares int64,
	issuerPartyID string,
	payment *PaymentDetails,
) (string, error) {
	choice := ChoiceCreateIssuer
	argument := map[string]any{
		"name":             name,
		"authorizedShares": authorizedShares,
	}
	if payment != nil {
		choice = ChoicePayFeeAndCreateIssuer
		inputs := payment.Inputs
		if inputs == nil {
			inputs = []any{}
		}
		argument["feeAmount"] = payment.Amount
		argument["inputs"] = inputs
		argument["context"] = payment.Context
		argument["walletProvider"] = payment.WalletProvider
	}

	tree, err := c.exercise(ctx, TemplateIssuerAuthorization, authorizationContractID, choice, argument, issuerPartyID)
	if err != nil {
		return "", err
	}
	issuerID, err := requireCreated(tree, choice, TemplateIssuer)
	if err != nil {
		return "", err
	}
	c.logger.Debug("created issuer", zap.String("contract_id", issuerID))
	return issuerID, nil
}

// CreateStockClass creates a stock class under the issuer.
func (c *Client) CreateStockClass(
	ctx context.Context,
	issuerContractID string,
	stockClassType string,
	shares int64,
	issuerPartyID string,
) (StockClassResult, error) {
	tree, err := c.exercise(ctx, TemplateIssuer, issuerContractID, ChoiceCreateStockClass, map[string]any{
		"stockClassType": stockClassType,
		"shares":         shares,
	}, issuerPartyID)
	if err != nil {
		return StockClassResult{}, err
	}
	stockClassID, err := requireCreated(tree, ChoiceCreateStockClass, TemplateStockClass)
	if err != nil {
		return StockClassResult{}, err
	}
	result := StockClassResult{
		StockClassContractID:    stockClassID,
		UpdatedIssuerContractID: optionalCreated(tree, TemplateIssuer),
	}
	c.logger.Debug("created stock class", zap.String("contract_id", stockClassID), zap.String("type", stockClassType))
	return result, nil
}

// ProposeIssueStock proposes issuing quantity shares of the stock class to
// recipientPartyID.
func (c *Client) ProposeIssueStock(
	ctx context.Context,
	stockClassContractID string,
	recipientPartyID string,
	quantity int64,
	issuerPartyID string,
) (IssueProposalResult, error) {
	tree, err := c.exercise(ctx, TemplateStockClass, stockClassContractID, ChoiceProposeIssueStock, map[string]any{
		"recipient": recipientPartyID,
		"quantity":  quantity,
	}, issuerPartyID)
	if err != nil {
		return IssueProposalResult{}, err
	}
	proposalID, err := requireCreated(tree, ChoiceProposeIssueStock, TemplateIssueStockProposal)
	if err != nil {
		return IssueProposalResult{}, err
	}
	result := IssueProposalResult{
		ProposalContractID:          proposalID,
		UpdatedStockClassContractID: optionalCreated(tree, TemplateStockClass),
	}
	c.logger.Debug("proposed stock issuance",
		zap.String("contract_id", proposalID),
		zap.String("recipient", recipientPartyID),
	)
	return result, nil
}

// AcceptIssueStockProposal accepts an issuance as its recipient and returns
// the new StockPosition contract id.
func (c *Client) AcceptIssueStockProposal(ctx context.Context, proposalContractID string, recipientPartyID string) (string, error) {
	tree, err := c.exercise(ctx, TemplateIssueStockProposal, proposalContractID, ChoiceAcceptIssueStockProposal,
		map[string]any{}, recipientPartyID)
	if err != nil {
		return "", err
	}
	positionID, err := requireCreated(tree, ChoiceAcceptIssueStockProposal, TemplateStockPosition)
	if err != nil {
		return "", err
	}
	c.logger.Debug("accepted stock issuance", zap.String("contract_id", positionID), zap.String("party_id", recipientPartyID))
	return positionID, nil
}

// ProposeTransfer proposes moving quantity shares of a position to
// recipientPartyID. The updated position is empty when the whole position
// is transferred.
func (c *Client) ProposeTransfer(
	ctx context.Context,
	stockPositionContractID string,
	recipientPartyID string,
	quantity int64,
	ownerPartyID string,
) (TransferProposalResult, error) {
	tree, err := c.exercise(ctx, TemplateStockPosition, stockPositionContractID, ChoiceProposeTransfer, map[string]any{
		"recipient":          recipientPartyID,
		"quantityToTransfer": quantity,
	}, ownerPartyID)
	if err != nil {
		return TransferProposalResult{}, err
	}
	proposalID, err := requireCreated(tree, ChoiceProposeTransfer, TemplateTransferProposal)
	if err != nil {
		return TransferProposalResult{}, err
	}
	result := TransferProposalResult{
		TransferProposalContractID:     proposalID,
		UpdatedStockPositionContractID: optionalCreated(tree, TemplateStockPosition),
	}
	c.logger.Debug("proposed transfer",
		zap.String("contract_id", proposalID),
		zap.String("owner", ownerPartyID),
		zap.String("recipient", recipientPartyID),
	)
	return result, nil
}

// AcceptTransfer accepts a transfer as its recipient and returns the
// recipient's new StockPosition contract id.
func (c *Client) AcceptTransfer(ctx context.Context, transferProposalContractID string, recipientPartyID string) (string, error) {
	tree, err := c.exercise(ctx, TemplateTransferProposal, transferProposalContractID, ChoiceAcceptTransfer,
		map[string]any{}, recipientPartyID)
	if err != nil {
		return "", err
	}
	positionID, err := requireCreated(tree, ChoiceAcceptTransfer, TemplateStockPosition)
	if err != nil {
		return "", err
	}
	c.logger.Debug("accepted transfer", zap.String("contract_id", positionID), zap.String("party_id", recipientPartyID))
	return positionID, nil
}
