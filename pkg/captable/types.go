package captable

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Fairmint/canton/pkg/jsonapi"
)

const DefaultPackageName = "OpenCapTable-v01"

// Template entity names, as "Module:Entity".
const (
	TemplateAdminService        = "FairmintAdminService:FairmintAdminService"
	TemplateIssuerAuthorization = "IssuerAuthorization:IssuerAuthorization"
	TemplateIssuer              = "Issuer:Issuer"
	TemplateStockClass          = "StockClass:StockClass"
	TemplateIssueStockProposal  = "StockClass:IssueStockClassProposal"
	TemplateStockPosition       = "StockPosition:StockPosition"
	TemplateTransferProposal    = "StockPosition:StockTransferProposal"
)

// Choice names.
const (
	ChoiceAuthorizeIssuer          = "AuthorizeIssuer"
	ChoiceCreateIssuer             = "CreateIssuer"
	ChoicePayFeeAndCreateIssuer    = "PayFeeAndCreateIssuer"
	ChoiceCreateStockClass         = "CreateStockClass"
	ChoiceProposeIssueStock        = "ProposeIssueStock"
	ChoiceAcceptIssueStockProposal = "AcceptIssueStockProposal"
	ChoiceProposeTransfer          = "ProposeTransfer"
	ChoiceAcceptTransfer           = "AcceptTransfer"
)

// Ledger is the subset of the JSON API client the workflow needs.
type Ledger interface {
	PartyID() string
	CreateCommand(ctx context.Context, params jsonapi.CreateCommandParams) (jsonapi.CreateContractResult, error)
	ExerciseCommand(ctx context.Context, params jsonapi.ExerciseCommandParams) (*jsonapi.CommandResponse, error)
	CreateParty(ctx context.Context, hint string) (jsonapi.PartyCreationResult, error)
}

// PaymentDetails pays the issuer onboarding fee in Amulet.
type PaymentDetails struct {
	Amount         decimal.Decimal
	Inputs         []any
	Context        any
	WalletProvider string
}

type StockClassResult struct {
	StockClassContractID    string `json:"stockClassContractId"`
	UpdatedIssuerContractID string `json:"updatedIssuerContractId"`
}

type IssueProposalResult struct {
	ProposalContractID          string `json:"proposalContractId"`
	UpdatedStockClassContractID string `json:"updatedStockClassContractId"`
}

type TransferProposalResult struct {
	TransferProposalContractID     string `json:"transferProposalContractId"`
	UpdatedStockPositionContractID string `json:"updatedStockPositionContractId,omitempty"`
}

// MissingContractError reports a transaction tree that lacks the contract
// a choice is expected to create.
type MissingContractError struct {
	Choice   string
	Template string
	UpdateID string
}

func (e *MissingContractError) Error() string {
	return fmt.Sprintf("%s did not create a %s contract (update %s)", e.Choice, e.Template, e.UpdateID)
}

// StepError names the workflow step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
