package captable

import (
	"context"

	"go.uber.org/zap"
)

// DemoOptions parameterizes RunDemo.
type DemoOptions struct {
	IssuerHint       string
	IssuerName       string
	AuthorizedShares int64
	AliceHint        string
	BobHint          string
	StockClassType   string
	StockClassShares int64
	IssueQuantity    int64
	TransferQuantity int64
	Payment          *PaymentDetails
}

// DefaultDemoOptions issues 10M common shares of Acme Inc to Bob, who then
// transfers 2M to Alice.
func DefaultDemoOptions() DemoOptions {
	return DemoOptions{
		IssuerHint:       "Test0001003",
		IssuerName:       "Acme Inc",
		AuthorizedShares: 15_000_000,
		AliceHint:        "Alice0001003",
		BobHint:          "Bob0001003",
		StockClassType:   "Common",
		StockClassShares: 10_000_000,
		IssueQuantity:    10_000_000,
		TransferQuantity: 2_000_000,
	}
}

// DemoResult holds every party and contract id the demo produced.
type DemoResult struct {
	AdminServiceContractID       string `json:"adminServiceContractId"`
	IssuerPartyID                string `json:"issuerPartyId"`
	AuthorizationContractID      string `json:"authorizationContractId"`
	IssuerContractID             string `json:"issuerContractId"`
	AlicePartyID                 string `json:"alicePartyId"`
	BobPartyID                   string `json:"bobPartyId"`
	StockClassContractID         string `json:"stockClassContractId"`
	IssueProposalContractID      string `json:"issueProposalContractId"`
	BobStockPositionContractID   string `json:"bobStockPositionContractId"`
	TransferProposalContractID   string `json:"transferProposalContractId"`
	AliceStockPositionContractID string `json:"aliceStockPositionContractId"`
}

// RunDemo runs the full issuance and transfer workflow. It stops at the
// first failing step and returns the ids gathered so far with a StepError.
func (c *Client) RunDemo(ctx context.Context, options DemoOptions) (*DemoResult, error) {
	result := &DemoResult{}
	steps := []struct {
		name string
		run  func() error
	}{
		{"create admin service", func() error {
			created, err := c.CreateAdminService(ctx)
			result.AdminServiceContractID = created.ContractID
			return err
		}},
		{"create issuer party", func() error {
			party, err := c.CreateParty(ctx, options.IssuerHint)
			result.IssuerPartyID = party.PartyID
			return err
		}},
		{"authorize issuer", func() error {
			id, err := c.AuthorizeIssuer(ctx, result.AdminServiceContractID, result.IssuerPartyID)
			result.AuthorizationContractID = id
			return err
		}},
		{"accept issuer authorization", func() error {
			id, err := c.AcceptIssuerAuthorization(ctx, result.AuthorizationContractID,
				options.IssuerName, options.AuthorizedShares, result.IssuerPartyID, options.Payment)
			result.IssuerContractID = id
			return err
		}},
		{"create alice party", func() error {
			party, err := c.CreateParty(ctx, options.AliceHint)
			result.AlicePartyID = party.PartyID
			return err
		}},
		{"create bob party", func() error {
			party, err := c.CreateParty(ctx, options.BobHint)
			result.BobPartyID = party.PartyID
			return err
		}},
		{"create stock class", func() error {
			stockClass, err := c.CreateStockClass(ctx, result.IssuerContractID,
				options.StockClassType, options.StockClassShares, result.IssuerPartyID)
			result.StockClassContractID = stockClass.StockClassContractID
			return err
		}},
		{"propose stock issuance", func() error {
			proposal, err := c.ProposeIssueStock(ctx, result.StockClassContractID,
				result.BobPartyID, options.IssueQuantity, result.IssuerPartyID)
			result.IssueProposalContractID = proposal.ProposalContractID
			return err
		}},
		{"accept stock issuance", func() error {
			id, err := c.AcceptIssueStockProposal(ctx, result.IssueProposalContractID, result.BobPartyID)
			result.BobStockPositionContractID = id
			return err
		}},
		{"propose transfer", func() error {
			proposal, err := c.ProposeTransfer(ctx, result.BobStockPositionContractID,
				result.AlicePartyID, options.TransferQuantity, result.BobPartyID)
			result.TransferProposalContractID = proposal.TransferProposalContractID
			return err
		}},
		{"accept transfer", func() error {
			id, err := c.AcceptTransfer(ctx, result.TransferProposalContractID, result.AlicePartyID)
			result.AliceStockPositionContractID = id
			return err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, &StepError{Step: step.name, Err: err}
		}
		c.logger.Info("demo step", zap.String("step", step.name))
		if err := step.run(); err != nil {
			return result, &StepError{Step: step.name, Err: err}
		}
	}
	return result, nil
}
