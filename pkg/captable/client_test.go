package captable

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fairmint/canton/pkg/jsonapi"
)

type fakeLedger struct {
	partyID   string
	creates   []jsonapi.CreateCommandParams
	exercises []jsonapi.ExerciseCommandParams
	parties   map[string]string
	trees     map[string]func(params jsonapi.ExerciseCommandParams) jsonapi.TransactionTree
	failOn    string
}

func created(node int, contractID, templateID string) jsonapi.TreeEvent {
	return jsonapi.TreeEvent{Kind: jsonapi.KindCreated, Created: &jsonapi.CreatedEvent{
		NodeID: node, ContractID: contractID, TemplateID: templateID,
	}}
}

func exercised(node int, params jsonapi.ExerciseCommandParams, last int, result string) jsonapi.TreeEvent {
	return jsonapi.TreeEvent{Kind: jsonapi.KindExercised, Exercised: &jsonapi.ExercisedEvent{
		NodeID:               node,
		ContractID:           params.ContractID,
		TemplateID:           params.TemplateID,
		Choice:               params.Choice,
		Consuming:            true,
		LastDescendantNodeID: last,
		ExerciseResult:       []byte(result),
	}}
}

// newWorkflowLedger returns trees shaped like the ones the OpenCapTable
// package produces, with the ledger's package hash as template prefix.
func newWorkflowLedger() *fakeLedger {
	ledger := &fakeLedger{partyID: "FM:Fairmint::1220", parties: map[string]string{}}
	ledger.trees = map[string]func(jsonapi.ExerciseCommandParams) jsonapi.TransactionTree{
		ChoiceAuthorizeIssuer: func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
			return tree("u1", exercised(0, p, 1, `"00authorization"`),
				created(1, "00authorization", "hash:IssuerAuthorization:IssuerAuthorization"))
		},
		ChoiceCreateIssuer: func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
			return tree("u2", exercised(0, p, 1, `"00issuer"`), created(1, "00issuer", "hash:Issuer:Issuer"))
		},
		ChoicePayFeeAndCreateIssuer: func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
			return tree("u2", exercised(0, p, 2, `"00issuer"`),
				created(1, "00amulet", "splice:Splice.Amulet:Amulet"),
				created(2, "00issuer", "hash:Issuer:Issuer"))
		},
		ChoiceCreateStockClass: func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
			return tree("u3", exercised(0, p, 2, `{}`),
				created(1, "00issuer2", "hash:Issuer:Issuer"),
				created(2, "00stockclass", "hash:StockClass:StockClass"))
		},
		ChoiceProposeIssueStock: func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
			return tree("u4", exercised(0, p, 2, `{}`),
				created(1, "00issueproposal", "hash:StockClass:IssueStockClassProposal"),
				created(2, "00stockclass2", "hash:StockClass:StockClass"))
		},
		ChoiceAcceptIssueStockProposal: func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
			return tree("u5", exercised(0, p, 1, `"00bobposition"`), created(1, "00bobposition", "hash:StockPosition:StockPosition"))
		},
		ChoiceProposeTransfer: func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
			return tree("u6", exercised(0, p, 2, `{}`),
				created(1, "00transferproposal", "hash:StockPosition:StockTransferProposal"),
				created(2, "00bobposition2", "hash:StockPosition:StockPosition"))
		},
		ChoiceAcceptTransfer: func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
			return tree("u7", exercised(0, p, 1, `"00aliceposition"`), created(1, "00aliceposition", "hash:StockPosition:StockPosition"))
		},
	}
	return ledger
}

func tree(updateID string, events ...jsonapi.TreeEvent) jsonapi.TransactionTree {
	byID := map[string]jsonapi.TreeEvent{}
	for _, event := range events {
		byID[fmt.Sprint(event.NodeID())] = event
	}
	return jsonapi.TransactionTree{UpdateID: updateID, EventsByID: byID}
}

func (l *fakeLedger) PartyID() string { return l.partyID }

func (l *fakeLedger) CreateCommand(_ context.Context, params jsonapi.CreateCommandParams) (jsonapi.CreateContractResult, error) {
	l.creates = append(l.creates, params)
	return jsonapi.CreateContractResult{ContractID: "00adminservice", UpdateID: "u0"}, nil
}

func (l *fakeLedger) ExerciseCommand(_ context.Context, params jsonapi.ExerciseCommandParams) (*jsonapi.CommandResponse, error) {
	l.exercises = append(l.exercises, params)
	if params.Choice == l.failOn {
		return nil, &jsonapi.CommandError{Kind: "exercise", Choice: params.Choice, Err: errors.New("rejected")}
	}
	build, ok := l.trees[params.Choice]
	if !ok {
		return nil, fmt.Errorf("unexpected choice %s", params.Choice)
	}
	return &jsonapi.CommandResponse{TransactionTree: build(params)}, nil
}

func (l *fakeLedger) CreateParty(_ context.Context, hint string) (jsonapi.PartyCreationResult, error) {
	if id, ok := l.parties[hint]; ok {
		return jsonapi.PartyCreationResult{PartyID: id}, nil
	}
	id := "FM:" + hint + "::1220"
	l.parties[hint] = id
	return jsonapi.PartyCreationResult{PartyID: id, IsNewParty: true}, nil
}

func newTestClient(t *testing.T, ledger Ledger) *Client {
	t.Helper()
	client, err := New(Config{Ledger: ledger})
	require.NoError(t, err)
	return client
}

func TestRunDemo(t *testing.T) {
	ledger := newWorkflowLedger()
	client := newTestClient(t, ledger)

	result, err := client.RunDemo(context.Background(), DefaultDemoOptions())
	require.NoError(t, err)
	assert.Equal(t, &DemoResult{
		AdminServiceContractID:       "00adminservice",
		IssuerPartyID:                "FM:Test0001003::1220",
		AuthorizationContractID:      "00authorization",
		IssuerContractID:             "00issuer",
		AlicePartyID:                 "FM:Alice0001003::1220",
		BobPartyID:                   "FM:Bob0001003::1220",
		StockClassContractID:         "00stockclass",
		IssueProposalContractID:      "00issueproposal",
		BobStockPositionContractID:   "00bobposition",
		TransferProposalContractID:   "00transferproposal",
		AliceStockPositionContractID: "00aliceposition",
	}, result)

	require.Len(t, ledger.creates, 1)
	assert.Equal(t, "#OpenCapTable-v01:FairmintAdminService:FairmintAdminService", ledger.creates[0].TemplateID)
	assert.Equal(t, map[string]any{"fairmint": "FM:Fairmint::1220"}, ledger.creates[0].CreateArguments)

	type call struct {
		template, contract, choice, actAs string
	}
	var calls []call
	for _, exercise := range ledger.exercises {
		require.Len(t, exercise.ActAs, 1)
		calls = append(calls, call{exercise.TemplateID, exercise.ContractID, exercise.Choice, exercise.ActAs[0]})
	}
	assert.Equal(t, []call{
		{"#OpenCapTable-v01:FairmintAdminService:FairmintAdminService", "00adminservice", "AuthorizeIssuer", "FM:Fairmint::1220"},
		{"#OpenCapTable-v01:IssuerAuthorization:IssuerAuthorization", "00authorization", "CreateIssuer", "FM:Test0001003::1220"},
		{"#OpenCapTable-v01:Issuer:Issuer", "00issuer", "CreateStockClass", "FM:Test0001003::1220"},
		{"#OpenCapTable-v01:StockClass:StockClass", "00stockclass", "ProposeIssueStock", "FM:Test0001003::1220"},
		{"#OpenCapTable-v01:StockClass:IssueStockClassProposal", "00issueproposal", "AcceptIssueStockProposal", "FM:Bob0001003::1220"},
		{"#OpenCapTable-v01:StockPosition:StockPosition", "00bobposition", "ProposeTransfer", "FM:Bob0001003::1220"},
		{"#OpenCapTable-v01:StockPosition:StockTransferProposal", "00transferproposal", "AcceptTransfer", "FM:Alice0001003::1220"},
	}, calls)

	assert.Equal(t, map[string]any{"issuer": "FM:Test0001003::1220"}, ledger.exercises[0].ChoiceArgument)
	assert.Equal(t, map[string]any{"name": "Acme Inc", "authorizedShares": int64(15_000_000)}, ledger.exercises[1].ChoiceArgument)
	assert.Equal(t, map[string]any{"stockClassType": "Common", "shares": int64(10_000_000)}, ledger.exercises[2].ChoiceArgument)
	assert.Equal(t, map[string]any{"recipient": "FM:Bob0001003::1220", "quantity": int64(10_000_000)}, ledger.exercises[3].ChoiceArgument)
	assert.Equal(t, map[string]any{"recipient": "FM:Alice0001003::1220", "quantityToTransfer": int64(2_000_000)}, ledger.exercises[5].ChoiceArgument)
}

func TestRunDemoStopsAtFailingStep(t *testing.T) {
	ledger := newWorkflowLedger()
	ledger.failOn = ChoiceProposeIssueStock
	client := newTestClient(t, ledger)

	result, err := client.RunDemo(context.Background(), DefaultDemoOptions())
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "propose stock issuance", stepErr.Step)
	assert.Equal(t, "00stockclass", result.StockClassContractID)
	assert.Empty(t, result.BobStockPositionContractID)

	var commandErr *jsonapi.CommandError
	require.ErrorAs(t, err, &commandErr)
	assert.Len(t, ledger.exercises, 4)
}

func TestRunDemoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := newTestClient(t, newWorkflowLedger())

	_, err := client.RunDemo(ctx, DefaultDemoOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestAcceptIssuerAuthorizationWithPayment(t *testing.T) {
	ledger := newWorkflowLedger()
	client := newTestClient(t, ledger)

	issuerID, err := client.AcceptIssuerAuthorization(context.Background(), "00authorization", "Acme Inc", 15_000_000,
		"FM:Issuer::1220", &PaymentDetails{
			Amount:         decimal.RequireFromString("1.42"),
			Context:        map[string]any{"amuletRules": "00rules"},
			WalletProvider: "5N DevNet",
		})
	require.NoError(t, err)
	assert.Equal(t, "00issuer", issuerID)

	exercise := ledger.exercises[0]
	assert.Equal(t, ChoicePayFeeAndCreateIssuer, exercise.Choice)
	assert.Equal(t, "1.42", exercise.ChoiceArgument["feeAmount"].(decimal.Decimal).String())
	assert.Equal(t, []any{}, exercise.ChoiceArgument["inputs"])
	assert.Equal(t, "5N DevNet", exercise.ChoiceArgument["walletProvider"])
}

func TestMissingContractIsReported(t *testing.T) {
	ledger := newWorkflowLedger()
	ledger.trees[ChoiceAcceptTransfer] = func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
		return tree("u9", exercised(0, p, 0, `{}`))
	}
	client := newTestClient(t, ledger)

	_, err := client.AcceptTransfer(context.Background(), "00proposal", "FM:Alice::1220")
	var missing *MissingContractError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "AcceptTransfer did not create a StockPosition:StockPosition contract (update u9)", missing.Error())
}

func TestAuthorizeIssuerFallsBackToCreatedAuthorization(t *testing.T) {
	ledger := newWorkflowLedger()
	ledger.trees[ChoiceAuthorizeIssuer] = func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
		return tree("u1", exercised(0, p, 1, `{"unexpected":true}`),
			created(1, "00created-auth", "hash:IssuerAuthorization:IssuerAuthorization"))
	}
	client := newTestClient(t, ledger)

	id, err := client.AuthorizeIssuer(context.Background(), "00admin", "FM:Issuer::1220")
	require.NoError(t, err)
	assert.Equal(t, "00created-auth", id)
}

func TestProposeTransferOfWholePosition(t *testing.T) {
	ledger := newWorkflowLedger()
	ledger.trees[ChoiceProposeTransfer] = func(p jsonapi.ExerciseCommandParams) jsonapi.TransactionTree {
		return tree("u6", exercised(0, p, 1, `{}`),
			created(1, "00transferproposal", "hash:StockPosition:StockTransferProposal"))
	}
	client := newTestClient(t, ledger)

	result, err := client.ProposeTransfer(context.Background(), "00pos", "FM:Alice::1220", 10_000_000, "FM:Bob::1220")
	require.NoError(t, err)
	assert.Equal(t, TransferProposalResult{TransferProposalContractID: "00transferproposal"}, result)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	client, err := New(Config{Ledger: newWorkflowLedger(), PackageName: "OpenCapTable-v02"})
	require.NoError(t, err)
	assert.Equal(t, "#OpenCapTable-v02:Issuer:Issuer", client.TemplateID(TemplateIssuer))
}
