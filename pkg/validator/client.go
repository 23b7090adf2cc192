// Package validator is a client for the Splice validator API of a provider.
package validator

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/apiclient"
	"github.com/Fairmint/canton/pkg/auditlog"
	"github.com/Fairmint/canton/pkg/config"
)

const walletBalancePath = "/api/validator/v0/wallet/balance"

// WalletBalance is the validator operator's Amulet wallet balance.
type WalletBalance struct {
	Round                int64           `json:"round"`
	EffectiveUnlockedQty decimal.Decimal `json:"effective_unlocked_qty"`
	EffectiveLockedQty   decimal.Decimal `json:"effective_locked_qty"`
	TotalHoldingFees     decimal.Decimal `json:"total_holding_fees"`
}

// Total returns the unlocked plus locked quantity.
func (b WalletBalance) Total() decimal.Decimal {
	return b.EffectiveUnlockedQty.Add(b.EffectiveLockedQty)
}

type Client struct {
	api    *apiclient.Client
	logger *zap.Logger
}

// New creates a Client for the validator API of cfg.Provider.
func New(cfg apiclient.Config) (*Client, error) {
	cfg.API = config.ValidatorAPI
	api, err := apiclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, logger: api.Logger().Named("validator")}, nil
}

// API returns the underlying request executor.
func (c *Client) API() *apiclient.Client {
	return c.api
}

// GetWalletBalance returns the wallet balance of the validator operator.
func (c *Client) GetWalletBalance(ctx context.Context) (*WalletBalance, error) {
	var raw json.RawMessage
	if err := c.api.GetJSON(ctx, walletBalancePath, &raw); err != nil {
		return nil, errors.WithMessage(err, "failed to get wallet balance")
	}
	c.api.AuditLog().Record(auditlog.Entry{
		URL:      c.api.URL(walletBalancePath),
		Request:  map[string]any{},
		Response: raw,
	})

	var balance WalletBalance
	if err := json.Unmarshal(raw, &balance); err != nil {
		return nil, errors.Wrap(err, "failed to decode wallet balance")
	}
	c.logger.Debug("wallet balance",
		zap.Int64("round", balance.Round),
		zap.String("unlocked", balance.EffectiveUnlockedQty.String()),
	)
	return &balance, nil
}
