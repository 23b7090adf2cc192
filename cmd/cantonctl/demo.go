package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Fairmint/canton/pkg/captable"
	"github.com/Fairmint/canton/pkg/jsonapi"
)

func (a *app) demoCommand() *cobra.Command {
	options := captable.DefaultDemoOptions()
	var (
		packageName     string
		commandIDPrefix string
		feeAmount       string
		walletProvider  string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the cap-table issuance and transfer workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if feeAmount != "" {
				amount, err := decimal.NewFromString(feeAmount)
				if err != nil {
					return errors.Wrapf(err, "invalid --fee-amount %q", feeAmount)
				}
				options.Payment = &captable.PaymentDetails{
					Amount:         amount,
					Context:        map[string]any{"amuletRules": ""},
					WalletProvider: walletProvider,
				}
			}
			if !cmd.Flags().Changed("command-id-prefix") {
				commandIDPrefix = "cantonctl-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-"
			}

			ledger, err := a.ledger(jsonapi.WithCommandIDPrefix(commandIDPrefix))
			if err != nil {
				return err
			}
			client, err := captable.New(captable.Config{Ledger: ledger, PackageName: packageName, Logger: a.logger})
			if err != nil {
				return err
			}

			result, runErr := client.RunDemo(cmd.Context(), options)
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, string(out))
			return runErr
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&packageName, "package-name", captable.DefaultPackageName, "Daml package the templates belong to")
	flags.StringVar(&commandIDPrefix, "command-id-prefix", "", "prefix for command ids (defaults to a per-run prefix)")
	flags.StringVar(&options.IssuerHint, "issuer-hint", options.IssuerHint, "party hint for the issuer")
	flags.StringVar(&options.IssuerName, "issuer-name", options.IssuerName, "issuer legal name")
	flags.Int64Var(&options.AuthorizedShares, "authorized-shares", options.AuthorizedShares, "issuer authorized shares")
	flags.StringVar(&options.AliceHint, "alice-hint", options.AliceHint, "party hint for Alice")
	flags.StringVar(&options.BobHint, "bob-hint", options.BobHint, "party hint for Bob")
	flags.StringVar(&options.StockClassType, "stock-class-type", options.StockClassType, "stock class type")
	flags.Int64Var(&options.StockClassShares, "stock-class-shares", options.StockClassShares, "stock class authorized shares")
	flags.Int64Var(&options.IssueQuantity, "issue-quantity", options.IssueQuantity, "shares issued to Bob")
	flags.Int64Var(&options.TransferQuantity, "transfer-quantity", options.TransferQuantity, "shares Bob transfers to Alice")
	flags.StringVar(&feeAmount, "fee-amount", "", "pay the issuer onboarding fee in Amulet")
	flags.StringVar(&walletProvider, "wallet-provider", "", "wallet provider named in the fee payment")
	return cmd
}
