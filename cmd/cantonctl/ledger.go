package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Fairmint/canton/pkg/display"
	"github.com/Fairmint/canton/pkg/jsonapi"
)

func indentJSON(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (a *app) providersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARTY\tUSER\tVALIDATOR API")
			for _, provider := range a.providers.All() {
				validatorURL := provider.ValidatorAPI.APIURL
				if validatorURL == "" {
					validatorURL = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					provider.Name,
					display.TruncatePartyID(provider.JSONAPI.PartyID),
					provider.JSONAPI.UserID,
					validatorURL,
				)
			}
			return w.Flush()
		},
	}
}

func (a *app) eventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events <contract-id>",
		Short: "Show the create and archive events of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.ledger()
			if err != nil {
				return err
			}
			events, err := client.GetEventsByContractID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(events.Raw)
		},
	}
}

func (a *app) treeCommand() *cobra.Command {
	var (
		eventFormat string
		includeBlob bool
		raw         bool
	)
	cmd := &cobra.Command{
		Use:   "tree <offset|update-id>",
		Short: "Show a transaction tree by offset or update id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.ledger()
			if err != nil {
				return err
			}

			var response *jsonapi.TransactionTreeResponse
			if display.Classify(args[0]) == display.Offset {
				response, err = client.GetTransactionTreeByOffset(cmd.Context(), args[0])
			} else {
				options := jsonapi.TreeOptions{EventFormat: eventFormat}
				if cmd.Flags().Changed("include-created-event-blob") {
					options.IncludeCreatedEventBlob = &includeBlob
				}
				response, err = client.GetTransactionTreeByID(cmd.Context(), args[0], options)
			}
			if err != nil {
				return err
			}
			if raw {
				return a.printJSON(response.Raw)
			}
			return display.RenderTree(a.stdout, response.Transaction)
		},
	}
	cmd.Flags().StringVar(&eventFormat, "event-format", "", "event format for update id lookups: verbose or minimal")
	cmd.Flags().BoolVar(&includeBlob, "include-created-event-blob", false, "include created event blobs")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the ledger response as JSON")
	return cmd
}

func (a *app) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <update-id>",
		Short: "Show an update with verbose events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.ledger()
			if err != nil {
				return err
			}
			update, err := client.GetUpdateByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(update)
		},
	}
}

func (a *app) balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the validator wallet balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.validator()
			if err != nil {
				return err
			}
			balance, err := client.GetWalletBalance(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Round\t%d\n", balance.Round)
			fmt.Fprintf(w, "Unlocked\t%s\n", display.FormatDecimal(balance.EffectiveUnlockedQty))
			fmt.Fprintf(w, "Locked\t%s\n", display.FormatDecimal(balance.EffectiveLockedQty))
			fmt.Fprintf(w, "Holding fees\t%s\n", display.FormatDecimal(balance.TotalHoldingFees))
			fmt.Fprintf(w, "Total\t%s\n", display.FormatDecimal(balance.Total()))
			return w.Flush()
		},
	}
}
