package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/darpkg"
)

func (a *app) uploadCommand() *cobra.Command {
	var (
		srcDir  string
		darPath string
	)
	cmd := &cobra.Command{
		Use:   "upload <package>",
		Short: "Build a Daml package and upload its DAR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packageName := args[0]
			verbose := a.v.GetBool("verbose")

			client, err := a.ledger()
			if err != nil {
				return err
			}

			if darPath == "" {
				packagePath, err := darpkg.Build(cmd.Context(), darpkg.BuildOptions{
					SrcDir:  srcDir,
					Package: packageName,
					Verbose: verbose,
					Stdout:  a.stdout,
					Stderr:  a.stderr,
					Runner:  a.buildRunner,
					Logger:  a.logger,
				})
				if err != nil {
					return err
				}
				darPath, err = darpkg.FindDAR(packagePath, packageName, a.logger)
				if err != nil {
					return err
				}
			}
			a.logger.Info("uploading DAR", zap.String("path", darPath), zap.String("provider", client.Provider().Name))

			result, err := client.UploadPackage(cmd.Context(), darPath)
			if err != nil {
				return errors.WithMessagef(err, "failed to upload DAR file %s", darPath)
			}
			fmt.Fprintf(a.stdout, "uploaded package %s from %s\n", packageName, darPath)
			if verbose && len(result) > 0 {
				return a.printJSON(result)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&srcDir, "src-dir", "../src", "directory holding one directory per Daml package")
	cmd.Flags().StringVar(&darPath, "dar", "", "upload this DAR instead of building the package")
	return cmd
}
