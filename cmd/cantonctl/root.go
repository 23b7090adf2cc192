package main

import (
	"context"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/apiclient"
	"github.com/Fairmint/canton/pkg/auditlog"
	"github.com/Fairmint/canton/pkg/config"
	"github.com/Fairmint/canton/pkg/darpkg"
	"github.com/Fairmint/canton/pkg/jsonapi"
	"github.com/Fairmint/canton/pkg/shared"
	"github.com/Fairmint/canton/pkg/validator"
)

const (
	envPrefix     = "CANTON"
	defaultLogDir = "logs"
)

// app carries what the persistent pre-run sets up for every command.
type app struct {
	stdout io.Writer
	stderr io.Writer
	v      *viper.Viper
	getenv func(string) string

	logger    *zap.Logger
	providers *config.Providers
	audit     *auditlog.Writer

	// Test hooks.
	buildRunner darpkg.Runner
	onListen    func(net.Addr)
}

func newApp(stdout, stderr io.Writer, getenv func(string) string) *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return &app{stdout: stdout, stderr: stderr, v: v, getenv: getenv}
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:          "cantonctl",
		Short:        "Canton JSON API client, cap-table demo and explorer",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.String("config", "", "providers config file (YAML or JSON)")
	flags.String("provider", "", "provider name (defaults to the first configured provider)")
	flags.String("log-dir", defaultLogDir, "directory for request audit logs; empty disables them")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("log-format", "", "log format: console, json or logfmt")
	bindFlags(a.v, flags)

	root.AddCommand(
		a.demoCommand(),
		a.uploadCommand(),
		a.serveCommand(),
		a.providersCommand(),
		a.eventsCommand(),
		a.treeCommand(),
		a.updateCommand(),
		a.balanceCommand(),
	)
	return root
}

// execute runs the command line, then flushes the audit log and logger
// whether or not the command succeeded.
func (a *app) execute(ctx context.Context, args []string) error {
	cmd := a.command()
	if args != nil {
		cmd.SetArgs(args)
	}
	err := cmd.ExecuteContext(ctx)
	if closeErr := a.teardown(); err == nil {
		err = closeErr
	}
	return err
}

// bindFlags makes every flag in flags readable through v, which also
// resolves CANTON_<FLAG> environment variables.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(flag *pflag.Flag) {
		_ = v.BindPFlag(flag.Name, flag)
	})
}

func (a *app) setup() error {
	shared.LoadDotEnv()

	logger, err := shared.NewLogger(shared.LogOptions{
		Verbose: a.v.GetBool("verbose"),
		Format:  a.v.GetString("log-format"),
	})
	if err != nil {
		return err
	}
	a.logger = logger

	providers, err := config.Load(config.LoadOptions{
		ConfigFile: a.v.GetString("config"),
		Getenv:     a.getenv,
	})
	if err != nil {
		return err
	}
	a.providers = providers
	a.logger.Debug("loaded providers", zap.String("source", providers.Source()), zap.Strings("names", providers.Names()))

	if dir := strings.TrimSpace(a.v.GetString("log-dir")); dir != "" {
		audit, err := auditlog.New(auditlog.Config{Dir: dir, Logger: a.logger})
		if err != nil {
			return err
		}
		a.audit = audit
	}
	return nil
}

func (a *app) teardown() error {
	var err error
	if a.audit != nil {
		err = a.audit.Close()
		a.audit = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func (a *app) provider() (config.Provider, error) {
	return a.providers.Select(a.v.GetString("provider"))
}

func (a *app) clientConfig(provider config.Provider) apiclient.Config {
	return apiclient.Config{
		Provider: provider,
		AuditLog: a.audit,
		Logger:   a.logger,
	}
}

func (a *app) ledger(options ...jsonapi.Option) (*jsonapi.Client, error) {
	provider, err := a.provider()
	if err != nil {
		return nil, err
	}
	return jsonapi.New(a.clientConfig(provider), options...)
}

func (a *app) validator() (*validator.Client, error) {
	provider, err := a.provider()
	if err != nil {
		return nil, err
	}
	return validator.New(a.clientConfig(provider))
}

func (a *app) printJSON(raw []byte) error {
	indented, err := indentJSON(raw)
	if err != nil {
		return errors.Wrap(err, "failed to format response")
	}
	_, err = a.stdout.Write(append(indented, '\n'))
	return err
}
