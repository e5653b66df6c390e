// Package cli is the command-line driving adapter. It wires the key file
// loader and the Gen3 HTTP client into an application Session per command.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AustralianBioCommons/gen3metadata/internal/adapter/driven/gen3"
	"github.com/AustralianBioCommons/gen3metadata/internal/adapter/driven/keyfile"
	"github.com/AustralianBioCommons/gen3metadata/internal/application"
	"github.com/AustralianBioCommons/gen3metadata/internal/config"
)

type app struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// NewRootCommand builds the gen3metadata command tree. Values in cfg become
// flag defaults, so flags override the environment. Data is written to
// stdout and logs to stderr.
func NewRootCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	a := &app{cfg: *cfg, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "gen3metadata",
		Short:         "Fetch and flatten metadata from a Gen3 data commons",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			a.logger = config.NewLogger(a.stderr, a.cfg.LogLevel)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfg.KeyFile, "key-file", a.cfg.KeyFile, "path to the Gen3 credential file")
	pf.StringVar(&a.cfg.APIURL, "api-url", a.cfg.APIURL, "commons base URL (default: inferred from the api_key)")
	pf.StringVar(&a.cfg.APIVersion, "api-version", a.cfg.APIVersion, "submission API version")
	pf.DurationVar(&a.cfg.HTTPTimeout, "timeout", a.cfg.HTTPTimeout, "per-request HTTP timeout (0 for none)")
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(a.urlCommand(), a.authCommand(), a.fetchCommand(), a.exportsCommand())
	return root
}

func (a *app) loader() *keyfile.Loader {
	return keyfile.NewLoader(a.cfg.KeyFile, a.logger)
}

func (a *app) client() *gen3.Client {
	return gen3.NewClient(a.cfg.APIURL, a.cfg.HTTPTimeout, a.logger)
}

func (a *app) session(opts ...application.Option) *application.Session {
	opts = append([]application.Option{
		application.WithLogger(a.logger),
		application.WithAPIVersion(a.cfg.APIVersion),
	}, opts...)
	return application.NewSession(a.loader(), a.client(), opts...)
}
