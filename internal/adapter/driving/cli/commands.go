package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AustralianBioCommons/gen3metadata/internal/adapter/driven/sqlite"
	"github.com/AustralianBioCommons/gen3metadata/internal/application"
	"github.com/AustralianBioCommons/gen3metadata/internal/domain/port/driven"
)

func (a *app) urlCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the commons base URL for the key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cred, err := a.loader().LoadCredential(cmd.Context())
			if err != nil {
				return err
			}
			baseURL, err := a.client().ResolveBaseURL(cred)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, baseURL)
			return err
		},
	}
}

func (a *app) authCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Exchange the key file for an access token",
		Long:  "Exchange the key file for an access token and report the commons it is valid for. The token itself is never printed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.session()
			if _, err := s.Authenticate(cmd.Context()); err != nil {
				return logged(err)
			}
			_, err := fmt.Fprintf(a.stdout, "authenticated against %s\n", s.BaseURL())
			return err
		},
	}
}

func (a *app) fetchCommand() *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "fetch PROGRAM PROJECT NODE",
		Short: "Export one node of a project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			write, ok := writers[format]
			if !ok {
				return fmt.Errorf("unknown format %q (want json, csv or table)", format)
			}
			ctx := cmd.Context()

			var opts []application.Option
			if a.cfg.HasDB() {
				db, err := sqlite.Open(ctx, a.cfg.DBPath)
				if err != nil {
					return fmt.Errorf("open export database: %w", err)
				}
				defer db.Close()
				opts = append(opts, application.WithTableStore(sqlite.NewTableRepo(db)))
			}

			s := a.session(opts...)
			if _, err := s.Authenticate(ctx); err != nil {
				return logged(err)
			}

			ds, err := s.FetchData(ctx, args[0], args[1], args[2])
			if err != nil {
				return logged(err)
			}

			if a.cfg.HasDB() {
				if _, err := s.ExportTables(ctx); err != nil {
					return err
				}
			}

			var w io.Writer = a.stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := write(w, s, ds.Key.String()); err != nil {
				return fmt.Errorf("write %s output: %w", format, err)
			}
			if out != "" {
				a.logger.Info("output written", "path", out, "format", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, csv or table")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write output to a file instead of stdout")
	cmd.Flags().StringVar(&a.cfg.DBPath, "db", a.cfg.DBPath, "also save the flattened table to this SQLite file")
	return cmd
}

func (a *app) exportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List tables saved by fetch --db, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.HasDB() {
				return errors.New("no export database: set --db or GEN3_DB_PATH")
			}
			db, err := sqlite.Open(cmd.Context(), a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open export database: %w", err)
			}
			defer db.Close()

			return a.listExports(cmd.Context(), sqlite.NewTableRepo(db))
		},
	}

	cmd.Flags().StringVar(&a.cfg.DBPath, "db", a.cfg.DBPath, "SQLite file written by fetch --db")
	return cmd
}

func (a *app) listExports(ctx context.Context, store driven.TableStore) error {
	records, err := store.ListExports(ctx)
	if err != nil {
		return err
	}
	return writeExports(a.stdout, records)
}
