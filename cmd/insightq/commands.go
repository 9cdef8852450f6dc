package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vegasq/insightq/dataset"
	"github.com/vegasq/insightq/ingest"
	"github.com/vegasq/insightq/internal/config"
	"github.com/vegasq/insightq/internal/logging"
	"github.com/vegasq/insightq/internal/server"
	"github.com/vegasq/insightq/internal/service"
	"github.com/vegasq/insightq/output"
)

// app holds what every command needs once flags and config are resolved
type app struct {
	cfg    *config.Config
	logger log.Logger
	svc    *service.Service
	pool   *ants.Pool
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Release()
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	root := &cobra.Command{
		Use:           "insightq",
		Short:         "Query course sections and campus rooms datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("data-dir", "", "directory holding dataset snapshots")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "log format: logfmt, json")
	bindFlag(v, "data.dir", root, "data-dir")
	bindFlag(v, "log.level", root, "log-level")
	bindFlag(v, "log.format", root, "log-format")

	setup := func(cmd *cobra.Command) (*app, error) {
		return newApp(v, configPath, cmd.ErrOrStderr())
	}

	root.AddCommand(
		newServeCmd(v, setup),
		newAddCmd(setup),
		newRemoveCmd(setup),
		newListCmd(setup),
		newQueryCmd(setup),
		newDescribeCmd(setup),
	)
	return root
}

// bindFlag lets a persistent flag override key only when it is set
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

func newApp(v *viper.Viper, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logOut, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	store, err := dataset.Open(cfg.Data.Dir, dataset.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithIngestConcurrency(cfg.Ingest.Concurrency),
	}
	if cfg.Query.Workers > 0 {
		a.pool, err = ants.NewPool(cfg.Query.Workers)
		if err != nil {
			return nil, fmt.Errorf("failed to create query pool: %w", err)
		}
		opts = append(opts, service.WithQueryPool(a.pool, cfg.Query.ParallelThreshold))
	}

	geocoder := ingest.NewHTTPGeocoder(cfg.Geo.BaseURL, cfg.Geo.Timeout, ingest.WithRateLimit(cfg.Geo.Rate, 1))
	a.svc = service.New(store, geocoder, opts...)
	return a, nil
}

func newServeCmd(v *viper.Viper, setup func(*cobra.Command) (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.New(a.svc, a.cfg.HTTP, a.logger).Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :4321)")
	if err := v.BindPFlag("http.addr", cmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	return cmd
}

func newAddCmd(setup func(*cobra.Command) (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "add <id> <sections|rooms> <archive.zip>",
		Short: "Ingest a zip archive as a new dataset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ids, err := a.svc.AddDataset(cmd.Context(), args[0], args[1], data)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), ids)
		},
	}
}

func newRemoveCmd(setup func(*cobra.Command) (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.svc.RemoveDataset(args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), id)
		},
	}
}

func newListCmd(setup func(*cobra.Command) (*app, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := output.New(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			infos := a.svc.ListDatasets()
			rows := make([]map[string]interface{}, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, map[string]interface{}{
					"id":      info.ID,
					"kind":    string(info.Kind),
					"numRows": info.NumRows,
				})
			}
			return f.Format([]string{"id", "kind", "numRows"}, rows)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatTable, "output format: jsonl, json, csv, table")
	return cmd
}

func newQueryCmd(setup func(*cobra.Command) (*app, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "query <file|->",
		Short: "Evaluate a JSON query read from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.New(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			var raw []byte
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			columns, rows, err := a.svc.Query(raw)
			if err != nil {
				return err
			}
			return f.Format(columns, rows)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatJSONL, "output format: jsonl, json, csv, table")
	return cmd
}

func newDescribeCmd(setup func(*cobra.Command) (*app, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "describe <id>",
		Short: "Show the columns of a dataset snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.New(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := dataset.ValidateID(args[0]); err != nil {
				return err
			}
			_, columns, err := dataset.DescribeSnapshot(dataset.SnapshotPath(a.cfg.Data.Dir, args[0]))
			if err != nil {
				return err
			}
			rows := make([]map[string]interface{}, 0, len(columns))
			for _, c := range columns {
				rows = append(rows, map[string]interface{}{
					"name":          c.Name,
					"role":          c.Role,
					"physical_type": c.PhysicalType,
					"logical_type":  c.LogicalType,
				})
			}
			return f.Format([]string{"name", "role", "physical_type", "logical_type"}, rows)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatTable, "output format: jsonl, json, csv, table")
	return cmd
}

// writeResult prints v as a {"result": v} document, the HTTP response shape
func writeResult(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(map[string]interface{}{"result": v})
}
