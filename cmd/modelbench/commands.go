package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/YuminosukeSato/modelbench/pipeline"
	"github.com/YuminosukeSato/modelbench/pkg/log"
	"github.com/YuminosukeSato/modelbench/registry"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "modelbench",
		Short:         "Compare classifiers on the Abundance target",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newModelsCommand())
	return root
}

type runFlags struct {
	config   string
	data     string
	out      string
	sink     string
	logLevel string
	logJSON  bool
}

func newRunCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train, evaluate and plot every model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			if err := log.Setup(log.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cmd.ErrOrStderr(),
			}); err != nil {
				return err
			}
			if f.config != "" {
				log.GetLoggerWithName("cli").Info("Configuration loaded", log.ConfigPathKey, f.config)
			}

			runner, err := pipeline.NewRunner(cfg, pipeline.WithOutput(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			_, err = runner.Run(cmd.Context())
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.config, "config", "c", "", "YAML configuration file")
	flags.StringVar(&f.data, "data", "", "input CSV (overrides data.path)")
	flags.StringVarP(&f.out, "out", "o", "", "plot directory (overrides render.output_dir)")
	flags.StringVar(&f.sink, "sink", "", "figure sink: file, record or none (overrides render.sink)")
	flags.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	flags.BoolVar(&f.logJSON, "log-json", false, "write logs as JSON lines")
	return cmd
}

// resolveConfig loads the config file, if any, and applies flag overrides.
func resolveConfig(cmd *cobra.Command, f runFlags) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if f.config != "" {
		loaded, err := pipeline.LoadConfig(f.config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	changed := cmd.Flags().Changed
	if changed("data") {
		cfg.Data.Path = f.data
	}
	if changed("out") {
		cfg.Render.OutputDir = f.out
	}
	if changed("sink") {
		cfg.Render.Sink = f.sink
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if f.logJSON {
		cfg.Log.Format = "json"
	}
	return cfg, cfg.Validate()
}

func newModelsCommand() *cobra.Command {
	var seed int64
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the compared models and their diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printModels(cmd.OutOrStdout(), registry.Seeded(seed))
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", registry.DefaultSeed, "random_state of the seeded models")
	return cmd
}

func printModels(w io.Writer, variants []registry.Variant) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMODEL\tKIND\tFEATURES\tDIAGNOSTICS")
	for i, v := range variants {
		diags := append([]string{"confusion_matrix"}, v.Caps.Names()...)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, v.Name, v.Kind, v.Features, strings.Join(diags, ","))
	}
	return tw.Flush()
}
