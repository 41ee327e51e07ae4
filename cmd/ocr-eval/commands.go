package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-robustness/internal/ocr"
	"github.com/ironsheep/ocr-robustness/internal/pipeline"
	"github.com/ironsheep/ocr-robustness/internal/server"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "ocr-eval",
		Short: "Evaluate OCR robustness against controlled image perturbations",
		Long: `ocr-eval perturbs labeled source images (scale, blur, brightness,
salt-and-pepper noise), runs text detection on every variant, scores the
result against ground truth and aggregates accuracy per perturbation.

Settings come from an optional YAML file, a .env file and OCR_EVAL_*
environment variables (e.g. OCR_EVAL_LOG_LEVEL=debug).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	// withApp wires the pipeline for commands that need it.
	withApp := func(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, args, a)
		}
	}

	root.AddCommand(
		newServeCmd(withApp),
		newPerturbCmd(withApp),
		newDetectCmd(withApp),
		newMetricsCmd(withApp),
		newRunCmd(withApp),
		newVersionCmd(),
	)
	return root
}

type appRunner func(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error

func newServeCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline as MCP tools over stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			a.logger.Info("MCP server starting", "version", Version, "build_time", BuildTime, "commit", GitCommit)
			srv := server.New(a.pipeline, Version, a.logger)
			if err := srv.Run(cmd.Context()); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		}),
	}
}

func newPerturbCmd(withApp appRunner) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "perturb KEY...",
		Short: "Perturb source images and store their variants",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			for _, key := range args {
				res, err := a.pipeline.Preprocess(cmd.Context(), pipeline.PreprocessRequest{Key: key, RunID: runID})
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id recorded with each preprocessing record")
	return cmd
}

func newDetectCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "detect KEY...",
		Short: "Run text detection on stored variants and save the scored records",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			for _, key := range args {
				rec, err := a.pipeline.Detect(cmd.Context(), pipeline.DetectRequest{Key: key})
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), rec); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

func newMetricsCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Aggregate detection records into metrics.json",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			report, url, err := a.pipeline.GatherMetrics(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("report written", "url", url)
			data, err := report.Indent()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}),
	}
}

func newRunCmd(withApp appRunner) *cobra.Command {
	var gather bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate every source image end to end",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			res, err := a.pipeline.EvaluateCorpus(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !gather {
				return nil
			}
			if !res.Complete {
				a.logger.Warn("corpus run was incomplete, metrics may fail the integrity check")
			}
			report, url, err := a.pipeline.GatherMetrics(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("report written", "url", url, "accuracy", float64(report.Accuracy))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&gather, "gather", true, "gather metrics after the run")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ocr-eval %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Tesseract:  %s\n", ocr.Version())
			return nil
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
