package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"mrivolumestopng/pkg/batch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Convert every patient of the labeled and unlabeled datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.flushMetrics()

		labeledOnly, _ := cmd.Flags().GetBool("labeled-only")
		unlabeledOnly, _ := cmd.Flags().GetBool("unlabeled-only")
		if labeledOnly && unlabeledOnly {
			return fmt.Errorf("--labeled-only and --unlabeled-only are mutually exclusive")
		}

		opts := batch.Options{LabeledDir: a.cfg.Input.LabeledDir, UnlabeledDir: a.cfg.Input.UnlabeledDir}
		if labeledOnly {
			opts.UnlabeledDir = ""
		}
		if unlabeledOnly {
			opts.LabeledDir = ""
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		runner := batch.NewRunner(a.loader, a.conv, a.metrics, a.logger)
		summary, err := runner.Run(ctx, opts)
		if err != nil {
			return err
		}

		a.logger.Info("batch completed",
			"labeled", summary.Processed[batch.DatasetLabeled],
			"unlabeled", summary.Processed[batch.DatasetUnlabeled],
			"failed", len(summary.Failures),
			"elapsed", summary.Elapsed)
		for _, f := range summary.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s %s: %v\n", f.Dataset, f.PatientID, f.Err)
		}
		if summary.Failed() {
			return fmt.Errorf("%d patient(s) failed", len(summary.Failures))
		}
		return nil
	},
}

var patientCmd = &cobra.Command{
	Use:   "patient <id>",
	Short: "Convert a single patient",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.flushMetrics()

		dataset, root := batch.DatasetLabeled, a.cfg.Input.LabeledDir
		if unlabeled, _ := cmd.Flags().GetBool("unlabeled"); unlabeled {
			dataset, root = batch.DatasetUnlabeled, a.cfg.Input.UnlabeledDir
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		runner := batch.NewRunner(a.loader, a.conv, a.metrics, a.logger)
		return runner.RunPatient(ctx, dataset, root, args[0])
	},
}

func init() {
	runCmd.Flags().Bool("labeled-only", false, "Only process the labeled dataset")
	runCmd.Flags().Bool("unlabeled-only", false, "Only process the unlabeled dataset")
	patientCmd.Flags().Bool("unlabeled", false, "Look the patient up in the unlabeled dataset")
	rootCmd.AddCommand(runCmd, patientCmd)
}
