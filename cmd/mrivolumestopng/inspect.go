package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mrivolumestopng/pkg/config"
	"mrivolumestopng/pkg/metaimage"
	"mrivolumestopng/pkg/normalize"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mha>",
	Short: "Print shape and per-frame intensity range of an acquisition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := metaimage.NewReader().Read(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		shape := v.Shape()
		fmt.Fprintf(out, "%s: shape (%d, %d, %d), spacing %.3g x %.3g x %.3g mm\n",
			args[0], shape[0], shape[1], shape[2], v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z)
		for z := 0; z < v.Depth; z++ {
			s := normalize.Summarize(v.Frame(z))
			fmt.Fprintf(out, "frame %04d: min %g, max %g, mean %.3f\n", z+1, s.Min, s.Max, s.Mean)
		}
		return nil
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Write a default configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfigFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd, initConfigCmd)
}
