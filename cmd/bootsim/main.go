// Command bootsim runs the dual-bank bootloader against simulated flash kept
// in a state directory, one boot pass per invocation.
//
// The state directory holds:
//
//	external.bin  external flash (sections and image slots)
//	internal.bin  internal flash (application region and factory package)
//	retained.bin  retained RAM holding the boot cache; removed by power-cycle
//
// Usage:
//
//	bootsim init
//	bootsim stage --slot A --file app.bin --version 1.2.0
//	bootsim boot -v=1 -logtostderr
//	bootsim mark --slot A --state full
//	bootsim power-cycle
//	bootsim inspect
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/moffa90/go-dualboot/config"
	"github.com/spf13/cobra"
)

var (
	stateDir   string
	configPath string
	metricsOut string

	profile config.Profile
)

var rootCmd = &cobra.Command{
	Use:           "bootsim",
	Short:         "Simulate the dual-bank A/B bootloader on file-backed flash",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog reads its settings from the standard flag set.
		if err := flag.CommandLine.Parse(nil); err != nil {
			return err
		}
		p := config.Default()
		if configPath != "" {
			var err error
			if p, err = config.Load(configPath); err != nil {
				return err
			}
		}
		if stateDir != "" {
			p.StateDir = stateDir
		}
		profile = p
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory holding the simulated flash (overrides the profile)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML device profile")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "write boot metrics to this file in the Prometheus text format")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		glog.Exit(err)
	}
}
