package main

import (
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/vecadd"
	"github.com/LynnColeArt/vecadd/internal/config"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "vecadd",
		Short:         "Block-parallel vector add: run, benchmark and compare",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			activeCfg = loaded
			klog.V(1).Infof("config: %+v", loaded)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newDeviceCmd())
	cmd.AddCommand(newSessionsCmd())

	return cmd
}

func version() string {
	v, _ := vecadd.Version()
	if v == "" {
		return "(devel)"
	}
	return v
}

// newContext creates the execution context described by cfg.
func newContext(cfg config.Config) *vecadd.Context {
	return vecadd.NewContext(vecadd.WithWorkers(cfg.Kernel.Workers))
}
