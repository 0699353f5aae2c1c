package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/vecadd"
	"github.com/LynnColeArt/vecadd/internal/bench"
)

func newBenchCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure kernel and reference bandwidth across vector sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := activeCfg
			dtype, err := vecadd.ParseDType(cfg.Bench.DType)
			if err != nil {
				return err
			}

			ctx := newContext(cfg)
			defer ctx.Destroy()

			var progressOut io.Writer
			if progress {
				progressOut = cmd.ErrOrStderr()
			}

			report, err := bench.Run(cmd.Context(), ctx, bench.Options{
				MinExp:     cfg.Bench.MinExp,
				MaxExp:     cfg.Bench.MaxExp,
				Providers:  cfg.Bench.Providers,
				DType:      dtype,
				BlockSize:  cfg.Kernel.BlockSize,
				Warmup:     cfg.Bench.Warmup,
				Rep:        cfg.Bench.Rep,
				Seed:       cfg.Bench.Seed,
				FlushCache: cfg.Bench.FlushCache,
				Progress:   progressOut,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch cfg.Bench.Format {
			case "json":
				err = bench.FormatJSON(report, out)
			case "csv":
				err = bench.FormatCSV(report, out)
			default:
				bench.FormatTable(report, out)
			}
			if err != nil {
				return err
			}

			if cfg.Bench.SavePath != "" {
				paths, err := bench.SaveArtifacts(report, cfg.Bench.SavePath)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.ErrOrStderr(), "wrote", p)
				}
			}

			if cfg.Bench.SessionLog != "" {
				sl, err := bench.NewSessionLogger(cfg.Bench.SessionLog, "vecadd")
				if err != nil {
					return err
				}
				if err := sl.Log(report); err != nil {
					return err
				}
				klog.V(1).Infof("session logged to %s", sl.Path())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&progress, "progress", term.IsTerminal(int(os.Stderr.Fd())), "Show a progress bar on stderr")

	return cmd
}

