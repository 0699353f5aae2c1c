package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/LynnColeArt/vecadd"
)

// previewLen is how many leading and trailing elements run prints.
const previewLen = 4

func newRunCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Add two random vectors and check the kernel against the reference",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < 0 {
				return fmt.Errorf("--size must not be negative")
			}
			dtype, err := vecadd.ParseDType(activeCfg.Bench.DType)
			if err != nil {
				return err
			}

			ctx := newContext(activeCfg)
			defer ctx.Destroy()

			return runAdd(cmd.Context(), ctx, cmd.OutOrStdout(), dtype, size, activeCfg.Kernel.BlockSize, activeCfg.Bench.Seed)
		},
	}

	cmd.Flags().IntVar(&size, "size", 98432, "Number of elements")

	return cmd
}

func runAdd(cctx context.Context, ctx *vecadd.Context, w io.Writer, dtype vecadd.DType, size, blockSize int, seed uint64) error {
	x, err := ctx.Rand(dtype, size, seed)
	if err != nil {
		return err
	}
	y, err := ctx.Rand(dtype, size, seed+1)
	if err != nil {
		return err
	}

	expected, err := ctx.ReferenceAdd(x, y)
	if err != nil {
		return errors.Wrap(err, "reference add")
	}
	actual, ev, err := ctx.Add(x, y, vecadd.WithBlockSize(blockSize))
	if err != nil {
		return errors.Wrap(err, "kernel add")
	}
	if err := ev.WaitContext(cctx); err != nil {
		return err
	}

	fmt.Fprintf(w, "n=%d dtype=%s block=%d programs=%d\n", size, dtype, blockSize, vecadd.CDiv(size, blockSize))
	fmt.Fprintln(w, "reference:", preview(expected))
	fmt.Fprintln(w, "kernel:   ", preview(actual))

	diff, err := vecadd.MaxAbsDiff(expected, actual)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "The maximum difference between reference and kernel is %v\n", diff)

	result, err := vecadd.Verify(expected, actual, vecadd.DefaultTolerance())
	if err != nil {
		return err
	}
	if result.NumErrors > 0 {
		return errors.Errorf("kernel disagrees with reference\n%s", result)
	}
	return nil
}

// preview formats the first and last elements of b.
func preview(b *vecadd.Buffer) string {
	n := b.Len()
	format := func(from, to int) []string {
		parts := make([]string, 0, to-from)
		for i := from; i < to; i++ {
			parts = append(parts, fmt.Sprintf("%.4f", b.Float64At(i)))
		}
		return parts
	}
	if n <= 2*previewLen {
		return "[" + strings.Join(format(0, n), " ") + "]"
	}
	return "[" + strings.Join(format(0, previewLen), " ") + " ... " +
		strings.Join(format(n-previewLen, n), " ") + "]"
}
