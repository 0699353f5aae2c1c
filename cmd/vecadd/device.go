package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/LynnColeArt/vecadd"
)

func newDeviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Show the execution device and its detected features",
		RunE: func(cmd *cobra.Command, _ []string) error {
			props, err := vecadd.GetDeviceProperties(0)
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("property", "value").
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return lipgloss.NewStyle().Bold(true).Padding(0, 1)
					}
					return lipgloss.NewStyle().Padding(0, 1)
				}).
				Row("name", props.Name).
				Row("devices", strconv.Itoa(vecadd.GetDeviceCount())).
				Row("cores", strconv.Itoa(props.NumCores)).
				Row("max threads", strconv.Itoa(props.MaxThreads)).
				Row("memory", humanize.IBytes(props.TotalMem)).
				Row("features", props.Features).
				Row("add path (float32)", vecadd.BestAddImplementation(vecadd.Float32)).
				Row("add path (float64)", vecadd.BestAddImplementation(vecadd.Float64)).
				Row("add path (float16)", vecadd.BestAddImplementation(vecadd.Float16)).
				Row("workers", strconv.Itoa(activeCfg.Kernel.Workers)).
				Row("block size", strconv.Itoa(activeCfg.Kernel.BlockSize)).
				Row("version", version())

			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}
