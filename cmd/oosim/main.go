// Package main provides the oosim command line interface.
package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"

	"github.com/sarchlab/oosim/timing/driver"
	"github.com/sarchlab/oosim/timing/latency"
	"github.com/sarchlab/oosim/timing/lsu"
	"github.com/sarchlab/oosim/timing/model"
	"github.com/sarchlab/oosim/timing/sched"
	"github.com/sarchlab/oosim/trace"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "oosim",
		Short: "oosim — out-of-order memory subsystem timing model",
	}

	var (
		lqSize        int
		sqSize        int
		noAlias       bool
		issueWidth    int
		dispatchWidth int
		modelPath     string
		timingPath    string
		storageSize   uint64
		verbose       bool
	)

	runCmd := &cobra.Command{
		Use:   "run <trace>",
		Short: "Simulate a memory trace through the load/store unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := trace.Load(args[0])
			if err != nil {
				return err
			}

			schedModel := model.DefaultSchedModel()
			if modelPath != "" {
				schedModel, err = model.LoadSchedModel(modelPath)
				if err != nil {
					return err
				}
			}

			timing := latency.DefaultTimingConfig()
			if timingPath != "" {
				timing, err = latency.LoadConfig(timingPath)
				if err != nil {
					return err
				}
			}
			if err := timing.Validate(); err != nil {
				return err
			}

			unit := lsu.NewUnit(schedModel, lqSize, sqSize, noAlias, prog.Registry)
			scheduler := sched.New(unit, latency.NewTableWithConfig(timing),
				sched.WithIssueWidth(issueWidth))

			engine := sim.NewSerialEngine()
			comp := driver.MakeBuilder().
				WithEngine(engine).
				WithScheduler(scheduler).
				WithStorage(mem.NewStorage(storageSize)).
				WithDispatchWidth(dispatchWidth).
				Build("Driver")
			comp.SetProgram(prog.Instructions)

			comp.TickLater()
			if err := engine.Run(); err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			stats := scheduler.Stats()
			fmt.Printf("Instructions: %d\n", stats.Retired)
			fmt.Printf("Cycles:       %d\n", stats.Cycles)
			fmt.Printf("IPC:          %.3f\n", stats.IPC())
			fmt.Printf("Stalls:       %d\n", stats.DispatchStalls)

			if verbose {
				driverStats := comp.Stats()
				fmt.Printf("Bytes loaded: %d\n", driverStats.BytesLoaded)
				fmt.Printf("Bytes stored: %d\n", driverStats.BytesStored)
				fmt.Print(unit.Dump())
			}

			return nil
		},
	}

	runCmd.Flags().IntVar(&lqSize, "lq", 0, "load queue size (0 = from model)")
	runCmd.Flags().IntVar(&sqSize, "sq", 0, "store queue size (0 = from model)")
	runCmd.Flags().BoolVar(&noAlias, "no-alias",
		false, "assume no aliasing when address metadata is missing")
	runCmd.Flags().IntVar(&issueWidth, "issue-width",
		0, "memory instructions issued per cycle (0 = unbounded)")
	runCmd.Flags().IntVar(&dispatchWidth, "dispatch-width",
		4, "memory instructions dispatched per cycle")
	runCmd.Flags().StringVar(&modelPath, "model",
		"", "path to a scheduling model JSON file")
	runCmd.Flags().StringVar(&timingPath, "timing",
		"", "path to a timing configuration JSON file")
	runCmd.Flags().Uint64Var(&storageSize, "mem-size",
		1<<20, "backing storage size in bytes")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	modelCmd := &cobra.Command{
		Use:   "model <path>",
		Short: "Write the default scheduling model to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return model.SaveSchedModel(model.DefaultSchedModel(), args[0])
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(modelCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
