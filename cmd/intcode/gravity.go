package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/intcode/vm"
)

// errNoPair is returned when no noun and verb produce the target.
var errNoPair = errors.New("no noun/verb pair produces the target")

// gravityResult patches addresses 1 and 2 with noun and verb, runs the
// program without I/O and returns the value left at address 0.
func gravityResult(ctx context.Context, program []int64, capacity int, noun, verb int64) (int64, error) {
	engine, err := vm.New(capacity, program)
	if err != nil {
		return 0, err
	}
	if err := engine.WriteMemory(1, noun); err != nil {
		return 0, err
	}
	if err := engine.WriteMemory(2, verb); err != nil {
		return 0, err
	}
	code, err := engine.Run(ctx)
	if err != nil {
		return 0, err
	}
	if code == vm.ExitFault {
		return 0, fmt.Errorf("noun %d verb %d: program faulted at %d", noun, verb, engine.Pointer())
	}
	return engine.ReadMemory(0)
}

// findNounVerb tries every noun and verb in 0..99 and returns the first
// pair whose result is target. Candidates that fault or fail are skipped.
func findNounVerb(ctx context.Context, program []int64, capacity int, target int64) (int64, int64, error) {
	for noun := int64(0); noun <= 99; noun++ {
		for verb := int64(0); verb <= 99; verb++ {
			if err := ctx.Err(); err != nil {
				return 0, 0, err
			}
			got, err := gravityResult(ctx, program, capacity, noun, verb)
			if err != nil {
				log.Debugf("skipping noun %d verb %d: %v", noun, verb, err)
				continue
			}
			if got == target {
				return noun, verb, nil
			}
		}
	}
	return 0, 0, errNoPair
}

func newGravityCmd(c *cli) *cobra.Command {
	var (
		noun, verb, target int64
		capacity           int
	)
	cmd := &cobra.Command{
		Use:   "gravity [program]",
		Short: "Patch a noun and verb into a program and report address 0",
		Long: `Writes --noun to address 1 and --verb to address 2, runs the program and
prints the value at address 0.

With --target, searches nouns and verbs from 0 to 99 for the pair whose
result equals the target and prints 100*noun+verb.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, _, err := c.loadProgram(args)
			if err != nil {
				return err
			}
			capacity := c.capacity(cmd, capacity)

			if cmd.Flags().Changed("target") {
				n, v, err := findNounVerb(cmd.Context(), program, capacity, target)
				if err != nil {
					return fmt.Errorf("target %d: %w", target, err)
				}
				log.Infof("noun %d verb %d produce %d", n, v, target)
				fmt.Fprintln(cmd.OutOrStdout(), 100*n+v)
				return nil
			}

			got, err := gravityResult(cmd.Context(), program, capacity, noun, verb)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), got)
			return nil
		},
	}
	cmd.Flags().Int64Var(&noun, "noun", 12, "value written to address 1")
	cmd.Flags().Int64Var(&verb, "verb", 2, "value written to address 2")
	cmd.Flags().Int64Var(&target, "target", 0, "search for the noun and verb producing this value")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "memory cells (0 = program length)")
	return cmd
}
