package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/intcode/vm"
	"github.com/chazu/intcode/vm/tracefile"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		input     int64
		capacity  int
		tracePath string
		profile   bool
	)
	cmd := &cobra.Command{
		Use:   "run [program]",
		Short: "Run a program on a single engine",
		Long: `Runs one engine. With --input the program reads that single value;
otherwise INPUT prompts on stderr and reads one integer per line from stdin.
Every OUTPUT value is printed on its own line.

Exits with status 2 if the program hits an instruction it cannot decode.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, path, err := c.loadProgram(args)
			if err != nil {
				return err
			}
			engine, err := vm.New(c.capacity(cmd, capacity), program)
			if err != nil {
				return err
			}
			engine.SetName("main")

			if cmd.Flags().Changed("input") {
				engine.SetInput(vm.OneShot(input))
			} else {
				engine.SetInput(vm.Interactive(cmd.InOrStdin(), cmd.ErrOrStderr()))
			}
			engine.AddOutput(vm.WriterSink(cmd.OutOrStdout()))

			var tracers []vm.Tracer
			var prof *vm.Profiler
			if profile {
				prof = vm.NewProfiler()
				tracers = append(tracers, prof)
			}
			if tracePath == "" {
				tracePath = c.cfg.TracePath()
			}
			tw, closeTrace, err := createTrace(tracePath, path)
			if err != nil {
				return err
			}
			defer closeTrace()
			if tw != nil {
				tracers = append(tracers, tw)
			}
			engine.SetTracer(vm.MultiTracer(tracers...))

			code, runErr := engine.Run(cmd.Context())
			if prof != nil {
				fmt.Fprint(cmd.ErrOrStderr(), prof.String())
			}
			if err := closeTrace(); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if code == vm.ExitFault {
				word, _ := engine.ReadMemory(engine.Pointer())
				return &exitError{code: 2, err: fmt.Errorf("program faulted at %d on word %d", engine.Pointer(), word)}
			}
			log.Infof("%s halted", path)
			return nil
		},
	}
	cmd.Flags().Int64Var(&input, "input", 0, "single value for INPUT instead of reading stdin")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "memory cells (0 = program length)")
	cmd.Flags().StringVar(&tracePath, "trace", "", "write a CBOR execution trace to this file")
	cmd.Flags().BoolVar(&profile, "profile", false, "print per-opcode instruction counts to stderr")
	return cmd
}

// createTrace opens a trace writer at path. With an empty path it returns a
// nil writer. The returned close function is safe to call more than once.
func createTrace(path, label string) (*tracefile.Writer, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace file: %w", err)
	}
	w, err := tracefile.NewWriter(f, label)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	closed := false
	closeFn := func() error {
		if closed {
			return nil
		}
		closed = true
		if err := w.Err(); err != nil {
			f.Close()
			return err
		}
		log.Infof("wrote %d trace events to %s", w.Count(), path)
		return f.Close()
	}
	return w, closeFn, nil
}
