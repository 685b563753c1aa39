package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazu/intcode/ledger"
	"github.com/chazu/intcode/vm"
	"github.com/chazu/intcode/vm/tracefile"
)

func newDisasmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm [program]",
		Short: "Print a disassembly listing of a program",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, _, err := c.loadProgram(args)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), vm.Disassemble(program))
			return nil
		},
	}
}

func newTraceCmd(c *cli) *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "trace <file>",
		Short: "Dump a CBOR execution trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}
			defer f.Close()
			return dumpTrace(cmd.OutOrStdout(), f, engine)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "only show events from this engine")
	return cmd
}

func dumpTrace(out io.Writer, r io.Reader, engine string) error {
	tr, err := tracefile.NewReader(r)
	if err != nil {
		return err
	}
	if tr.Header.Program != "" {
		fmt.Fprintf(out, "; trace of %s\n", tr.Header.Program)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENGINE\tSEQ\tADDR\tEVENT\tOP\tVALUE")
	for {
		ev, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tw.Flush()
			return err
		}
		if engine != "" && ev.Engine != engine {
			continue
		}
		value := ""
		if ev.Kind == vm.EventInput || ev.Kind == vm.EventOutput {
			value = fmt.Sprint(ev.Value)
		}
		fmt.Fprintf(tw, "%s\t%d\t%04d\t%s\t%s\t%s\n", ev.Engine, ev.Seq, ev.Pointer, ev.Kind, ev.Op, value)
	}
	return tw.Flush()
}

func newRunsCmd(c *cli) *cobra.Command {
	var (
		ledgerPath string
		runID      string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List searches recorded in a ledger",
		Long: `Lists the amplifier searches stored in a ledger database, newest first.
With --run, lists the trials of one search.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ledgerPath == "" {
				ledgerPath = c.cfg.LedgerPath()
			}
			if ledgerPath == "" {
				return fmt.Errorf("no ledger given and [ledger].path is not set")
			}
			l, err := ledger.Open(ledgerPath)
			if err != nil {
				return err
			}
			defer l.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				if _, err := l.Run(runID); err != nil {
					return fmt.Errorf("%s: %w", runID, err)
				}
				trials, err := l.Trials(runID)
				if err != nil {
					return err
				}
				if format == "yaml" {
					return encodeYAML(out, trials)
				}
				return writeTrials(out, trials)
			}

			runs, err := l.Runs()
			if err != nil {
				return err
			}
			if format == "yaml" {
				return encodeYAML(out, runs)
			}
			return writeRuns(out, runs)
		},
	}
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "ledger database")
	cmd.Flags().StringVar(&runID, "run", "", "list the trials of this run")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or yaml")
	return cmd
}

func encodeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeRuns(out io.Writer, runs []ledger.RunRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTOPOLOGY\tSTATUS\tBEST\tPHASES\tTRIALS")
	for _, r := range runs {
		best := "-"
		if r.Best != nil {
			best = fmt.Sprint(*r.Best)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Topology, r.Status,
			best, joinValues(r.Phases), r.Completed, r.Trials)
	}
	return tw.Flush()
}

func writeTrials(out io.Writer, trials []ledger.TrialRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tPHASES\tSIGNAL\tDURATION\tERROR")
	for _, t := range trials {
		signal := "-"
		if t.Signal != nil {
			signal = fmt.Sprint(*t.Signal)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.Seq, joinValues(t.Phases), signal, t.Duration, t.Error)
	}
	return tw.Flush()
}
