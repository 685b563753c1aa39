package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/chazu/intcode/amplifier"
	"github.com/chazu/intcode/ledger"
)

// report is the printable outcome of an amplify run.
type report struct {
	Program   string   `yaml:"program"`
	Topology  string   `yaml:"topology"`
	Best      int64    `yaml:"best"`
	Phases    []int64  `yaml:"phases,flow"`
	Trials    int      `yaml:"trials"`
	Completed int      `yaml:"completed"`
	Failed    int      `yaml:"failed"`
	Duration  string   `yaml:"duration"`
	RunID     string   `yaml:"run_id,omitempty"`
	Metrics   []metric `yaml:"metrics,omitempty"`
}

type metric struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
	Value  float64           `yaml:"value"`
}

func newReport(path string, res *amplifier.Result) report {
	return report{
		Program:   path,
		Topology:  res.Topology.String(),
		Best:      res.Best,
		Phases:    res.Phases,
		Trials:    res.Trials,
		Completed: res.Completed,
		Failed:    res.Failed,
		Duration:  res.Duration.Round(time.Microsecond).String(),
	}
}

func (r report) write(w io.Writer, format string) error {
	switch format {
	case "yaml":
		if err := encodeYAML(w, r); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return nil
	case "text", "":
		fmt.Fprintf(w, "best signal: %d\n", r.Best)
		fmt.Fprintf(w, "phases:      %s\n", joinValues(r.Phases))
		fmt.Fprintf(w, "topology:    %s\n", r.Topology)
		fmt.Fprintf(w, "trials:      %d (%d completed, %d failed) in %s\n",
			r.Trials, r.Completed, r.Failed, r.Duration)
		if r.RunID != "" {
			fmt.Fprintf(w, "ledger run:  %s\n", r.RunID)
		}
		for _, m := range r.Metrics {
			fmt.Fprintf(w, "%s%s %g\n", m.Name, formatLabels(m.Labels), m.Value)
		}
		return nil
	}
	return fmt.Errorf("unknown format %q (want text or yaml)", format)
}

func joinValues(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	var parts []string
	for _, k := range []string{"topology", "result"} {
		if v, ok := labels[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%q", k, v))
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// gatherMetrics flattens counters and gauges from reg. Histograms are
// reported as their sample count.
func gatherMetrics(reg *prometheus.Registry) ([]metric, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	var out []metric
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			var value float64
			name := fam.GetName()
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				name += "_count"
				value = float64(m.GetHistogram().GetSampleCount())
			}
			out = append(out, metric{Name: name, Labels: labels, Value: value})
		}
	}
	return out, nil
}

func newAmplifyCmd(c *cli) *cobra.Command {
	var (
		feedback    bool
		ledgerPath  string
		format      string
		showMetrics bool
		tracePath   string
		capacity    int
	)
	cmd := &cobra.Command{
		Use:   "amplify [program]",
		Short: "Search amplifier phase settings for the strongest signal",
		Long: `Runs the program on every stage of an amplifier pipeline once per phase
permutation and reports the best final signal.

Without --feedback the stages form a chain over phases 0-4; with it the last
stage feeds the first and phases come from 5-9. Ranges, stage count, channel
capacity, trial timeout and fault policy come from intcode.toml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want text or yaml)", format)
			}
			program, path, err := c.loadProgram(args)
			if err != nil {
				return err
			}
			opts, err := c.cfg.AmplifierOptions(feedback)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("capacity") {
				opts.Capacity = capacity
			}

			reg := prometheus.NewRegistry()
			opts.Metrics = amplifier.NewMetrics(reg)

			if tracePath == "" {
				tracePath = c.cfg.TracePath()
			}
			tw, closeTrace, err := createTrace(tracePath, path)
			if err != nil {
				return err
			}
			defer closeTrace()
			if tw != nil {
				opts.Tracer = tw
			}

			if ledgerPath == "" {
				ledgerPath = c.cfg.LedgerPath()
			}
			var run *ledger.Run
			if ledgerPath != "" {
				l, err := ledger.Open(ledgerPath)
				if err != nil {
					return err
				}
				defer l.Close()
				run, err = l.BeginRun(program, opts.Topology)
				if err != nil {
					return err
				}
				opts.Observer = run
			}

			res, searchErr := amplifier.Search(cmd.Context(), program, opts)
			if run != nil {
				if err := run.Finish(res, searchErr); err != nil {
					return err
				}
			}
			if err := closeTrace(); err != nil {
				return err
			}
			if searchErr != nil {
				return searchErr
			}

			rep := newReport(path, res)
			if run != nil {
				rep.RunID = run.ID
			}
			if showMetrics {
				if rep.Metrics, err = gatherMetrics(reg); err != nil {
					return err
				}
			}
			return rep.write(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().BoolVar(&feedback, "feedback", false, "connect the last stage back to the first")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "record the search in this SQLite ledger")
	cmd.Flags().StringVar(&format, "format", "text", "report format: text or yaml")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "include search metrics in the report")
	cmd.Flags().StringVar(&tracePath, "trace", "", "write a CBOR trace of every stage to this file")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "memory cells per stage (0 = program length)")
	return cmd
}
