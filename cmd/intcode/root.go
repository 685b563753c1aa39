package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/vm"
)

var log = commonlog.GetLogger("intcode")

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	verbosity  int
	logFile    string

	cfg *manifest.Manifest
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "intcode",
		Short: "Run Intcode programs and search amplifier phase settings",
		Long: `intcode executes programs for the Intcode virtual machine and wires
several engines into amplifier chains or feedback rings to find the phase
setting that produces the strongest signal.

Settings are read from --config, or from the nearest intcode.toml found
walking up from the current directory.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to intcode.toml")
	root.PersistentFlags().CountVarP(&c.verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	root.PersistentFlags().StringVar(&c.logFile, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(
		newRunCmd(c),
		newGravityCmd(c),
		newAmplifyCmd(c),
		newDisasmCmd(c),
		newTraceCmd(c),
		newRunsCmd(c),
	)
	return root
}

// setup loads configuration and configures logging.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	var err error
	if c.configPath != "" {
		c.cfg, err = manifest.LoadFile(c.configPath)
	} else {
		c.cfg, err = manifest.FindAndLoad(".")
	}
	if err != nil {
		return err
	}
	if c.cfg == nil {
		c.cfg = manifest.Default()
	}

	verbosity := c.verbosity
	if c.cfg.Log.Verbosity > verbosity {
		verbosity = c.cfg.Log.Verbosity
	}
	logFile := c.logFile
	if logFile == "" {
		logFile = c.cfg.LogFilePath()
	}
	if logFile != "" {
		commonlog.Configure(verbosity, &logFile)
	} else {
		commonlog.Configure(verbosity, nil)
	}

	if c.cfg.Dir != "" {
		log.Debugf("loaded configuration from %s", c.cfg.Dir)
	}
	return nil
}

// loadProgram reads the program named on the command line, falling back to
// [program].path.
func (c *cli) loadProgram(args []string) ([]int64, string, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		path = c.cfg.ProgramPath()
	}
	if path == "" {
		return nil, "", fmt.Errorf("no program given and [program].path is not set")
	}
	program, err := vm.LoadProgramFile(path)
	if err != nil {
		return nil, path, err
	}
	log.Infof("loaded %s (%d cells)", path, len(program))
	return program, path, nil
}

// capacity returns the flag value if set, otherwise [program].capacity.
func (c *cli) capacity(cmd *cobra.Command, flag int) int {
	if cmd.Flags().Changed("capacity") {
		return flag
	}
	return c.cfg.Program.Capacity
}
