package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abramin/calledges/internal/config"
	"github.com/abramin/calledges/internal/edges"
	"github.com/abramin/calledges/internal/runner"
)

const usage = "Usage: calledges <entry_file>"

// errUsage is returned when the entry argument is missing; the usage line has already been printed.
var errUsage = errors.New("missing entry file")

type options struct {
	cfgFile   string
	out       string
	db        string
	engine    string
	baseDir   string
	algorithm string
	indent    bool
	verbose   bool
	progress  bool
}

// NewRootCmd builds the calledges command.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "calledges <entry_file>",
		Short: "Extract caller/callee source ranges from a program's call graph",
		Long: `calledges builds a call graph for an entry file and prints every edge
between two user-written functions as JSON:

  [{"caller":{"file":...,"range":[start,end]},"callee":{"file":...,"range":[start,end]}}]

Files are relative to the base directory, which defaults to the entry file's
directory. JavaScript and HTML entries use the JavaScript engine; Go files and
directories use the Go engine.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				fmt.Fprintln(cmd.OutOrStdout(), usage)
				return errUsage
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			level := cfg.Logging.SlogLevel()
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			r := runner.New(cfg, logger)
			if opts.progress {
				r.SetProgressOutput(cmd.ErrOrStderr())
			}
			result, err := r.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return writeEdges(cmd.OutOrStdout(), cfg.Output, result.Edges)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (read only when given)")
	flags.StringVarP(&opts.out, "out", "o", "", "write JSON to this file instead of stdout")
	flags.StringVar(&opts.db, "db", "", "also store the edges in this SQLite database")
	flags.StringVar(&opts.engine, "engine", "", "analysis engine: auto, js or go")
	flags.StringVar(&opts.baseDir, "base-dir", "", "base directory (default: the entry file's directory)")
	flags.StringVar(&opts.algorithm, "algorithm", "", "Go call graph algorithm: cha, static or vta")
	flags.BoolVar(&opts.indent, "indent", false, "pretty-print the JSON output")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log dropped call sites and targets to stderr")
	flags.BoolVar(&opts.progress, "progress", false, "show a progress bar on stderr")

	return rootCmd
}

// apply lets explicitly set flags override the configuration file.
func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Path = o.out
	}
	if flags.Changed("db") {
		cfg.Store.Path = o.db
	}
	if flags.Changed("engine") {
		cfg.Engine.Name = o.engine
	}
	if flags.Changed("base-dir") {
		cfg.BaseDir = o.baseDir
	}
	if flags.Changed("algorithm") {
		cfg.Engine.Go.Algorithm = o.algorithm
	}
	if flags.Changed("indent") {
		cfg.Output.Indent = o.indent
	}
}

func writeEdges(stdout io.Writer, out config.OutputConfig, list []edges.Edge) error {
	if out.Path == "" {
		return edges.Write(stdout, list, out.Indent)
	}

	f, err := os.Create(out.Path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := edges.Write(f, list, out.Indent); err != nil {
		f.Close()
		return fmt.Errorf("writing output file: %w", err)
	}
	return f.Close()
}

// Execute runs the root command, reporting errors on stderr.
func Execute() error {
	rootCmd := NewRootCmd()
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errUsage) {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "calledges: %v\n", err)
	}
	return err
}
