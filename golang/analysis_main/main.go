package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tarstars/hep_boosting/golang/config"
	"github.com/tarstars/hep_boosting/golang/report"
)

type options struct {
	configFile string
	verbose    bool
	memprofile string
	workers    int
}

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()),
	})
}

func writeMemProfile(fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "create memory profile")
	}
	defer func() { _ = f.Close() }()
	runtime.GC()
	return errors.Wrap(pprof.WriteHeapProfile(f), "write memory profile")
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "analysis",
		Short:         "Histograms, figures of merit and BDT training for the four top analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.verbose)
			report.SetMetaInfo(time.Now().Format(time.DateTime), strings.Join(os.Args, " "))
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.memprofile == "" {
				return nil
			}
			return writeMemProfile(opts.memprofile)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "analysis.yaml", "analysis description")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&opts.memprofile, "memprofile", "", "write memory profile to `file`")
	flags.IntVarP(&opts.workers, "workers", "j", 0, "samples loaded in parallel (overrides the config)")

	root.AddCommand(
		newTrainCommand(opts),
		newApplyCommand(opts),
		newROCCommand(opts),
		newHyperoptCommand(opts),
		newPlotCommand(opts),
		newFOMCommand(opts),
		newEfficiencyCommand(opts),
		newHTMLCommand(opts),
		newGraphCommand(),
		newPredictCommand(),
		newLcurveCommand(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		setupLogging(false)
		log.Error().Err(err).Msg("analysis failed")
		os.Exit(1)
	}
}
