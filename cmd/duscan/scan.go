package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/duscan/duscan/cmd"
	"github.com/duscan/duscan/pkg/duscanerrors"
	"github.com/duscan/duscan/pkg/filesystem"
	"github.com/duscan/duscan/pkg/logging"
	"github.com/duscan/duscan/pkg/must"
	"github.com/duscan/duscan/pkg/scan"
	"github.com/duscan/duscan/pkg/sink"
)

func parseBasis(value string) (scan.SizeBasis, error) {
	switch value {
	case "", "logical":
		return scan.SizeBasisLogical, nil
	case "physical":
		return scan.SizeBasisPhysical, nil
	default:
		return 0, errors.Errorf("invalid basis %q (expected \"logical\" or \"physical\")", value)
	}
}

func parseStrategy(value string) (*scan.StrategyKind, error) {
	var kind scan.StrategyKind
	switch value {
	case "":
		return nil, nil
	case "legacy":
		kind = scan.StrategyLegacy
	case "posix":
		kind = scan.StrategyPOSIX
	case "windows":
		kind = scan.StrategyWindows
	default:
		return nil, errors.Errorf("invalid strategy %q (expected \"legacy\", \"posix\", or \"windows\")", value)
	}
	return &kind, nil
}

func scanMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return duscanerrors.New(duscanerrors.InvalidInput, errors.New("scan requires exactly one root directory argument"))
	}

	if scanConfiguration.snapshot == "" {
		return duscanerrors.New(duscanerrors.InvalidInput, errors.New("--snapshot is required"))
	}

	root, err := filesystem.Normalize(arguments[0])
	if err != nil {
		return duscanerrors.New(duscanerrors.InvalidInput, errors.Wrap(err, "unable to normalize scan root"))
	}
	if info, err := os.Stat(root); err != nil {
		return duscanerrors.New(duscanerrors.InvalidInput, errors.Wrap(err, "unable to access scan root"))
	} else if !info.IsDir() {
		return duscanerrors.New(duscanerrors.InvalidInput, errors.New("scan root is not a directory"))
	}

	basis, err := parseBasis(scanConfiguration.basis)
	if err != nil {
		return duscanerrors.New(duscanerrors.InvalidInput, err)
	}

	strategyOverride, err := parseStrategy(scanConfiguration.strategy)
	if err != nil {
		return duscanerrors.New(duscanerrors.InvalidInput, err)
	}
	if scanConfiguration.legacyTraversal {
		legacy := scan.StrategyLegacy
		strategyOverride = &legacy
	}

	if err := os.MkdirAll(filepath.Dir(scanConfiguration.snapshot), 0755); err != nil {
		return duscanerrors.New(duscanerrors.Io, errors.Wrap(err, "unable to create snapshot directory"))
	}

	snapshotFile, err := os.Create(scanConfiguration.snapshot)
	if err != nil {
		return duscanerrors.New(duscanerrors.Io, errors.Wrap(err, "unable to create snapshot file"))
	}

	columnarSink := sink.NewStreamingColumnarSink(snapshotFile, 0)

	logger := logging.RootLogger.Sublogger("scan")

	options := scan.Options{
		Basis:            basis,
		StrategyOverride: strategyOverride,
		MaxDepth:         scanConfiguration.maxDepth,
		ProgressInterval: time.Duration(scanConfiguration.progressInterval * float64(time.Second)),
		Logger:           logger,
	}

	statusLinePrinter := &cmd.StatusLinePrinter{}
	defer statusLinePrinter.BreakIfNonEmpty()

	if !scanConfiguration.quiet {
		statusLinePrinter.Print(fmt.Sprintf("Scanning %s...", root))
	}

	summary, err := scan.Dispatcher{}.Run(root, options, columnarSink)
	if err != nil {
		must.Close(snapshotFile, logger)
		must.OSRemove(scanConfiguration.snapshot, logger)
		return duscanerrors.New(duscanerrors.Io, errors.Wrap(err, "scan failed"))
	}

	if !scanConfiguration.quiet {
		statusLinePrinter.Clear()
		fmt.Printf(
			"Scanned %s: %d entries, %d bytes, strategy %s\n",
			summary.Root, summary.EntryCount, summary.RootSizeBytes, summary.Strategy,
		)
	}

	if len(summary.Errors) > 0 {
		for _, item := range summary.Errors {
			cmd.Warning(fmt.Sprintf("%s: %s (%s)", item.Path, item.Message, item.Code))
		}
		return duscanerrors.New(duscanerrors.PartialFailure, errors.Errorf("%d entries could not be scanned", len(summary.Errors)))
	}

	return nil
}

var scanCommand = &cobra.Command{
	Use:   "scan <ROOT>",
	Short: "Scan a directory tree and persist a snapshot",
	Run:   duscanMainify(scanMain),
}

var scanConfiguration struct {
	// snapshot is the path at which the resulting snapshot will be written.
	snapshot string
	// basis selects the size attribution policy ("logical" or "physical").
	basis string
	// maxDepth limits entry emission. A negative value means unlimited.
	maxDepth int
	// strategy forces a specific traversal strategy ("legacy", "posix", or
	// "windows").
	strategy string
	// legacyTraversal is a shorthand for --strategy legacy.
	legacyTraversal bool
	// progressInterval is the minimum number of seconds between progress
	// snapshots recorded in the scan summary. The snapshots are not printed.
	progressInterval float64
	// quiet suppresses progress and summary output.
	quiet bool
}

func init() {
	flags := scanCommand.Flags()
	flags.SortFlags = false

	flags.StringVar(&scanConfiguration.snapshot, "snapshot", "", "Path at which to write the snapshot (required)")
	flags.StringVar(&scanConfiguration.basis, "basis", "logical", "Size attribution basis (\"logical\" or \"physical\")")
	flags.IntVar(&scanConfiguration.maxDepth, "max-depth", -1, "Limit entry emission to this depth (-1 for unlimited)")
	flags.StringVar(&scanConfiguration.strategy, "strategy", "", "Force a traversal strategy (\"legacy\", \"posix\", or \"windows\")")
	flags.BoolVar(&scanConfiguration.legacyTraversal, "legacy-traversal", false, "Shorthand for --strategy legacy")
	flags.Float64Var(&scanConfiguration.progressInterval, "progress-interval", 1.0, "Minimum number of seconds between recorded progress snapshots")
	flags.BoolVar(&scanConfiguration.quiet, "quiet", false, "Suppress progress and summary output")
}
