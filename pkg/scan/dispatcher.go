package scan

import (
	"time"

	"github.com/duscan/duscan/pkg/filesystem"
	"github.com/duscan/duscan/pkg/logging"
)

// Dispatcher resolves which Strategy should run for a given root and set of
// options, then drives it. It is the only piece of this package that knows
// about filesystem-kind classification; strategies themselves are agnostic
// to why they were chosen.
type Dispatcher struct{}

// preferredKind classifies root's filesystem and returns the strategy kind
// best suited to it: NTFS prefers the Windows-optimized strategy, APFS and
// EXT prefer the POSIX-optimized strategy, and anything else (NFS, HFS,
// unknown, or a failed query) falls back to the legacy strategy.
func preferredKind(root string) StrategyKind {
	format, err := filesystem.QueryFormatByPath(root)
	if err != nil {
		return StrategyLegacy
	}
	switch format {
	case filesystem.FormatNTFS:
		return StrategyWindows
	case filesystem.FormatAPFS, filesystem.FormatEXT:
		return StrategyPOSIX
	default:
		return StrategyLegacy
	}
}

// resolve picks the strategy that will actually run for root under options.
// An explicit override is honored if eligible; otherwise, the preferred
// strategy for the root's filesystem kind is used if eligible. In every
// other case the scan is silently demoted to the legacy strategy, except
// that demoting away from an explicit override produces a warning, since
// that's the one case where the caller asked for something specific and
// didn't get it.
func resolve(root string, options Options, logger *logging.Logger) Strategy {
	if options.StrategyOverride != nil {
		candidate := strategyByKind(*options.StrategyOverride)
		if candidate.IsEligible(options) {
			return candidate
		}
		logger.Warnf(
			"strategy %q was requested but is not eligible on this platform; falling back to legacy traversal",
			options.StrategyOverride.String(),
		)
		return strategyByKind(StrategyLegacy)
	}

	preferred := strategyByKind(preferredKind(root))
	if preferred.IsEligible(options) {
		return preferred
	}
	return strategyByKind(StrategyLegacy)
}

// Run performs a full scan of root under options, writing results into sink,
// and returns the decomposed summary.
func (Dispatcher) Run(root string, options Options, sink Sink) (Summary, error) {
	logger := options.Logger
	context := newContext(options, sink, logger)

	strategy := resolve(root, options, logger)
	context.setStrategy(strategy.Kind())

	normalizedRoot := toSlash(root)
	rootSize := strategy.Traverse(root, context)

	if err := context.FatalError(); err != nil {
		return Summary{}, err
	}

	// Strategies force the terminal snapshot once their walk completes; a
	// root that could not be opened or read leaves none, so force it here.
	context.progressLock.Lock()
	finalized := len(context.progress) > 0 && context.progress[len(context.progress)-1].EstimatedCompletionRatio == 1.0
	context.progressLock.Unlock()
	if !finalized {
		context.FinalizeProgress()
	}

	meta := SnapshotMeta{
		ScanRoot:       normalizedRoot,
		StartedAt:      context.start,
		FinishedAt:     time.Now(),
		Basis:          options.Basis,
		HardlinkPolicy: options.HardlinkPolicy,
		Strategy:       context.Strategy(),
	}

	finish, progress, errs, err := context.finish(meta)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Root:          normalizedRoot,
		Strategy:      context.Strategy(),
		Progress:      progress,
		Errors:        errs,
		EntryCount:    finish.EntryCount,
		RootSizeBytes: rootSize,
	}, nil
}
