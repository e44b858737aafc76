package scan

// Strategy is the common contract implemented by every traversal backend.
// Each backend exposes the same three operations; the Dispatcher is a plain
// value that picks one and invokes it. No inheritance is required.
type Strategy interface {
	// Kind identifies the strategy.
	Kind() StrategyKind
	// IsEligible reports whether this strategy can run at all on the
	// current build for the given options (e.g. the Windows-optimized
	// strategy is never eligible on a non-Windows build).
	IsEligible(options Options) bool
	// Traverse walks root under context, emitting entries and errors into
	// it, and returns the total number of bytes attributed to root.
	Traverse(root string, context *Context) uint64
}

// strategies holds one instance of every strategy implementation, in a fixed
// order used only for registration bookkeeping.
var strategies = []Strategy{
	legacyStrategy{},
	posixStrategy{},
	windowsStrategy{},
}

// strategyByKind returns the registered Strategy for kind.
func strategyByKind(kind StrategyKind) Strategy {
	for _, s := range strategies {
		if s.Kind() == kind {
			return s
		}
	}
	panic("unregistered strategy kind")
}
