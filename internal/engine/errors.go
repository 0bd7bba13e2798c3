package engine

import "fmt"

// ConfigError means the runtime config cannot support a tick at all (target
// weights don't sum to ~1, base asset missing from the allow-list). Fatal
// for the tick, never retried within it.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Reason
}

// MarketDataError means a probed price came back unusable. The whole tick
// fails: drift decisions are never made from a partial snapshot.
type MarketDataError struct {
	Symbol string
	Price  float64
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("bad price for %s (%g)", e.Symbol, e.Price)
}

// ProviderError wraps an RPC, quote-API or submission failure. Timeout marks
// a mined-receipt wait that exceeded its bound; it is reported the same way.
// No partial state update ever accompanies a ProviderError.
type ProviderError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
