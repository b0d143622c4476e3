package mempool

const defaultMaximumTransactionCount = 100_000

// Config represents a mempool configuration
type Config struct {
	// MaximumTransactionCount is the number of pooled transactions above
	// which new ones are rejected.
	MaximumTransactionCount int
}

// DefaultConfig returns the default mempool configuration
func DefaultConfig() *Config {
	return &Config{
		MaximumTransactionCount: defaultMaximumTransactionCount,
	}
}
