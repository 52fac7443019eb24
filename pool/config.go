package pool

import (
	"errors"
	"fmt"
)

// Defaults for Config.
const (
	DefaultMaxChunks            = 128
	DefaultCompactionThreshold  = 0.25
	DefaultMinLiveForCompaction = 16
	DefaultGrowthFactor         = 1.5
	DefaultMaxExpansionFactor   = 8
	DefaultCompactionHeadroom   = 1.5
	DefaultKeepEmptyChunks      = 1
	DefaultInitialCapacity      = 1024
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("pool: invalid config")

// Config controls chunk sizing, growth and compaction.
type Config struct {
	// ComponentsPerChunk is the slot count of every chunk after the first.
	// The first chunk gets twice as many. 0 selects the size-class default.
	ComponentsPerChunk int
	// MaxChunks limits the number of chunks.
	MaxChunks int
	// CompactionThreshold is the fragmentation ratio above which the pool
	// reports that it needs compaction.
	CompactionThreshold float64
	// MinLiveForCompaction is the live record count below which compaction
	// is never suggested.
	MinLiveForCompaction int
	// DynamicGrowth lets the chunk limit grow by GrowthFactor, up to
	// MaxExpansionFactor times MaxChunks, instead of failing.
	DynamicGrowth      bool
	GrowthFactor       float64
	MaxExpansionFactor int
	// CompactionHeadroom scales the live count when sizing the chunk that
	// Compact rebuilds into.
	CompactionHeadroom float64
	// KeepEmptyChunks is how many empty chunks ReleaseEmptyChunks keeps by
	// default.
	KeepEmptyChunks int
	// InitialCapacity presizes the logical index table.
	InitialCapacity int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunks:            DefaultMaxChunks,
		CompactionThreshold:  DefaultCompactionThreshold,
		MinLiveForCompaction: DefaultMinLiveForCompaction,
		GrowthFactor:         DefaultGrowthFactor,
		MaxExpansionFactor:   DefaultMaxExpansionFactor,
		CompactionHeadroom:   DefaultCompactionHeadroom,
		KeepEmptyChunks:      DefaultKeepEmptyChunks,
		InitialCapacity:      DefaultInitialCapacity,
	}
}

// Validate checks the configuration for values the pool cannot work with.
func (c Config) Validate() error {
	switch {
	case c.ComponentsPerChunk < 0:
		return fmt.Errorf("%w: ComponentsPerChunk must not be negative", ErrInvalidConfig)
	case c.MaxChunks <= 0:
		return fmt.Errorf("%w: MaxChunks must be positive", ErrInvalidConfig)
	case c.CompactionThreshold < 0 || c.CompactionThreshold > 1:
		return fmt.Errorf("%w: CompactionThreshold must be within [0, 1]", ErrInvalidConfig)
	case c.MinLiveForCompaction < 0:
		return fmt.Errorf("%w: MinLiveForCompaction must not be negative", ErrInvalidConfig)
	case c.DynamicGrowth && c.GrowthFactor <= 1:
		return fmt.Errorf("%w: GrowthFactor must be greater than 1", ErrInvalidConfig)
	case c.DynamicGrowth && c.MaxExpansionFactor < 1:
		return fmt.Errorf("%w: MaxExpansionFactor must be at least 1", ErrInvalidConfig)
	case c.CompactionHeadroom < 1:
		return fmt.Errorf("%w: CompactionHeadroom must be at least 1", ErrInvalidConfig)
	case c.KeepEmptyChunks < 0:
		return fmt.Errorf("%w: KeepEmptyChunks must not be negative", ErrInvalidConfig)
	}
	return nil
}
