package trend

import (
	"fmt"
	"sort"
	"sync"

	"spendtrend/internal/stats"
)

// Aggregator reduces one year's values of a metric to a single point.
// Aggregate returns ok=false when no point can be produced.
type Aggregator interface {
	Name() string
	Aggregate(values []float64) (value float64, ok bool)
}

// Mean aggregates with the arithmetic mean
type Mean struct{}

// Name returns "mean"
func (Mean) Name() string { return "mean" }

// Aggregate returns the mean of values
func (Mean) Aggregate(values []float64) (float64, bool) { return stats.Mean(values) }

// Median aggregates with the median
type Median struct{}

// Name returns "median"
func (Median) Name() string { return "median" }

// Aggregate returns the median of values
func (Median) Aggregate(values []float64) (float64, bool) { return stats.Median(values) }

var (
	registryMu sync.RWMutex
	registry   = map[string]Aggregator{
		Mean{}.Name():   Mean{},
		Median{}.Name(): Median{},
	}
)

// RegisterAggregator makes an aggregator available to LookupAggregator
func RegisterAggregator(a Aggregator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[a.Name()] = a
}

// LookupAggregator returns the aggregator registered under name
func LookupAggregator(name string) (Aggregator, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown aggregator %q (available: %v)", name, aggregatorNames())
	}
	return a, nil
}

func aggregatorNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
