package alloc

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the otel instruments the allocator reports against. A nil
// *Metrics is valid and makes every report a no-op, mirroring how
// engine/metrics.go in the teacher lets metrics be optional.
type Metrics struct {
	allocs      metric.Int64Counter
	frees       metric.Int64Counter
	slabGrowths metric.Int64Counter
	bytesInUse  metric.Int64UpDownCounter
}

// NewMetrics registers the allocator's instruments against meter. Returns
// nil, nil if meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return nil, nil
	}
	allocs, err := meter.Int64Counter("alloc.allocations",
		metric.WithDescription("Number of chunks handed out by Alloc"))
	if err != nil {
		return nil, err
	}
	frees, err := meter.Int64Counter("alloc.frees",
		metric.WithDescription("Number of chunks returned via Free"))
	if err != nil {
		return nil, err
	}
	slabGrowths, err := meter.Int64Counter("alloc.slab_growths",
		metric.WithDescription("Number of times the slab sequence was extended"))
	if err != nil {
		return nil, err
	}
	bytesInUse, err := meter.Int64UpDownCounter("alloc.bytes_in_use",
		metric.WithDescription("Bytes currently allocated and not free"))
	if err != nil {
		return nil, err
	}
	return &Metrics{allocs: allocs, frees: frees, slabGrowths: slabGrowths, bytesInUse: bytesInUse}, nil
}

func (m *Metrics) recordAlloc(ctx context.Context, size int) {
	if m == nil {
		return
	}
	m.allocs.Add(ctx, 1)
	m.bytesInUse.Add(ctx, int64(size))
}

func (m *Metrics) recordFree(ctx context.Context, size int) {
	if m == nil {
		return
	}
	m.frees.Add(ctx, 1)
	m.bytesInUse.Add(ctx, -int64(size))
}

func (m *Metrics) recordSlabGrowth(ctx context.Context) {
	if m == nil {
		return
	}
	m.slabGrowths.Add(ctx, 1)
}
