package otel

import (
	"context"
	"errors"
	"fmt"

	saraAuth "github.com/MrEthical07/saraAuth"
	"github.com/MrEthical07/saraAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads on each collection. [*saraAuth.Engine]
// satisfies it.
type Source interface {
	MetricsSnapshot() saraAuth.MetricsSnapshot
	AuditDropped() uint64
}

type counterInstrument struct {
	id  saraAuth.MetricID
	ins metric.Int64ObservableCounter
}

type histogramInstrument struct {
	id      saraAuth.MetricID
	buckets [internaldefs.BucketCount]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter publishes engine metrics through an OpenTelemetry meter using
// observable instruments and a single callback.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []counterInstrument
	histograms   []histogramInstrument
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter for every engine metric.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := histogramInstrument{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Cumulative bucket."))
			if err != nil {
				return nil, fmt.Errorf("bucket %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", def.Name, err)
		}
		h.count = count
		observables = append(observables, count)
		e.histograms = append(e.histograms, h)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cum := internaldefs.Cumulative(snap.Histograms[h.id])
		for i := range cum {
			o.ObserveInt64(h.buckets[i], int64(cum[i]))
		}
		o.ObserveInt64(h.count, int64(cum[len(cum)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. It is safe on a nil exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
