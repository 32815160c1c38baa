package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter observes on every collection. *authstate.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() authstate.MetricsSnapshot
	AuditDropped() uint64
}

type counterInstrument struct {
	id  authstate.MetricID
	ins metric.Int64ObservableCounter
}

// Exporter publishes engine metrics through asynchronous OTel instruments.
// The latency histogram is exposed as one cumulative gauge per bucket.
type Exporter struct {
	source       Source
	registration metric.Registration

	counters []counterInstrument
	buckets  [len(internaldefs.Buckets)]metric.Int64ObservableGauge
	count    metric.Int64ObservableGauge
	dropped  metric.Int64ObservableCounter
}

// New registers instruments on meter and a single callback reading source.
func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, c := range internaldefs.Counters {
		ins, err := meter.Int64ObservableCounter(c.Name, metric.WithDescription(c.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: c.ID, ins: ins})
		observables = append(observables, ins)
	}

	for i, b := range internaldefs.Buckets {
		name := internaldefs.LatencyName + "_bucket_le_" + b.Suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative validate latency bucket."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", name, err)
		}
		e.buckets[i] = ins
		observables = append(observables, ins)
	}

	var err error
	e.count, err = meter.Int64ObservableGauge(internaldefs.LatencyName+"_count", metric.WithDescription(internaldefs.LatencyHelp))
	if err != nil {
		return nil, fmt.Errorf("latency count gauge: %w", err)
	}
	e.dropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("audit dropped counter: %w", err)
	}
	observables = append(observables, e.count, e.dropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}
	if raw, ok := snap.Histograms[authstate.MetricValidateLatency]; ok {
		cumulative := internaldefs.Cumulative(raw)
		for i, ins := range e.buckets {
			o.ObserveInt64(ins, int64(cumulative[i]))
		}
		o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
