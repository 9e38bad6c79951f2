package otel

import (
	"context"
	"errors"
	"fmt"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is satisfied by *marketAuth.Engine.
type Source interface {
	MetricsSnapshot() marketAuth.MetricsSnapshot
	AuditDropped() uint64
}

type counter struct {
	id         marketAuth.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter publishes engine metrics through an OTel meter. Values are read
// from a snapshot once per collection.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []counter
	buckets      [8]metric.Int64ObservableGauge
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source, counters: make([]counter, 0, len(internaldefs.Counters))}
	observables := make([]metric.Observable, 0, len(internaldefs.Counters)+10)

	for _, m := range internaldefs.Counters {
		ins, err := meter.Int64ObservableCounter(m.Name, metric.WithDescription(m.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", m.Name, err)
		}
		e.counters = append(e.counters, counter{id: m.ID, instrument: ins})
		observables = append(observables, ins)
	}

	latency := internaldefs.LoginLatency
	for i, suffix := range internaldefs.Suffixes {
		name := latency.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative login latency bucket count."))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", name, err)
		}
		e.buckets[i] = ins
		observables = append(observables, ins)
	}

	count, err := meter.Int64ObservableGauge(latency.Name+"_count", metric.WithDescription(latency.Help))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s_count: %w", latency.Name, err)
	}
	e.count = count
	observables = append(observables, count)

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped by a full dispatcher queue."))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	if raw, ok := snapshot.Histograms[internaldefs.LoginLatency.ID]; ok {
		cumulative := internaldefs.Cumulative(raw)
		for i, v := range cumulative {
			o.ObserveInt64(e.buckets[i], int64(v))
		}
		o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
