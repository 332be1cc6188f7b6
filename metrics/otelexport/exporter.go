// Package otelexport bridges engine counters to OpenTelemetry
// observable instruments. The exporter registers one callback that
// reads a counter snapshot on every collection, so the engine stays
// free of any exporter dependency.
package otelexport

import (
	"context"
	"errors"
	"fmt"

	rauth "github.com/alvidir/rauth-sub001"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is given.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no snapshot source is given.
	ErrNilSource = errors.New("nil metrics source")
)

// Source yields counter snapshots. *rauth.Engine satisfies it.
type Source interface {
	MetricsSnapshot() rauth.MetricsSnapshot
}

type observedCounter struct {
	id         rauth.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter registers the engine counters on a meter and unregisters
// them on Close.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []observedCounter
}

// New registers one observable counter per engine metric, named
// "rauth_<metric>_total".
func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	ids := make([]rauth.MetricID, 0)
	for id := range source.MetricsSnapshot().Counters {
		ids = append(ids, id)
	}

	exporter := &Exporter{source: source, counters: make([]observedCounter, 0, len(ids))}
	observables := make([]metric.Observable, 0, len(ids))

	for _, id := range ids {
		name := "rauth_" + id.Name() + "_total"
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription("Engine counter "+id.Name()+"."))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: id, instrument: ins})
		observables = append(observables, ins)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
