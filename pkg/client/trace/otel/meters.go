package otel

import otelMetric "go.opentelemetry.io/otel/metric"

type meters struct {
	inFlight     otelMetric.Int64UpDownCounter
	duration     otelMetric.Float64Histogram
	failures     otelMetric.Int64Counter
	redirects    otelMetric.Int64Counter
	httpDuration otelMetric.Float64Histogram
	readBytes    otelMetric.Int64Counter
}

func newMeters(meter otelMetric.Meter) *meters {
	return &meters{
		inFlight:     upDownCounter(meter, meterPrefix+"execute.in_flight", "API request: in flight calls."),
		duration:     histogram(meter, meterPrefix+"execute.duration", "API request: calls duration.", "ms"),
		failures:     counter(meter, meterPrefix+"execute.failures", "API request: failed calls by kind.", ""),
		redirects:    counter(meter, meterPrefix+"execute.redirects", "API request: followed redirects.", ""),
		httpDuration: histogram(meter, meterPrefix+"http.duration", "HTTP request: response received duration (without parsing).", "ms"),
		readBytes:    counter(meter, meterPrefix+"body.read_bytes", "API request: read bytes of response bodies.", "By"),
	}
}

func upDownCounter(meter otelMetric.Meter, name, desc string) otelMetric.Int64UpDownCounter {
	return mustInstrument(meter.Int64UpDownCounter(name, otelMetric.WithDescription(desc)))
}

func counter(meter otelMetric.Meter, name, desc, unit string) otelMetric.Int64Counter {
	opts := []otelMetric.Int64CounterOption{otelMetric.WithDescription(desc)}
	if unit != "" {
		opts = append(opts, otelMetric.WithUnit(unit))
	}
	return mustInstrument(meter.Int64Counter(name, opts...))
}

func histogram(meter otelMetric.Meter, name, desc string, unit string) otelMetric.Float64Histogram {
	return mustInstrument(meter.Float64Histogram(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func mustInstrument[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}
