package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterNamespace = "github.com/xotten/portfolio"

// Meter returns the named meter from the global provider.
func Meter(name string) metric.Meter {
	if name == "" {
		name = meterNamespace
	}
	return otel.GetMeterProvider().Meter(name)
}

// Counter registers an Int64Counter, returning nil when registration fails so callers can skip recording.
func Counter(meter metric.Meter, logger *zap.Logger, name, description string) metric.Int64Counter {
	if meter == nil {
		meter = Meter("")
	}
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		if logger != nil {
			logger.Warn("observability: unable to register counter", zap.String("metric", name), zap.Error(err))
		}
		return nil
	}
	return counter
}
