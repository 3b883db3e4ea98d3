package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// initMeterProvider exports metrics periodically, and once more on shutdown.
func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(p.out),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(p.config.Metrics.Interval),
		)),
	)
	return nil
}
