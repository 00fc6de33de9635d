// Package telemetry provides logging, tracing and metrics for fitgraph.
//
// Logging uses zerolog behind a small Logger wrapper with component and
// fit-scoped children. Tracing uses OpenTelemetry with stdout or OTLP
// exporters. Metrics use a private Prometheus registry.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	logger := tel.Logger.NewComponentLogger("fitter").WithFitID(fitID)
//	logger.Info("fit started")
//
// # Metrics
//
// Metrics and Tracer methods are safe on nil receivers so the engine can be
// used without any telemetry wired in:
//
//	tel.Metrics.RecordEvaluation("objective", elapsed)
//	tel.Metrics.RecordFloored("non_finite")
//	tel.Metrics.RecordFrack("lbfgs", elapsed)
//
// Metrics are exposed over HTTP when MetricsConfig.ListenAddress is set.
package telemetry
