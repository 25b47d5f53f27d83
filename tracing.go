// Copyright 2025 Gavel Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gavel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// setupTracing configures the OpenTelemetry SDK. Spans are submitted via
// OTLP over HTTP(s), configured through the standard OTEL_EXPORTER_OTLP_*
// env vars. Provider shutdown is registered with the engine shutdown
// functions so buffered spans flush on exit
func (e *Engine) setupTracing() error {
	ctx := context.Background()
	// Configure propagators
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
	// Configure trace provider
	tracerProvider, err := e.newTraceProvider(ctx)
	if err != nil {
		return err
	}
	e.shutdownFuncs = append(e.shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)
	return nil
}

func (e *Engine) newTraceProvider(
	ctx context.Context,
) (*trace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("gavel"),
		),
	)
	if err != nil {
		return nil, err
	}
	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
	}
	otlpExporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(
		opts,
		trace.WithBatcher(
			otlpExporter,
			trace.WithBatchTimeout(time.Second),
		),
	)
	if e.config.tracingStdout {
		stdoutExporter, err := stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, err
		}
		opts = append(
			opts,
			trace.WithBatcher(
				stdoutExporter,
				trace.WithBatchTimeout(time.Second),
			),
		)
	}
	return trace.NewTracerProvider(opts...), nil
}
