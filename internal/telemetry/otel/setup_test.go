package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpointIsNoop(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "taskman-test", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatal("no-op providers should still be non-nil")
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("no-op shutdown: %v", err)
		}
		// Shutdown must be safe to call again.
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("second shutdown: %v", err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		if _, err := NewProviders(ctx, endpoint, "taskman-test", false); err == nil {
			t.Errorf("NewProviders(%q) should fail", endpoint)
		}
	}
}

func TestSetGlobal(t *testing.T) {
	ctx := context.Background()
	providers, err := NewProviders(ctx, "", "taskman-test", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}

	oldTracer := otel.GetTracerProvider()
	oldMeter := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTracer)
		otel.SetMeterProvider(oldMeter)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() == oldTracer {
		t.Error("global TracerProvider not replaced")
	}
	if otel.GetMeterProvider() == oldMeter {
		t.Error("global MeterProvider not replaced")
	}
}

func TestSetGlobal_NilFieldsAreSkipped(t *testing.T) {
	oldTracer := otel.GetTracerProvider()
	oldMeter := otel.GetMeterProvider()

	p := &Providers{Shutdown: func(context.Context) error { return nil }}
	p.SetGlobal()

	if otel.GetTracerProvider() != oldTracer {
		t.Error("nil TracerProvider should leave the global untouched")
	}
	if otel.GetMeterProvider() != oldMeter {
		t.Error("nil MeterProvider should leave the global untouched")
	}
}
