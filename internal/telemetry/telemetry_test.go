package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_RequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "foundry"})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		host     string
		insecure bool
		wantErr  bool
	}{
		{"http://127.0.0.1:4318", "127.0.0.1:4318", true, false},
		{"https://otel.example.com", "otel.example.com", false, false},
		{"collector:4318", "collector:4318", false, false},
		{"http://", "", false, true},
	}
	for _, tt := range tests {
		host, insecure, err := parseEndpoint(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseEndpoint(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if host != tt.host || insecure != tt.insecure {
			t.Fatalf("parseEndpoint(%q) = %q/%v, want %q/%v", tt.in, host, insecure, tt.host, tt.insecure)
		}
	}
}

func TestNewTracerProviderWithExporter_EmitsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()

	tp, shutdown, err := newTracerProviderWithExporter(exp, Config{ServiceName: "foundry", ServiceVersion: "dev"})
	if err != nil {
		t.Fatalf("new tracer provider: %v", err)
	}

	_, sp := tp.Tracer("test").Start(context.Background(), "chatdev.GetTaskStatus")
	sp.End()

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush: %v", err)
	}
	spans := exp.GetSpans()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if len(spans) != 1 || spans[0].Name != "chatdev.GetTaskStatus" {
		t.Fatalf("spans = %+v, want one chatdev.GetTaskStatus span", spans)
	}

	found := false
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == attribute.Key("service.name") && kv.Value.AsString() == "foundry" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected resource to include service.name=foundry")
	}
}
