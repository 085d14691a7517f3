package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_NoEndpoint(t *testing.T) {
	tr, shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, tr)

	_, span := tr.Start(context.Background(), "op")
	require.False(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	tr, shutdown, err := Setup(context.Background(), Config{Endpoint: "localhost:4318", ServiceName: "test"})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "op")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestExporterOptions(t *testing.T) {
	require.Len(t, exporterOptions("collector:4318"), 2)
	require.Len(t, exporterOptions("https://collector.example.com/v1/traces"), 1)
}
