package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracing("techknowlogia-test", "test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "unit.span")
	span.End()

	require.NoError(t, ShutdownTracing(context.Background(), tp))
	assert.Contains(t, buf.String(), "unit.span")
	assert.Contains(t, buf.String(), "techknowlogia-test")
}

func TestShutdownNilProvider(t *testing.T) {
	assert.NoError(t, ShutdownTracing(context.Background(), nil))
}
