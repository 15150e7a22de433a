package otel

import (
	"context"
	"testing"

	"github.com/mrzor/appdebug/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProvider_DisabledIsNoop(t *testing.T) {
	p, err := InitProvider(&config.OTELConfig{ServiceName: "appdebug"}, "dev", zerolog.Nop())
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "span")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInitProvider_Enabled(t *testing.T) {
	cfg := &config.OTELConfig{
		ServiceName:        "appdebug",
		ExporterEndpoint:   "localhost:4318",
		ResourceAttributes: "device=emulator",
	}

	p, err := InitProvider(cfg, "dev", zerolog.Nop())
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "span")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.NotNil(t, p.Tracer("x"))
	assert.NoError(t, p.Shutdown(context.Background()))
}
