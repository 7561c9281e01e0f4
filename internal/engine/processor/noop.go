package processor

import (
	"context"

	"go.trai.ch/locus/internal/core/ports"
)

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                     {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) SetAttribute(string, any) {}

type noopMetrics struct{}

func (noopMetrics) QueryServed()        {}
func (noopMetrics) WalkStarted()        {}
func (noopMetrics) CacheHit()           {}
func (noopMetrics) CacheMiss()          {}
func (noopMetrics) WalkDiagnostics(int) {}
