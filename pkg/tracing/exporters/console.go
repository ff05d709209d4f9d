package exporters

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ConsoleExporter writes one line per finished span. It exists for local runs
// where no collector is available; the zero value writes to stdout.
type ConsoleExporter struct {
	Out io.Writer

	mu       sync.Mutex
	shutdown bool
}

func (c *ConsoleExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return nil
	}

	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	for _, span := range spans {
		fmt.Fprintf(out, "span %s trace=%s duration=%s\n",
			span.Name(),
			span.SpanContext().TraceID(),
			span.EndTime().Sub(span.StartTime()))
	}
	return nil
}

func (c *ConsoleExporter) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
	return nil
}
