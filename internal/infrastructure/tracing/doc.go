/*
Package tracing provides lightweight request tracing.

Each HTTP request gets a span. Trace context arrives and leaves through the
X-Trace-ID and X-Span-ID headers, so a request can be followed from the
caller through this service and into the session service.

	tracer := tracing.New("stagingfs", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "walk")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Finished spans are buffered (1000) and logged asynchronously. When the
buffer is full new spans are dropped with a warning.
*/
package tracing
