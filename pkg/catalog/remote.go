package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	fleetotel "fleetsim/pkg/otel"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxCatalogBytes = 4 << 20

// Fetcher downloads catalog documents over HTTP.
type Fetcher struct {
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		tracer: otel.Tracer("catalog-fetcher"),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, span := f.tracer.Start(ctx, "catalog.fetch",
		trace.WithAttributes(
			attribute.String("http.url", url),
			attribute.String("http.method", http.MethodGet),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fleetotel.RecordError(span, err, fleetotel.ErrorTypeValidation, false)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "fleetsim/1.0.0")
	req.Header.Set("Accept", "application/yaml, text/yaml, */*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		fleetotel.RecordError(span, err, fleetotel.ErrorTypeNetwork, true)
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("catalog server returned status %d: %s", resp.StatusCode, string(body))
		fleetotel.RecordError(span, err, fleetotel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		fleetotel.RecordError(span, err, fleetotel.ErrorTypeNetwork, true)
		return nil, fmt.Errorf("failed to read catalog body: %w", err)
	}

	span.SetAttributes(attribute.Int("response.size_bytes", len(body)))
	fleetotel.SetSpanOk(span)

	return body, nil
}
