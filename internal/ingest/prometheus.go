package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

const scrapeTimeout = 10 * time.Second

// promSource polls a Prometheus text-exposition endpoint and appends the
// configured metrics as samples. The metrics map translates exposition
// metric names to measurement ids under the source's device id; metric
// families with multiple series are summed into one value.
type promSource struct {
	src    config.Source
	store  timeseries.Store
	client *http.Client
}

func newPromSource(src config.Source, store timeseries.Store) *promSource {
	return &promSource{
		src:    src,
		store:  store,
		client: &http.Client{Timeout: scrapeTimeout},
	}
}

// Run scrapes on the configured interval until ctx is cancelled. A failed
// scrape is logged and the next interval retries; failures never stop the
// source.
func (s *promSource) Run(ctx context.Context) error {
	slog.Info("ingest: prometheus scraping",
		"source", s.src.ID, "endpoint", s.src.Endpoint, "interval", s.src.ScrapeInterval)

	t := time.NewTicker(s.src.ScrapeInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ingest: prometheus stopped", "source", s.src.ID)
			return nil
		case now := <-t.C:
			if err := s.scrape(ctx, now.UTC()); err != nil {
				slog.Warn("ingest: prometheus scrape failed",
					"source", s.src.ID, "endpoint", s.src.Endpoint, "err", err)
			}
		}
	}
}

// scrape fetches the endpoint once and appends one sample per configured
// metric found in the exposition.
func (s *promSource) scrape(ctx context.Context, now time.Time) error {
	mfs, err := s.fetchMetrics(ctx)
	if err != nil {
		return err
	}

	for metric, measurement := range s.src.Metrics {
		mf, ok := mfs[metric]
		if !ok {
			slog.Debug("ingest: metric not present in scrape",
				"source", s.src.ID, "metric", metric)
			continue
		}

		stream := timeseries.Selector{
			DeviceID:      s.src.DeviceID,
			MeasurementID: measurement,
		}.Stream()
		sample := timeseries.Sample{Time: now, Value: sumFamily(mf)}

		if err := s.store.Append(ctx, stream, sample, s.src.Unit); err != nil {
			slog.Warn("ingest: append failed",
				"source", s.src.ID, "stream", stream, "err", err)
		}
	}
	return nil
}

// fetchMetrics performs an HTTP GET and returns parsed metric families.
func (s *promSource) fetchMetrics(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.src.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
