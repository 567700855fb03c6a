package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultTimeout = 10 * time.Second

// Family names exported by quotestream-server.
const (
	familyConnections        = "quotestream_connections_active"
	familySubscribers        = "quotestream_subscribers"
	familyTicks              = "quotestream_broadcast_ticks_total"
	familyQuotesSent         = "quotestream_quotes_sent_total"
	familySendFailures       = "quotestream_send_failures_total"
	familyDecodeErrors       = "quotestream_decode_errors_total"
	familyProtocolViolations = "quotestream_protocol_violations_total"
	familyUnsubscribeUnknown = "quotestream_unsubscribe_not_found_total"
)

// Stats is one reading of the server's counters. Counter fields hold raw
// totals since server start.
type Stats struct {
	ReadAt time.Time

	Connections float64
	Subscribers float64
	Ticks       float64
	QuotesSent  float64

	// SendFailures is keyed by reason: closed, buffer_full, encode, write.
	SendFailures map[string]float64
	// DecodeErrors is keyed by kind: unknown_type, malformed.
	DecodeErrors map[string]float64

	ProtocolViolations  float64
	UnsubscribeNotFound float64
}

// Reader fetches Stats from one metrics URL.
type Reader struct {
	url    string
	client *http.Client
}

// New returns a Reader for url, e.g. http://localhost:8080/metrics.
// A nil client gets a default one with a 10s timeout.
func New(url string, client *http.Client) *Reader {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Reader{url: url, client: client}
}

// Read scrapes the endpoint once.
func (r *Reader) Read(ctx context.Context) (*Stats, error) {
	mfs, err := scrape(ctx, r.client, r.url)
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", r.url, err)
	}
	return &Stats{
		ReadAt:              time.Now().UTC(),
		Connections:         sumFamily(mfs[familyConnections]),
		Subscribers:         sumFamily(mfs[familySubscribers]),
		Ticks:               sumFamily(mfs[familyTicks]),
		QuotesSent:          sumFamily(mfs[familyQuotesSent]),
		SendFailures:        sumByLabel(mfs[familySendFailures], "reason"),
		DecodeErrors:        sumByLabel(mfs[familyDecodeErrors], "kind"),
		ProtocolViolations:  sumFamily(mfs[familyProtocolViolations]),
		UnsubscribeNotFound: sumFamily(mfs[familyUnsubscribeUnknown]),
	}, nil
}

// scrape GETs the exposition at url and returns its families keyed by name.
func scrape(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics endpoint returned %s", resp.Status)
	}
	return decodeFamilies(resp.Body)
}

// decodeFamilies reads text-format families from r. Trailing garbage after at
// least one good family is tolerated.
func decodeFamilies(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var p expfmt.TextParser
	families, err := p.TextToMetricFamilies(r)
	if len(families) == 0 && err != nil {
		return nil, fmt.Errorf("decode exposition: %w", err)
	}
	return families, nil
}

// sumFamily totals every sample in mf; a missing family reads as zero.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// sumByLabel groups a family's values by the given label. Never returns nil.
func sumByLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		key := ""
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		out[key] += value(m)
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
