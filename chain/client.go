package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/rumsystem/nft-bbs-sub001/models"
)

var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftbbs_chain_fetch_attempts_total",
		Help: "The total number of batch fetch requests against the chain node",
	})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftbbs_chain_fetch_errors_total",
		Help: "The total number of failed batch fetch requests",
	})

	recordsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftbbs_chain_records_fetched_total",
		Help: "The total number of records returned by the chain node",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nftbbs_chain_fetch_duration_seconds",
		Help:    "Duration of batch fetch requests",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // Start at 10ms, double each bucket, 10 buckets
	})
)

// Source yields ordered batches of decrypted content records for a feed
// endpoint, starting after the given cursor. The returned position is the
// last record's opaque position; an empty batch returns the cursor unchanged.
type Source interface {
	Fetch(ctx context.Context, feed string, cursor string, limit int) ([]models.ChainRecord, string, error)
}

// ClientConfig holds chain node connection settings.
type ClientConfig struct {
	// APIBase is the chain node API root, e.g. "https://node.example.org".
	APIBase string
	// Compress requests zstd-compressed batch responses.
	Compress  bool
	UserAgent string
	Timeout   time.Duration
}

// Client fetches decrypted record batches from a chain node over HTTP.
type Client struct {
	base      string
	http      *http.Client
	decoder   *zstd.Decoder
	userAgent string
}

func NewClient(config ClientConfig) (*Client, error) {
	if config.APIBase == "" {
		return nil, fmt.Errorf("no chain node API base configured")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		base:      config.APIBase,
		http:      &http.Client{Timeout: timeout},
		userAgent: config.UserAgent,
	}

	if config.Compress {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		client.decoder = decoder
	}

	return client, nil
}

// wireRecord is one record as returned by the node. Content is decoded into
// its typed variant here so downstream handlers never touch raw JSON.
type wireRecord struct {
	ID        string          `json:"id"`
	Sender    string          `json:"sender"`
	Timestamp int64           `json:"timestamp"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
}

type fetchResponse struct {
	Records []wireRecord `json:"records"`
}

// Fetch retrieves up to limit records from the feed, starting after cursor.
// A record's id doubles as its opaque position.
func (c *Client) Fetch(ctx context.Context, feed string, cursor string, limit int) ([]models.ChainRecord, string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/feed/%s/records", c.base, url.PathEscape(feed)))
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	if cursor != "" {
		q.Set("start", cursor)
	}
	q.Set("limit", fmt.Sprintf("%d", limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.decoder != nil {
		req.Header.Set("Accept-Encoding", "zstd")
	}

	fetchAttempts.Inc()
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		fetchErrors.Inc()
		return nil, cursor, fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	fetchDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		fetchErrors.Inc()
		return nil, cursor, fmt.Errorf("unexpected status %d from chain node", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fetchErrors.Inc()
		return nil, cursor, fmt.Errorf("read error: %w", err)
	}

	if c.decoder != nil && resp.Header.Get("Content-Encoding") == "zstd" {
		body, err = c.decoder.DecodeAll(body, nil)
		if err != nil {
			fetchErrors.Inc()
			return nil, cursor, fmt.Errorf("failed to decompress batch: %w", err)
		}
	}

	var parsed fetchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		fetchErrors.Inc()
		return nil, cursor, fmt.Errorf("failed to unmarshal batch: %w", err)
	}

	records := make([]models.ChainRecord, 0, len(parsed.Records))
	next := cursor
	for _, wire := range parsed.Records {
		if wire.ID == "" || wire.Sender == "" {
			log.WithFields(log.Fields{
				"feed": feed,
				"type": wire.Type,
			}).Warn("Skipping record without id or sender")
			continue
		}
		records = append(records, models.ChainRecord{
			ID:        wire.ID,
			Sender:    wire.Sender,
			Timestamp: time.Unix(0, wire.Timestamp),
			Content:   models.DecodeContent(wire.Type, wire.Content),
		})
		next = wire.ID
	}
	recordsFetched.Add(float64(len(records)))

	return records, next, nil
}
