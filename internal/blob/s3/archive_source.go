package s3blob

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// ArchiveSource implements domain.MarketDataSource over per-day JSON-lines
// archive objects laid out as
//
//	<prefix>/<exchange>/<symbol with "/" as "-">/<YYYY-MM-DD>.jsonl
//
// Each line is one order-book snapshot event. Days with no archive object
// are skipped.
type ArchiveSource struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewArchiveSource creates a source reading from the client's bucket under
// the given key prefix.
func NewArchiveSource(c *Client, prefix string) *ArchiveSource {
	return &ArchiveSource{
		client: c.S3(),
		bucket: c.Bucket(),
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// archiveLine is the JSON shape of one archived event.
type archiveLine struct {
	Timestamp time.Time `json:"ts"`
	Bids      []struct {
		Price float64 `json:"price"`
		Size  float64 `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price float64 `json:"price"`
		Size  float64 `json:"size"`
	} `json:"asks"`
}

// Load reads every day object overlapping [start, end) and returns the
// events inside the window, in archive order.
func (a *ArchiveSource) Load(ctx context.Context, exchange, symbol string, start, end time.Time) ([]domain.MarketEvent, error) {
	var events []domain.MarketEvent

	for day := start.UTC().Truncate(24 * time.Hour); day.Before(end); day = day.Add(24 * time.Hour) {
		key := a.dayKey(exchange, symbol, day)
		dayEvents, err := a.loadObject(ctx, key, exchange, symbol, start, end)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		events = append(events, dayEvents...)
	}
	return events, nil
}

func (a *ArchiveSource) dayKey(exchange, symbol string, day time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s.jsonl",
		a.prefix, exchange, strings.ReplaceAll(symbol, "/", "-"), day.Format("2006-01-02"))
}

func (a *ArchiveSource) loadObject(ctx context.Context, key, exchange, symbol string, start, end time.Time) ([]domain.MarketEvent, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	defer out.Body.Close()

	var events []domain.MarketEvent
	scanner := bufio.NewScanner(out.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec archiveLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("s3blob: parse %s line %d: %w", key, lineNo, err)
		}
		ts := rec.Timestamp.UTC()
		if ts.Before(start) || !ts.Before(end) {
			continue
		}

		ev := domain.MarketEvent{Timestamp: ts, Exchange: exchange, Symbol: symbol}
		for _, l := range rec.Bids {
			ev.Bids = append(ev.Bids, domain.BookLevel{Price: l.Price, Size: l.Size})
		}
		for _, l := range rec.Asks {
			ev.Asks = append(ev.Asks, domain.BookLevel{Price: l.Price, Size: l.Size})
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("s3blob: read %s: %w", key, err)
	}
	return events, nil
}

// isNotFound returns true when the error indicates the requested S3 object
// does not exist.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// Some S3-compatible providers return a plain 404 response error.
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}

// Compile-time interface check.
var _ domain.MarketDataSource = (*ArchiveSource)(nil)
