package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/GlobalFishingWatch/pipe-vms-brazil/internal/metrics"
)

const (
	connectTimeout = 3 * time.Second
	requestTimeout = 30 * time.Second
)

// DevicesURL returns the device directory endpoint for a token.
func DevicesURL(base, token string) string {
	return fmt.Sprintf("%s/GetDevices/%s", base, token)
}

// MessagesURL returns the message endpoint scoped to one day. The window
// covers 00:00:00 to 23:59:59 of the day, embedded directly in the path.
func MessagesURL(base, token string, day time.Time) string {
	d := day.Format("2006-01-02")
	return fmt.Sprintf("%s/GetMessages/%s/%sT00:00:00/%sT23:59:59", base, token, d, d)
}

// Fetcher retrieves JSON payloads with a bounded fixed-delay retry loop.
// It has no file side effects; callers write the returned payload exactly
// once, outside the retry loop.
type Fetcher struct {
	Client     *http.Client
	MaxRetries int
	RetryDelay time.Duration
}

func NewFetcher(maxRetries int, retryDelay time.Duration) *Fetcher {
	return &Fetcher{
		Client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	}
}

// Fetch GETs one URL, retrying up to MaxRetries times with a fixed delay
// between attempts. A non-200 status, network error, or non-JSON body each
// count as one failed attempt. On exhaustion it returns *FetchExhaustedError.
func (f *Fetcher) Fetch(ctx context.Context, endpoint, url string) (json.RawMessage, error) {
	var last error
	for attempt := 1; attempt <= f.MaxRetries; attempt++ {
		payload, err := f.once(ctx, url)
		if err == nil {
			metrics.FetchAttemptsTotal.WithLabelValues(endpoint, "success").Inc()
			return payload, nil
		}
		last = err
		kind := KindNetwork
		var aerr *AttemptError
		if errors.As(err, &aerr) {
			kind = aerr.Kind
		}
		metrics.FetchAttemptsTotal.WithLabelValues(endpoint, string(kind)).Inc()
		log.Printf("fetch attempt %d/%d failed (%s): %v", attempt, f.MaxRetries, endpoint, err)

		if attempt == f.MaxRetries {
			break
		}
		select {
		case <-time.After(f.RetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, &FetchExhaustedError{URL: url, Attempts: f.MaxRetries, Last: last}
}

func (f *Fetcher) once(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &AttemptError{Kind: KindNetwork, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &AttemptError{Kind: KindNetwork, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &AttemptError{Kind: KindHTTPStatus, URL: url, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AttemptError{Kind: KindNetwork, URL: url, Err: err}
	}
	if !json.Valid(raw) {
		return nil, &AttemptError{Kind: KindParse, URL: url}
	}
	return raw, nil
}
