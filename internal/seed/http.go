package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// FetchHTTP retrieves a JSON snapshot from a remote endpoint. Used when a
// central seed service owns the world definition.
func FetchHTTP(ctx context.Context, url string) (*Snapshot, error) {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond)

	var snap Snapshot
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&snap).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("seed: fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("seed: fetch %s: status %s", url, resp.Status())
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
