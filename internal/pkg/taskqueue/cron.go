package taskqueue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Cron calls an application endpoint on a fixed interval
type Cron struct {
	client   *http.Client
	url      string
	secret   string
	interval time.Duration
}

// NewCron creates a periodic trigger for url
func NewCron(client *http.Client, url, secret string, interval time.Duration) *Cron {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Cron{client: client, url: url, secret: secret, interval: interval}
}

// Run fires once immediately and then every interval until ctx is cancelled
func (c *Cron) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log.Info().Str("url", c.url).Dur("interval", c.interval).Msg("Cron started")

	for {
		if err := c.Trigger(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("url", c.url).Msg("Cron trigger failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Str("url", c.url).Msg("Cron stopped")
			return
		case <-ticker.C:
		}
	}
}

// Trigger performs one GET against the endpoint
func (c *Cron) Trigger(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Cron", "true")
	if c.secret != "" {
		req.Header.Set(HeaderTaskSecret, c.secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cron endpoint answered %d", resp.StatusCode)
	}
	log.Debug().Str("url", c.url).Msg("Cron triggered")
	return nil
}
