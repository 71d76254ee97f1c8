// Package collector posts tracked events to an HTTP event collector using
// the self-describing payload_data format.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/pkg/core"
)

// Envelope schemas of the collector protocol.
const (
	SchemaPayloadData   = "iglu:com.snowplowanalytics.snowplow/payload_data/jsonschema/1-0-4"
	SchemaUnstructEvent = "iglu:com.snowplowanalytics.snowplow/unstruct_event/jsonschema/1-0-0"
	SchemaContexts      = "iglu:com.snowplowanalytics.snowplow/contexts/jsonschema/1-0-1"
)

// APIKeyHeader carries the configured API key.
const APIKeyHeader = "X-API-Key"

const defaultTimeout = 10 * time.Second

// Payload is one event in collector wire format. ue_pr and co hold JSON
// documents encoded as strings.
type Payload struct {
	Event     string `json:"e"`
	EventID   string `json:"eid"`
	Timestamp string `json:"dtm"`
	Platform  string `json:"p"`
	Unstruct  string `json:"ue_pr"`
	Contexts  string `json:"co,omitempty"`
}

// Client handles communication with the collector.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New creates a collector sink.
func New(cfg config.CollectorConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Init validates the endpoint.
func (c *Client) Init() error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("collector sink: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("collector sink: unsupported endpoint %q", c.endpoint)
	}
	return nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Healthcheck checks that the collector host answers on /health.
func (c *Client) Healthcheck(ctx context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Track posts e as a single-event batch.
func (c *Client) Track(ctx context.Context, e *core.Event) error {
	p, err := NewPayload(e)
	if err != nil {
		return err
	}
	body, err := json.Marshal(core.SelfDescribingJSON{Schema: SchemaPayloadData, Data: []Payload{p}})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("collector request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}

// NewPayload converts e to the collector wire format.
func NewPayload(e *core.Event) (Payload, error) {
	if e == nil {
		return Payload{}, errors.New("nil event")
	}
	ue, err := json.Marshal(core.SelfDescribingJSON{
		Schema: SchemaUnstructEvent,
		Data:   core.SelfDescribingJSON{Schema: e.Schema, Data: e.Data},
	})
	if err != nil {
		return Payload{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	p := Payload{
		Event:     "ue",
		EventID:   e.ID.String(),
		Timestamp: strconv.FormatInt(e.Timestamp.UnixMilli(), 10),
		Platform:  "web",
		Unstruct:  string(ue),
	}
	if len(e.Context) > 0 {
		co, err := json.Marshal(core.SelfDescribingJSON{Schema: SchemaContexts, Data: e.Context})
		if err != nil {
			return Payload{}, fmt.Errorf("failed to marshal context: %w", err)
		}
		p.Contexts = string(co)
	}
	return p, nil
}
