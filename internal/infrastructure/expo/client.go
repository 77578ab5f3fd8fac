package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mise/internal/domain/notification"
)

const (
	DefaultEndpoint = "https://exp.host/--/api/v2/push/send"
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20 // 1 MiB
	statusOK        = "ok"
)

var (
	pushTracer          = otel.Tracer("mise/push")
	pushMeter           = otel.Meter("mise/push")
	pushSent, _         = pushMeter.Int64Counter("push.dispatch.sent", metric.WithDescription("Push tickets accepted by the provider"))
	pushFailed, _       = pushMeter.Int64Counter("push.dispatch.failed", metric.WithDescription("Push tickets rejected or lost"))
	pushCallDuration, _ = pushMeter.Float64Histogram("push.dispatch.duration",
		metric.WithDescription("Push provider call duration in seconds"),
		metric.WithUnit("s"),
	)
)

// Config holds the push provider connection settings.
type Config struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
	// MaxBatch splits large token lists into several calls. Zero sends
	// everything in one call.
	MaxBatch int
}

// Client implements notification.Dispatcher against an Expo-compatible
// push API: one POST carrying an array of messages, answered by an
// index-aligned array of tickets.
type Client struct {
	endpoint    string
	accessToken string
	maxBatch    int
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		accessToken: cfg.AccessToken,
		maxBatch:    cfg.MaxBatch,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger.Named("expo"),
	}
}

type pushMessage struct {
	To        string            `json:"to"`
	Sound     string            `json:"sound"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Badge     *int              `json:"badge,omitempty"`
	ChannelID string            `json:"channelId,omitempty"`
}

type pushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type pushResponse struct {
	Data []pushTicket `json:"data"`
}

// Dispatch sends msg to every token. It never fails: transport errors and
// non-2xx responses count the whole batch as failed.
func (c *Client) Dispatch(ctx context.Context, tokens []string, msg notification.PushMessage) notification.DispatchResult {
	if len(tokens) == 0 {
		return notification.DispatchResult{}
	}

	ctx, span := pushTracer.Start(ctx, "push.dispatch", trace.WithAttributes(
		attribute.String("push.provider", "expo"),
		attribute.Int("push.tokens", len(tokens)),
	))
	defer span.End()

	var total notification.DispatchResult
	for _, batch := range chunkTokens(tokens, c.maxBatch) {
		result := c.send(ctx, batch, msg)
		total.Sent += result.Sent
		total.Failed += result.Failed
	}

	span.SetAttributes(attribute.Int("push.sent", total.Sent), attribute.Int("push.failed", total.Failed))
	if total.Sent == 0 {
		span.SetStatus(codes.Error, "no tickets accepted")
	}
	attrs := metric.WithAttributes(attribute.String("provider", "expo"))
	pushSent.Add(ctx, int64(total.Sent), attrs)
	pushFailed.Add(ctx, int64(total.Failed), attrs)

	return total
}

func (c *Client) send(ctx context.Context, tokens []string, msg notification.PushMessage) notification.DispatchResult {
	allFailed := notification.DispatchResult{Failed: len(tokens)}

	messages := make([]pushMessage, len(tokens))
	for i, token := range tokens {
		messages[i] = pushMessage{
			To:        token,
			Sound:     "default",
			Title:     msg.Title,
			Body:      msg.Body,
			Data:      msg.Data,
			Badge:     msg.Badge,
			ChannelID: msg.ChannelID,
		}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		c.logger.Error("failed to encode push payload", zap.Error(err))
		return allFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("failed to build push request", zap.Error(err))
		return allFailed
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	pushCallDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("provider", "expo")))
	if err != nil {
		c.logger.Error("push provider request failed", zap.Int("tokens", len(tokens)), zap.Error(err))
		return allFailed
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("failed to read push response", zap.Error(err))
		return allFailed
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("push provider rejected batch",
			zap.Int("status", resp.StatusCode),
			zap.Int("tokens", len(tokens)),
			zap.String("body", snippet(body)),
		)
		return allFailed
	}

	var parsed pushResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Error("failed to decode push response", zap.Error(err), zap.String("body", snippet(body)))
		return allFailed
	}

	return c.countTickets(tokens, parsed.Data)
}

// countTickets tallies tickets by position. Tokens without a ticket are
// failures, extra tickets are ignored.
func (c *Client) countTickets(tokens []string, tickets []pushTicket) notification.DispatchResult {
	var result notification.DispatchResult
	for i := range tokens {
		if i < len(tickets) && tickets[i].Status == statusOK {
			result.Sent++
			continue
		}
		result.Failed++
		if i < len(tickets) {
			c.logger.Warn("push ticket rejected",
				zap.String("message", tickets[i].Message),
				zap.String("error", tickets[i].Details.Error),
			)
		}
	}
	if len(tickets) < len(tokens) {
		c.logger.Warn("push response missing tickets",
			zap.Int("tokens", len(tokens)),
			zap.Int("tickets", len(tickets)),
		)
	}
	return result
}

func chunkTokens(tokens []string, size int) [][]string {
	if size <= 0 || len(tokens) <= size {
		return [][]string{tokens}
	}
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		end := i + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[i:end])
	}
	return chunks
}

func snippet(body []byte) string {
	const max = 512
	if len(body) > max {
		return fmt.Sprintf("%s... (%d bytes)", body[:max], len(body))
	}
	return string(body)
}
