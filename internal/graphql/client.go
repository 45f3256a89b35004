// Package graphql talks to a GraphQL endpoint over two transports: plain HTTP
// for queries and mutations, and one persistent websocket (graphql-ws
// subprotocol) for subscriptions. The split is decided per operation by
// OperationKind.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrWrongTransport = errors.New("operation not allowed on this transport")

type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
)

type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Errors is the "errors" list of a GraphQL response.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// OperationKind returns the kind of the first operation in the document.
// Anonymous shorthand documents ("{ ... }") are queries.
func OperationKind(query string) Kind {
	doc := strings.TrimSpace(stripComments(query))
	for doc != "" && doc[0] != '{' {
		word := doc
		if i := strings.IndexAny(doc, " \t\r\n,({"); i >= 0 {
			word = doc[:i]
		}
		switch word {
		case "subscription":
			return KindSubscription
		case "mutation":
			return KindMutation
		case "fragment":
			doc = strings.TrimSpace(skipBlock(doc))
			continue
		}
		return KindQuery
	}
	return KindQuery
}

// skipBlock drops everything up to and including the first balanced {...}.
func skipBlock(doc string) string {
	depth := 0
	for i, r := range doc {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return doc[i+1:]
			}
		}
	}
	return ""
}

func stripComments(q string) string {
	var b strings.Builder
	for _, line := range strings.Split(q, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

type Client struct {
	endpoint string
	http     *http.Client
	subs     *Subscriptions
	log      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.subs.delay = d }
}

// NewClient builds a client for one endpoint. wsURL serves subscriptions.
func NewClient(httpURL, wsURL string, opts ...Option) *Client {
	c := &Client{
		endpoint: httpURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		subs:     newSubscriptions(wsURL),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("graphql")
	c.subs.log = c.log
	return c
}

// Do runs a query or mutation over HTTP and decodes "data" into out.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if kind := OperationKind(req.Query); kind == KindSubscription {
		return fmt.Errorf("%s over http: %w", kind, ErrWrongTransport)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("post %s: unexpected status %d: %s", c.endpoint, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(r.Errors) > 0 {
		return r.Errors
	}
	if out == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// Subscribe registers a subscription on the persistent channel. It stays
// registered, across reconnects, until ctx is cancelled or Close is called.
func (c *Client) Subscribe(ctx context.Context, req Request, h Handler) (*Subscription, error) {
	if kind := OperationKind(req.Query); kind != KindSubscription {
		return nil, fmt.Errorf("%s over websocket: %w", kind, ErrWrongTransport)
	}
	return c.subs.add(ctx, req, h)
}

// Run keeps the subscription channel connected until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	return c.subs.run(ctx)
}
