package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/pkg/store"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultReadLimit = 8 << 20
)

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for requests and websocket
// dials.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithClientLogger attaches a logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to a Server. It implements store.DocumentStore and
// store.BlobStore.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

var (
	_ store.DocumentStore = (*Client)(nil)
	_ store.BlobStore     = (*Client)(nil)
)

// NewClient returns a client for the server rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", parsed.Scheme)
	}
	c := &Client{
		base:   parsed,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Subscribe(ctx context.Context, ref store.Ref, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("remote: subscribe %s: nil callback", ref)
	}

	target := c.endpoint("collections", ref.Collection, ref.ID, "watch")
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}

	// The dial must not inherit the request timeout of c.http.
	dialClient := *c.http
	dialClient.Timeout = 0
	conn, _, err := websocket.Dial(ctx, target.String(), &websocket.DialOptions{HTTPClient: &dialClient})
	if err != nil {
		return nil, fmt.Errorf("remote: watch %s: %w", ref, err)
	}
	conn.SetReadLimit(defaultReadLimit)

	watchCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			conn.Close(websocket.StatusNormalClosure, "")
		})
	}

	go func() {
		defer stop()
		for {
			var msg WatchMessage
			if err := wsjson.Read(watchCtx, conn, &msg); err != nil {
				if watchCtx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					fn(store.Snapshot{}, fmt.Errorf("remote: watch %s: %w", ref, err))
				}
				return
			}
			if watchCtx.Err() != nil {
				return
			}
			switch msg.Type {
			case MessageError:
				fn(store.Snapshot{}, codeError("", msg.Error))
			case MessageSnapshot:
				snap := store.Snapshot{Ref: ref, Exists: msg.Exists, Data: msg.Data}
				if msg.UpdatedAt != nil {
					snap.UpdatedAt = *msg.UpdatedAt
				}
				fn(snap, nil)
			default:
				c.logger.Debug("remote: unknown watch message", zap.String("type", msg.Type))
			}
		}
	}()
	return stop, nil
}

func (c *Client) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if strings.TrimSpace(collection) == "" {
		return "", fmt.Errorf("%w: empty collection", store.ErrInvalidRef)
	}
	var out createResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint("collections", collection), data, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) Set(ctx context.Context, ref store.Ref, data map[string]any, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, c.endpoint("collections", ref.Collection, ref.ID), setRequest{Data: data, Merge: merge}, nil)
}

func (c *Client) Update(ctx context.Context, ref store.Ref, partial map[string]any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, c.endpoint("collections", ref.Collection, ref.ID), partial, nil)
}

func (c *Client) Get(ctx context.Context, ref store.Ref) (store.Snapshot, error) {
	if err := ref.Validate(); err != nil {
		return store.Snapshot{}, err
	}
	var snap store.Snapshot
	if err := c.do(ctx, http.MethodGet, c.endpoint("collections", ref.Collection, ref.ID), nil, &snap); err != nil {
		return store.Snapshot{}, err
	}
	snap.Ref = ref
	return snap, nil
}

// Upload sends data to the server, reporting progress as the request body
// is consumed.
func (c *Client) Upload(ctx context.Context, path string, data []byte, progress store.ProgressFunc) (string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", errors.New("remote: upload: empty path")
	}
	total := int64(len(data))
	body := &progressReader{r: bytes.NewReader(data), total: total, fn: progress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(append([]string{"blobs"}, strings.Split(path, "/")...)...).String(), body)
	if err != nil {
		return "", fmt.Errorf("remote: upload %s: %w", path, err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	if progress != nil && total == 0 {
		progress(0, 0)
	}
	return out.Reference, nil
}

func (c *Client) endpoint(segments ...string) *url.URL {
	u := *c.base
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	u.Path = c.base.Path + "/" + strings.Join(segments, "/")
	u.RawPath = c.base.EscapedPath() + "/" + strings.Join(escaped, "/")
	return &u
}

func (c *Client) do(ctx context.Context, method string, target *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode %s %s: %w", method, target.Path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, target.Path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var failure errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&failure); err != nil || failure.Error == "" {
			return fmt.Errorf("remote: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
		}
		return codeError(failure.Code, failure.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    store.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
