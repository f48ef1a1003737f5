package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"path"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const filesEndpoint = "/v1/files"

// Client talks to the workload supervisor's file API over its unix socket.
// It implements FileClient. Calls are synchronous and are never retried: a
// transport failure is returned immediately as *ConnectionError so the
// caller can decide on retry policy.
type Client struct {
	cfg     Config
	http    *resty.Client
	log     *zap.Logger
	metrics *metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRegistry registers the client's operation counters with reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = newMetrics(reg) }
}

// NewClient creates a client for the supervisor socket named in cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", cfg.Socket)
		},
	}

	rc := resty.New().
		SetBaseURL("http://localhost").
		SetTransport(transport).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "pathkit-client/1.0").
		SetDoNotParseResponse(true)

	c := &Client{cfg: cfg, http: rc, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the remote target this client addresses.
func (c *Client) Name() string { return c.cfg.Name }

// wire envelopes

type wireError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type listResponse struct {
	Result []FileInfo `json:"result"`
	Error  *wireError `json:"error,omitempty"`
}

type fileResult struct {
	Path  string     `json:"path"`
	Error *wireError `json:"error,omitempty"`
}

type opResponse struct {
	Result []fileResult `json:"result"`
	Error  *wireError   `json:"error,omitempty"`
}

type writeFile struct {
	Path        string `json:"path"`
	MakeDirs    bool   `json:"make-dirs,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	User        string `json:"user,omitempty"`
	Group       string `json:"group,omitempty"`
}

type makeDirItem struct {
	Path        string `json:"path"`
	MakeParents bool   `json:"make-parents,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	User        string `json:"user,omitempty"`
	Group       string `json:"group,omitempty"`
}

type removeItem struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive,omitempty"`
}

// Pull reads the file at the given remote path. The returned reader streams
// the raw contents and must be closed by the caller.
func (c *Client) Pull(ctx context.Context, p string) (io.ReadCloser, error) {
	resp, err := c.request(ctx, "pull", p).
		SetQueryParams(map[string]string{"action": "read", "path": p}).
		Get(filesEndpoint)
	if err != nil {
		return nil, c.failTransport("pull", err)
	}
	if resp.StatusCode() != http.StatusOK {
		defer resp.RawBody().Close()
		return nil, c.failAPI("pull", p, resp.RawBody())
	}
	c.count("pull")
	return resp.RawBody(), nil
}

// Push writes source to the given remote path. Ownership and permissions are
// applied atomically on creation; an unresolvable user or group fails the
// whole operation with ErrorKindLookup before any content is written.
func (c *Client) Push(ctx context.Context, p string, source io.Reader, opts PushOptions) error {
	meta := struct {
		Action string      `json:"action"`
		Files  []writeFile `json:"files"`
	}{
		Action: "write",
		Files: []writeFile{{
			Path:        p,
			MakeDirs:    opts.MakeDirs,
			Permissions: encodeMode(opts.Permissions),
			User:        opts.User,
			Group:       opts.Group,
		}},
	}
	body, err := sonic.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to encode push request: %w", err)
	}

	resp, err := c.request(ctx, "push", p).
		SetMultipartFields(
			&resty.MultipartField{
				Param:       "request",
				ContentType: "application/json",
				Reader:      bytes.NewReader(body),
			},
			&resty.MultipartField{
				Param:    "files",
				FileName: path.Base(p),
				Reader:   source,
			},
		).
		Post(filesEndpoint)
	if err != nil {
		return c.failTransport("push", err)
	}
	defer resp.RawBody().Close()
	if err := c.decodeOp("push", p, resp); err != nil {
		return err
	}
	c.count("push")
	return nil
}

// List returns metadata for the entries selected by opts under the given
// remote path. With opts.Itself it returns the entry for the path itself,
// which is the protocol's only metadata query.
func (c *Client) List(ctx context.Context, p string, opts ListOptions) ([]FileInfo, error) {
	params := map[string]string{"action": "list", "path": p}
	if opts.Pattern != "" {
		params["pattern"] = opts.Pattern
	}
	if opts.Itself {
		params["itself"] = "true"
	}

	resp, err := c.request(ctx, "list", p).SetQueryParams(params).Get(filesEndpoint)
	if err != nil {
		return nil, c.failTransport("list", err)
	}
	defer resp.RawBody().Close()

	body, err := io.ReadAll(resp.RawBody())
	if err != nil {
		return nil, c.failTransport("list", err)
	}
	var decoded listResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	if decoded.Error != nil {
		return nil, c.apiError("list", p, decoded.Error)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, c.apiError("list", p, &wireError{Kind: ErrorKindGeneric, Message: resp.Status()})
	}
	c.count("list")
	return decoded.Result, nil
}

// MakeDir creates a directory at the given remote path.
func (c *Client) MakeDir(ctx context.Context, p string, opts MakeDirOptions) error {
	payload := struct {
		Action string        `json:"action"`
		Dirs   []makeDirItem `json:"dirs"`
	}{
		Action: "make-dirs",
		Dirs: []makeDirItem{{
			Path:        p,
			MakeParents: opts.MakeParents,
			Permissions: encodeMode(opts.Permissions),
			User:        opts.User,
			Group:       opts.Group,
		}},
	}
	if err := c.post(ctx, "make-dir", p, &payload); err != nil {
		return err
	}
	c.count("make-dir")
	return nil
}

// Remove deletes the entry at the given remote path. Non-empty directories
// are refused unless recursive is set.
func (c *Client) Remove(ctx context.Context, p string, recursive bool) error {
	payload := struct {
		Action string       `json:"action"`
		Paths  []removeItem `json:"paths"`
	}{
		Action: "remove",
		Paths:  []removeItem{{Path: p, Recursive: recursive}},
	}
	if err := c.post(ctx, "remove", p, &payload); err != nil {
		return err
	}
	c.count("remove")
	return nil
}

func (c *Client) post(ctx context.Context, op, p string, payload any) error {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}
	resp, err := c.request(ctx, op, p).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(filesEndpoint)
	if err != nil {
		return c.failTransport(op, err)
	}
	defer resp.RawBody().Close()
	return c.decodeOp(op, p, resp)
}

// decodeOp parses a per-file operation response and surfaces the first
// error, either from the envelope or from an individual file result.
func (c *Client) decodeOp(op, p string, resp *resty.Response) error {
	body, err := io.ReadAll(resp.RawBody())
	if err != nil {
		return c.failTransport(op, err)
	}
	var decoded opResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	if decoded.Error != nil {
		return c.apiError(op, p, decoded.Error)
	}
	for _, r := range decoded.Result {
		if r.Error != nil {
			target := r.Path
			if target == "" {
				target = p
			}
			return c.apiError(op, target, r.Error)
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return c.apiError(op, p, &wireError{Kind: ErrorKindGeneric, Message: resp.Status()})
	}
	return nil
}

func (c *Client) request(ctx context.Context, op, p string) *resty.Request {
	id := uuid.NewString()
	c.log.Debug("supervisor request",
		zap.String("op", op),
		zap.String("path", p),
		zap.String("request_id", id),
	)
	return c.http.R().SetContext(ctx).SetHeader("X-Request-Id", id)
}

// failAPI reads an error envelope from body and converts it.
func (c *Client) failAPI(op, p string, body io.Reader) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return c.failTransport(op, err)
	}
	var decoded opResponse
	if err := sonic.Unmarshal(raw, &decoded); err != nil || decoded.Error == nil {
		return c.apiError(op, p, &wireError{Kind: ErrorKindGeneric, Message: string(raw)})
	}
	return c.apiError(op, p, decoded.Error)
}

func (c *Client) apiError(op, p string, we *wireError) error {
	c.countError(op, we.Kind)
	c.log.Debug("supervisor error",
		zap.String("op", op),
		zap.String("path", p),
		zap.String("kind", string(we.Kind)),
	)
	return &Error{Kind: we.Kind, Path: p, Message: we.Message}
}

func (c *Client) failTransport(op string, err error) error {
	c.countError(op, "connection")
	return &ConnectionError{Addr: c.cfg.Socket, Err: err}
}

func (c *Client) count(op string) {
	if c.metrics != nil {
		c.metrics.ops.WithLabelValues(op).Inc()
	}
}

func (c *Client) countError(op string, kind ErrorKind) {
	if c.metrics != nil {
		c.metrics.ops.WithLabelValues(op).Inc()
		c.metrics.errs.WithLabelValues(op, string(kind)).Inc()
	}
}

// encodeMode renders permission bits as the protocol's octal string. Zero
// means "use the server default" and is encoded as absence.
func encodeMode(mode fs.FileMode) string {
	if mode == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(mode.Perm()), 8)
}
