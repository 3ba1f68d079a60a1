package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"codeuchat/pkg/ids"
)

const (
	HeaderTeamID     = "X-Team-Id"
	HeaderTeamSecret = "X-Team-Secret"
	BundlesPath      = "/v1/bundles"

	DefaultTimeout = 3 * time.Second
)

// WriteRequest is the body of a bundle publish.
type WriteRequest struct {
	User         Component `json:"user"`
	Conversation Component `json:"conversation"`
	Message      Component `json:"message"`
}

// ReadResponse is the body of a bundle listing.
type ReadResponse struct {
	Bundles []Bundle `json:"bundles"`
}

// Remote talks to a relay service over HTTP. Every call is bounded by the
// context deadline or Timeout, whichever is shorter.
type Remote struct {
	base    string
	client  *fasthttp.Client
	Timeout time.Duration
}

type RemoteOption func(*Remote)

// WithDial replaces the dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) RemoteOption {
	return func(r *Remote) { r.client.Dial = dial }
}

func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) { r.Timeout = d }
}

// NewRemote targets the relay at addr ("host:port").
func NewRemote(addr string, opts ...RemoteOption) *Remote {
	r := &Remote{
		base: "http://" + addr,
		client: &fasthttp.Client{
			Name:                "codeuchat-relay-client",
			MaxConnsPerHost:     4,
			MaxIdleConnDuration: 30 * time.Second,
		},
		Timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Remote) timeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := r.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	return d, nil
}

func (r *Remote) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	d, err := r.timeout(ctx)
	if err != nil {
		return err
	}
	if err := r.client.DoTimeout(req, resp, d); err != nil {
		return fmt.Errorf("relay request %s: %w", req.URI().Path(), err)
	}
	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusUnauthorized:
		return ErrUnauthorized
	case code == fasthttp.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 300:
		return fmt.Errorf("relay %s: unexpected status %d: %s", req.URI().Path(), code, resp.Body())
	}
	return nil
}

func auth(req *fasthttp.Request, team ids.ID, secret Secret) {
	req.Header.Set(HeaderTeamID, team.String())
	req.Header.Set(HeaderTeamSecret, secret.String())
}

func (r *Remote) Write(ctx context.Context, team ids.ID, secret Secret, user, conversation, message Component) error {
	body, err := json.Marshal(WriteRequest{User: user, Conversation: conversation, Message: message})
	if err != nil {
		return err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.base + BundlesPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	auth(req, team, secret)
	req.SetBody(body)
	return r.do(ctx, req, resp)
}

func (r *Remote) Read(ctx context.Context, team ids.ID, secret Secret, root ids.ID, limit int) ([]Bundle, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.base + BundlesPath + "?root=" + root.String() + "&limit=" + strconv.Itoa(limit))
	req.Header.SetMethod(fasthttp.MethodGet)
	auth(req, team, secret)
	if err := r.do(ctx, req, resp); err != nil {
		return nil, err
	}
	var out ReadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode relay bundles: %w", err)
	}
	return out.Bundles, nil
}
