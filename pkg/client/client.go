// Package client issues chat requests over the wire protocol. Every call
// opens its own connection, sends one request and reads one response.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/models"
	"codeuchat/pkg/wire"
)

var ErrNoMessage = errors.New("server does not support the request")

type Client struct {
	addr    string
	timeout time.Duration
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithDialer replaces net.Dialer, e.g. to reach a server over net.Pipe.
func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.dial = dial }
}

func New(addr string, opts ...Option) *Client {
	c := &Client{addr: addr, timeout: 5 * time.Second}
	var d net.Dialer
	c.dial = d.DialContext
	for _, o := range opts {
		o(c)
	}
	return c
}

// call sends one request and decodes the response body with read once the
// expected response code is seen.
func (c *Client) call(ctx context.Context, req wire.Code, write func(*wire.Writer), resp wire.Code, read func(*wire.Reader)) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	w := wire.NewWriter(conn)
	w.Code(req)
	if write != nil {
		write(w)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("send %s: %w", req, err)
	}

	r := wire.NewReader(conn)
	got := r.Code()
	if err := r.Err(); err != nil {
		return fmt.Errorf("read %s: %w", req, err)
	}
	if got == wire.NoMessage {
		return ErrNoMessage
	}
	if got != resp {
		return fmt.Errorf("unexpected response %s to %s", got, req)
	}
	read(r)
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode %s: %w", resp, err)
	}
	return nil
}

func (c *Client) ServerInfo(ctx context.Context) (wire.ServerInfo, error) {
	var info wire.ServerInfo
	err := c.call(ctx, wire.ServerInfoRequest, nil, wire.ServerInfoResponse, func(r *wire.Reader) {
		info = wire.ReadServerInfo(r)
	})
	return info, err
}

// NewUser returns nil without error when the server rejected the name.
func (c *Client) NewUser(ctx context.Context, name string) (*models.User, error) {
	var u *models.User
	err := c.call(ctx, wire.NewUserRequest, func(w *wire.Writer) {
		w.Text(name)
	}, wire.NewUserResponse, func(r *wire.Reader) {
		u = wire.ReadNullable(r, wire.ReadUser)
	})
	return u, err
}

func (c *Client) NewConversation(ctx context.Context, title string, owner ids.ID, control models.Control) (*models.ConversationHeader, error) {
	var h *models.ConversationHeader
	err := c.call(ctx, wire.NewConversationRequest, func(w *wire.Writer) {
		w.Text(title)
		w.ID(owner)
		w.Byte(byte(control))
	}, wire.NewConversationResponse, func(r *wire.Reader) {
		h = wire.ReadNullable(r, wire.ReadHeader)
	})
	return h, err
}

func (c *Client) NewMessage(ctx context.Context, author, conversation ids.ID, body string) (*models.Message, error) {
	var m *models.Message
	err := c.call(ctx, wire.NewMessageRequest, func(w *wire.Writer) {
		w.ID(author)
		w.ID(conversation)
		w.Text(body)
	}, wire.NewMessageResponse, func(r *wire.Reader) {
		m = wire.ReadNullable(r, wire.ReadMessage)
	})
	return m, err
}

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := c.call(ctx, wire.GetUsersRequest, nil, wire.GetUsersResponse, func(r *wire.Reader) {
		out = wire.ReadList(r, wire.ReadUser)
	})
	return out, err
}

func (c *Client) Conversations(ctx context.Context) ([]models.ConversationHeader, error) {
	var out []models.ConversationHeader
	err := c.call(ctx, wire.GetAllConversationsRequest, nil, wire.GetAllConversationsResponse, func(r *wire.Reader) {
		out = wire.ReadList(r, wire.ReadHeader)
	})
	return out, err
}

func (c *Client) Payloads(ctx context.Context, list []ids.ID) ([]models.ConversationPayload, error) {
	var out []models.ConversationPayload
	err := c.call(ctx, wire.GetConversationsByIDRequest, func(w *wire.Writer) {
		wire.WriteList(w, list, wire.WriteID)
	}, wire.GetConversationsByIDResponse, func(r *wire.Reader) {
		out = wire.ReadList(r, wire.ReadPayload)
	})
	return out, err
}

func (c *Client) Messages(ctx context.Context, list []ids.ID) ([]models.Message, error) {
	var out []models.Message
	err := c.call(ctx, wire.GetMessagesByIDRequest, func(w *wire.Writer) {
		wire.WriteList(w, list, wire.WriteID)
	}, wire.GetMessagesByIDResponse, func(r *wire.Reader) {
		out = wire.ReadList(r, wire.ReadMessage)
	})
	return out, err
}

func (c *Client) boolCall(ctx context.Context, req wire.Code, write func(*wire.Writer), resp wire.Code) (bool, error) {
	var ok bool
	err := c.call(ctx, req, write, resp, func(r *wire.Reader) { ok = r.Bool() })
	return ok, err
}

func (c *Client) ChangeDefault(ctx context.Context, conversation ids.ID, control models.Control) (bool, error) {
	return c.boolCall(ctx, wire.ChangeDefaultRequest, func(w *wire.Writer) {
		w.ID(conversation)
		w.Byte(byte(control))
	}, wire.ChangeDefaultResponse)
}

// Default returns nil when the conversation is unknown.
func (c *Client) Default(ctx context.Context, conversation ids.ID) (*models.Control, error) {
	var out *models.Control
	err := c.call(ctx, wire.RetrieveDefaultRequest, func(w *wire.Writer) {
		w.ID(conversation)
	}, wire.RetrieveDefaultResponse, func(r *wire.Reader) {
		if b := wire.ReadNullable(r, wire.ReadByteValue); b != nil {
			ctl := models.Control(*b)
			out = &ctl
		}
	})
	return out, err
}

func (c *Client) DeleteConversation(ctx context.Context, id ids.ID) (bool, error) {
	return c.boolCall(ctx, wire.DeleteConversationRequest, func(w *wire.Writer) { w.ID(id) }, wire.DeleteConversationResponse)
}

func (c *Client) DeleteUser(ctx context.Context, id ids.ID) (bool, error) {
	return c.boolCall(ctx, wire.DeleteUserRequest, func(w *wire.Writer) { w.ID(id) }, wire.DeleteUserResponse)
}

func (c *Client) ChangeAccess(ctx context.Context, username string, conversation ids.ID, flags models.Access) (bool, error) {
	return c.boolCall(ctx, wire.ChangeAccessRequest, func(w *wire.Writer) {
		w.Text(username)
		w.ID(conversation)
		w.Byte(byte(flags))
	}, wire.ChangeAccessResponse)
}

var checkCodes = map[models.Kind]wire.Code{
	models.KindMember:  wire.CheckMemberRequest,
	models.KindOwner:   wire.CheckOwnerRequest,
	models.KindCreator: wire.CheckCreatorRequest,
	models.KindRemoved: wire.CheckRemovedRequest,
}

func (c *Client) CheckAccess(ctx context.Context, user, conversation ids.ID, kind models.Kind) (bool, error) {
	code, ok := checkCodes[kind]
	if !ok {
		return false, fmt.Errorf("unknown access kind %d", kind)
	}
	return c.boolCall(ctx, code, func(w *wire.Writer) {
		w.ID(user)
		w.ID(conversation)
	}, wire.UserStatusResponse)
}

// Raw sends a bare request code and returns the response code. Used to
// probe servers for supported requests.
func (c *Client) Raw(ctx context.Context, code wire.Code) (wire.Code, error) {
	var got wire.Code
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}
	w := wire.NewWriter(conn)
	w.Code(code)
	if err := w.Flush(); err != nil {
		return 0, err
	}
	r := wire.NewReader(conn)
	got = r.Code()
	return got, r.Err()
}
