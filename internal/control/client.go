package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"go.klb.dev/cliptext/internal/crypto"
	"go.klb.dev/cliptext/internal/engine"
	"go.klb.dev/cliptext/internal/ipc"
	"go.klb.dev/cliptext/internal/linepeer"
	"go.klb.dev/cliptext/internal/message"
)

// maxTextSize bounds the reply to Text. The gRPC default of 4 MiB is far
// below what a copied log file can hold.
const maxTextSize = 1 << 30

// ErrUnauthenticated is returned when the daemon rejects the token.
var ErrUnauthenticated = errors.New("daemon rejected token")

// Client talks to a running daemon over its control socket.
type Client struct {
	socket string
	token  string
	source string
	conn   *grpc.ClientConn
}

// Dial returns a Client for the daemon at socket. The gRPC connection is
// established lazily on the first call.
func Dial(socket, token, source string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socket, dialOpts(token, source)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socket, err)
	}
	return &Client{socket: socket, token: token, source: source, conn: conn}, nil
}

// dialOpts returns gRPC dial options for the local socket (insecure).
func dialOpts(token, source string) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
	if token != "" || source != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&clientCreds{token: token, source: source}))
	}
	return opts
}

type clientCreds struct {
	token  string
	source string
}

func (c *clientCreds) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	md := make(map[string]string, 2)
	if c.token != "" {
		md["authorization"] = "Bearer " + c.token
	}
	if c.source != "" {
		md[sourceHeader] = c.source
	}
	return md, nil
}

func (c *clientCreds) RequireTransportSecurity() bool { return false }

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) invoke(ctx context.Context, name string, in, out any, opts ...grpc.CallOption) error {
	return fromStatus(c.conn.Invoke(ctx, method(name), in, out, opts...))
}

// List returns the current history.
func (c *Client) List(ctx context.Context) (message.HistoryView, error) {
	var out ListResponse
	if err := c.invoke(ctx, "List", &Empty{}, &out); err != nil {
		return message.HistoryView{}, err
	}
	return out.History, nil
}

// Text returns the full plain text of id. List only carries a preview.
func (c *Client) Text(ctx context.Context, id uuid.UUID) (string, error) {
	var out TextResponse
	if err := c.invoke(ctx, "Text", &EntryRequest{ID: id.String()}, &out, grpc.MaxCallRecvMsgSize(maxTextSize)); err != nil {
		return "", err
	}
	return out.Text, nil
}

// TogglePin flips the pin state of id and returns the new state.
func (c *Client) TogglePin(ctx context.Context, id uuid.UUID) (bool, error) {
	var out PinResponse
	if err := c.invoke(ctx, "TogglePin", &EntryRequest{ID: id.String()}, &out); err != nil {
		return false, err
	}
	return out.Pinned, nil
}

func (c *Client) Remove(ctx context.Context, id uuid.UUID) error {
	return c.invoke(ctx, "Remove", &EntryRequest{ID: id.String()}, &Empty{})
}

// Clear removes every unpinned entry and returns how many went.
func (c *Client) Clear(ctx context.Context) (int, error) {
	var out ClearResponse
	if err := c.invoke(ctx, "Clear", &Empty{}, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// Paste asks the daemon to write id back and paste it into target.
func (c *Client) Paste(ctx context.Context, id uuid.UUID, plain bool, target string) error {
	return c.invoke(ctx, "Paste", &PasteRequest{ID: id.String(), Plain: plain, Target: target}, &Empty{})
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.invoke(ctx, "Status", &Empty{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Watch opens a line-protocol connection and calls fn for every history
// snapshot until ctx is cancelled or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(message.HistoryView) error) error {
	key, err := crypto.DeriveKey(c.token)
	if err != nil {
		return fmt.Errorf("key derivation: %w", err)
	}
	conn, err := ipc.Dial(c.socket)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.socket, err)
	}
	err = linepeer.Watch(ctx, conn, c.token, c.source, key, fn)
	if errors.Is(err, linepeer.ErrRejected) {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return err
}

// fromStatus turns gRPC status codes back into the engine's sentinels.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return engine.ErrStale
	case codes.FailedPrecondition:
		return engine.ErrNoPlainText
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthenticated, status.Convert(err).Message())
	}
	return err
}
