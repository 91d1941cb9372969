// Package control exposes the engine on the local control socket.
//
// Commands run over gRPC with a JSON codec and a hand-written service
// descriptor, so there is no generated code to keep in sync. The watch stream
// runs over the line protocol (package linepeer). Both share one listener,
// split by cmux on the HTTP/2 client preface.
package control

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/cliptext/internal/engine"
	"go.klb.dev/cliptext/internal/hub"
	"go.klb.dev/cliptext/internal/message"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cliptext.v1.History"

const (
	codecName    = "json"
	sourceHeader = "x-cliptext-source"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() { encoding.RegisterCodec(jsonCodec{}) }

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

type ListResponse struct {
	History message.HistoryView `json:"history"`
}

type EntryRequest struct {
	ID string `json:"id"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type PinResponse struct {
	Pinned bool `json:"pinned"`
}

type ClearResponse struct {
	Removed int `json:"removed"`
}

type PasteRequest struct {
	ID     string `json:"id"`
	Plain  bool   `json:"plain,omitempty"`
	Target string `json:"target,omitempty"`
}

type StatusResponse struct {
	Version string `json:"version"`
	engine.Status
}

// HistoryServer is the server API of the History service.
type HistoryServer interface {
	List(context.Context, *Empty) (*ListResponse, error)
	Text(context.Context, *EntryRequest) (*TextResponse, error)
	TogglePin(context.Context, *EntryRequest) (*PinResponse, error)
	Remove(context.Context, *EntryRequest) (*Empty, error)
	Clear(context.Context, *Empty) (*ClearResponse, error)
	Paste(context.Context, *PasteRequest) (*Empty, error)
	Status(context.Context, *Empty) (*StatusResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("List", HistoryServer.List),
		unary("Text", HistoryServer.Text),
		unary("TogglePin", HistoryServer.TogglePin),
		unary("Remove", HistoryServer.Remove),
		unary("Clear", HistoryServer.Clear),
		unary("Paste", HistoryServer.Paste),
		unary("Status", HistoryServer.Status),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cliptext/v1/history",
}

func unary[Req, Resp any](name string, call func(HistoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HistoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(HistoryServer), ctx, req.(*Req))
			})
		},
	}
}

func method(name string) string { return "/" + ServiceName + "/" + name }

// Engine is what the service needs from the history engine.
type Engine interface {
	View() message.HistoryView
	Text(uuid.UUID) (string, error)
	TogglePin(uuid.UUID) (bool, error)
	Remove(uuid.UUID) error
	Clear() int
	Paste(id uuid.UUID, plain bool, target string) error
	Status() engine.Status
	Hub() *hub.Hub
}

// Service implements HistoryServer on top of an Engine.
type Service struct {
	eng     Engine
	token   string // empty = no auth
	version string
}

// NewService returns a Service backed by eng. token may be empty to disable
// auth.
func NewService(eng Engine, token, version string) *Service {
	return &Service{eng: eng, token: token, version: version}
}

func (s *Service) List(context.Context, *Empty) (*ListResponse, error) {
	return &ListResponse{History: s.eng.View()}, nil
}

func (s *Service) Text(_ context.Context, req *EntryRequest) (*TextResponse, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	text, err := s.eng.Text(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TextResponse{Text: text}, nil
}

func (s *Service) TogglePin(_ context.Context, req *EntryRequest) (*PinResponse, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	pinned, err := s.eng.TogglePin(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PinResponse{Pinned: pinned}, nil
}

func (s *Service) Remove(_ context.Context, req *EntryRequest) (*Empty, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.eng.Remove(id); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Service) Clear(context.Context, *Empty) (*ClearResponse, error) {
	return &ClearResponse{Removed: s.eng.Clear()}, nil
}

func (s *Service) Paste(ctx context.Context, req *PasteRequest) (*Empty, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.eng.Paste(id, req.Plain, req.Target); err != nil {
		slog.Debug("paste request failed", "id", id, "from", sourceFromCtx(ctx), "err", err)
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Service) Status(context.Context, *Empty) (*StatusResponse, error) {
	return &StatusResponse{Version: s.version, Status: s.eng.Status()}, nil
}

// authorize is a unary interceptor validating the bearer token.
func (s *Service) authorize(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if err := s.auth(ctx); err != nil {
		slog.Warn("control request rejected", "method", info.FullMethod, "from", sourceFromCtx(ctx), "err", err)
		return nil, err
	}
	return handler(ctx, req)
}

// auth validates the bearer token in ctx metadata. Skipped when s.token is empty.
func (s *Service) auth(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	tok := strings.TrimPrefix(vals[0], "Bearer ")
	if subtle.ConstantTimeCompare([]byte(tok), []byte(s.token)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "bad entry id %q", s)
	}
	return id, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, engine.ErrStale):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrNoPlainText):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

func sourceFromCtx(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(sourceHeader); len(vals) > 0 {
			return vals[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil && p.Addr.String() != "" {
		return p.Addr.String()
	}
	return "local"
}
