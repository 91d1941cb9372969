package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"

	"go.klb.dev/cliptext/internal/crypto"
	"go.klb.dev/cliptext/internal/linepeer"
)

// matchTimeout bounds how long a new connection may take to show its first
// bytes before cmux gives up on it.
const matchTimeout = 5 * time.Second

// Server serves the control socket.
type Server struct {
	svc   *Service
	grpc  *grpc.Server
	token string
	key   *crypto.Key
}

// NewServer builds a Server for eng. token may be empty to disable auth and
// line-protocol encryption.
func NewServer(eng Engine, token, version string) (*Server, error) {
	key, err := crypto.DeriveKey(token)
	if err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	svc := NewService(eng, token, version)
	gs := grpc.NewServer(grpc.UnaryInterceptor(svc.authorize))
	gs.RegisterService(&serviceDesc, svc)
	return &Server{svc: svc, grpc: gs, token: token, key: key}, nil
}

// Serve accepts connections on ln until ctx is cancelled or ln fails. It
// closes ln and every open connection before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := cmux.New(ln)
	m.SetReadTimeout(matchTimeout)
	grpcL := m.Match(cmux.HTTP2())
	lineL := m.Match(cmux.Any())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.grpc.Serve(grpcL); err != nil && !closedErr(err) {
			slog.Warn("grpc serve stopped", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		s.serveLines(ctx, lineL)
	}()

	errc := make(chan error, 1)
	go func() { errc <- m.Serve() }()

	var err error
	select {
	case <-ctx.Done():
		ln.Close()
		<-errc
	case err = <-errc:
		if closedErr(err) {
			err = nil
		}
	}
	cancel()
	s.grpc.Stop()
	wg.Wait()
	return err
}

func (s *Server) serveLines(ctx context.Context, ln net.Listener) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !closedErr(err) {
				slog.Warn("watch accept failed", "err", err)
			}
			return
		}
		p := linepeer.New(conn, s.svc.eng.Hub(), s.token, s.key)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Serve(ctx)
		}()
	}
}

func closedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed) ||
		errors.Is(err, grpc.ErrServerStopped)
}
