// Package server implements the TCP accept loop: per-IP admission rate
// limiting, the blacklist/ban security gate, the version handshake, and
// wiring each accepted socket into a conn.Connection plus its handler,
// following the teacher's listener-goroutine-per-connection accept loop.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rymc/roomserver/internal/v1/conn"
	"github.com/rymc/roomserver/internal/v1/handler"
	"github.com/rymc/roomserver/internal/v1/identity"
	"github.com/rymc/roomserver/internal/v1/metrics"
	"github.com/rymc/roomserver/internal/v1/monitors"
	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"github.com/rymc/roomserver/internal/v1/room"
	"github.com/rymc/roomserver/internal/v1/security"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// Server owns the listening socket and every live Connection it has
// accepted, so graceful shutdown can close them all.
type Server struct {
	listenAddr string
	table      *room.Table
	identity   *identity.Client
	monitors   *monitors.Set
	security   *security.Store
	decode     *wire.Registry
	encode     *wire.Registry
	admission  *limiter.Limiter
	log        *zap.Logger

	mu        sync.Mutex
	listener  net.Listener
	conns     map[string]*conn.Connection
	closeOnce sync.Once
}

// New builds a Server. admissionRate is a ulule/limiter formatted rate
// string such as "10-S" (10 connections per second per IP).
func New(listenAddr string, table *room.Table, identityClient *identity.Client, monitorSet *monitors.Set, securityStore *security.Store, admissionRate string, log *zap.Logger) (*Server, error) {
	rate, err := limiter.NewRateFromFormatted(admissionRate)
	if err != nil {
		return nil, fmt.Errorf("server: invalid admission rate %q: %w", admissionRate, err)
	}
	return &Server{
		listenAddr: listenAddr,
		table:      table,
		identity:   identityClient,
		monitors:   monitorSet,
		security:   securityStore,
		decode:     wire.NewServerBoundRegistry(),
		encode:     wire.NewClientBoundRegistry(),
		admission:  limiter.New(memory.NewStore(), rate),
		log:        log,
		conns:      make(map[string]*conn.Connection),
	}, nil
}

// ListenAndServe binds listenAddr and accepts connections until ctx is
// canceled, at which point it stops accepting and closes every live
// Connection (triggering every disconnect hook).
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.listenAddr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	s.log.Info("listening", zap.String("addr", s.listenAddr))
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn("accept error", zap.Error(err))
				continue
			}
		}
		go s.handleConn(nc)
	}
}

// Shutdown stops accepting new connections and closes every live one. It is
// idempotent and safe to call multiple times (e.g. once from ctx.Done and
// once from a signal handler).
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		conns := make([]*conn.Connection, 0, len(s.conns))
		for _, c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		for _, c := range conns {
			c.Close(conn.CloseReasonServer)
		}
	})
}

func (s *Server) handleConn(nc net.Conn) {
	ip, _, err := net.SplitHostPort(nc.RemoteAddr().String())
	if err != nil {
		ip = nc.RemoteAddr().String()
	}

	// Admission limiter gates before any security-store lookup, so an
	// over-rate IP is dropped without paying for a blacklist/ban check.
	limCtx, err := s.admission.Get(context.Background(), ip)
	if err == nil && limCtx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("connection-admission").Inc()
		s.log.Debug("admission rate limit exceeded", zap.String("ip", ip))
		nc.Close()
		return
	}

	if s.security.IsBlacklistedIP(ip) {
		s.log.Debug("rejected blacklisted IP", zap.String("ip", ip))
		nc.Close()
		return
	}
	if _, banned := s.security.IsBanned(security.BanTypeIP, ip); banned {
		s.log.Debug("rejected banned IP", zap.String("ip", ip))
		nc.Close()
		return
	}

	versionByte := make([]byte, 1)
	if _, err := nc.Read(versionByte); err != nil {
		nc.Close()
		return
	}
	if err := wire.CheckHandshake(versionByte[0]); err != nil {
		s.log.Debug("handshake rejected", zap.Error(err))
		nc.Close()
		return
	}

	id := uuid.NewString()
	var h *handler.Handler
	c := conn.New(id, nc, s.encode, s.decode,
		func(p wire.Packet) { h.OnReceive(p) },
		func(reason conn.CloseReason) {
			h.OnClose(reason)
			s.forgetConn(id)
		},
		conn.Options{}, s.log)
	h = handler.New(c, s.table, s.identity, s.monitors, s.log)

	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()
	metrics.IncConnection()

	c.ReadLoop()
}

// forgetConn removes a closed connection from the live set and decrements
// the active-connection gauge. Safe to call more than once for the same id.
func (s *Server) forgetConn(id string) {
	s.mu.Lock()
	_, ok := s.conns[id]
	if ok {
		delete(s.conns, id)
	}
	s.mu.Unlock()
	if ok {
		metrics.DecConnection()
	}
}
