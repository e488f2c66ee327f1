package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/match"
	"github.com/wfunc/flyknight/sim"
)

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer binds addr and registers the admin service for controller.
func NewServer(addr string, controller Controller) (*Server, error) {
	rs := rpc.NewServer()
	if err := rs.RegisterName("Admin", NewAdminService(controller)); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rs,
	}, nil
}

func (s *Server) Addr() string { return s.address }

// Start begins listening for RPC requests. It returns when the listener is
// closed.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Controller is the host surface the admin service drives.
type Controller interface {
	Status() match.Info
	Kick(id sim.PlayerID) error
}

// AdminService exposes match administration over net/rpc. Methods follow
// the net/rpc signature: exported args, pointer reply, error result.
type AdminService struct {
	controller Controller
}

func NewAdminService(c Controller) *AdminService {
	return &AdminService{controller: c}
}

type StatusArgs struct {
	Caller string
}

type StatusReply struct {
	Info match.Info
}

func (a *AdminService) Status(args *StatusArgs, reply *StatusReply) error {
	logger.Log.Debugw("admin status", "caller", args.Caller)
	reply.Info = a.controller.Status()
	return nil
}

type KickArgs struct {
	PlayerID sim.PlayerID
}

type KickReply struct {
	Kicked bool
}

func (a *AdminService) Kick(args *KickArgs, reply *KickReply) error {
	logger.Log.Infow("admin kick", "player_id", args.PlayerID)
	if err := a.controller.Kick(args.PlayerID); err != nil {
		return err
	}
	reply.Kicked = true
	return nil
}
