package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/wfunc/flyknight/broadcast"
	"github.com/wfunc/flyknight/catalog"
	"github.com/wfunc/flyknight/config"
	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/ingest"
	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/match"
	"github.com/wfunc/flyknight/monitor"
	"github.com/wfunc/flyknight/network"
	"github.com/wfunc/flyknight/peer"
	gamerpc "github.com/wfunc/flyknight/rpc"
	"github.com/wfunc/flyknight/sim"
)

const (
	maxNameLength   = 16
	defaultName     = "Knight"
	dropRateLimited = "rate_limited"
)

var (
	ErrNotJoined     = errors.New("frame before join")
	ErrUnexpected    = errors.New("unexpected kind from client")
	ErrUnknownPlayer = errors.New("unknown player")
)

// GameServer hosts one match: it accepts connections, turns their frames
// into queued input and lets the match loop do everything else.
type GameServer struct {
	cfg         *config.Config
	codec       *network.Codec
	listener    *network.Listener
	peers       *peer.Manager
	hub         *ingest.Hub
	broadcaster *broadcast.Broadcaster
	match       *match.Match
	monitor     *monitor.Monitor
	rpcServer   *gamerpc.Server

	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownChan chan struct{}
}

// NewGameServer generates the dungeon and builds the match. Nothing listens
// until Start or Serve.
func NewGameServer(cfg *config.Config, cat *catalog.Catalog, gen dungeon.Generator) (*GameServer, error) {
	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		cfg.Sim.Seed = seed
	}
	graph, err := gen.Generate(seed, cfg.Sim.RoomCount)
	if err != nil {
		return nil, fmt.Errorf("generate dungeon: %w", err)
	}

	codec, err := network.NewCodec(cfg.Net.CompressionThreshold)
	if err != nil {
		return nil, err
	}

	s := &GameServer{
		cfg:          cfg,
		codec:        codec,
		monitor:      monitor.NewMonitor("flyknight"),
		peers:        peer.NewManager(cfg.Server.MaxPlayers, cfg.Net.InboundRate, cfg.Net.InboundBurst),
		shutdownChan: make(chan struct{}),
	}
	s.hub = ingest.NewHub(cfg.Net.InputQueueLimit, s.monitor)
	s.broadcaster = broadcast.NewBroadcaster(codec, s.peers, s.monitor)
	session := sim.NewSession(cfg.Sim, graph, cat)
	s.match = match.New(uuid.NewString(), session, cfg.Sim.TickRate, s.hub, s.broadcaster, s.monitor)

	logger.Log.Infow("match created", "match_id", s.match.ID, "seed", seed, "rooms", len(graph.Rooms))
	return s, nil
}

// Start binds the game port plus the optional metrics and admin listeners
// and begins serving.
func (s *GameServer) Start(ctx context.Context) error {
	l, err := network.Listen(s.cfg.Server.Host, s.cfg.Server.Port, s.cfg.Net.SendQueueSize)
	if err != nil {
		return err
	}
	if s.cfg.Server.MetricsAddress != "" {
		s.monitor.StartServer(s.cfg.Server.MetricsAddress, func() any { return s.Status() })
		logger.Log.Infof("Metrics listening on %s", s.cfg.Server.MetricsAddress)
	}
	if s.cfg.Server.RPCAddress != "" {
		rpcServer, err := gamerpc.NewServer(s.cfg.Server.RPCAddress, s)
		if err != nil {
			l.Close()
			return fmt.Errorf("rpc server: %w", err)
		}
		s.rpcServer = rpcServer
		go rpcServer.Start()
	}
	logger.Log.Infof("Game server listening on %s", l.Addr())
	s.Serve(ctx, l)
	return nil
}

// Serve runs the match loop and accepts from l in the background.
func (s *GameServer) Serve(ctx context.Context, l *network.Listener) {
	s.listener = l
	go s.match.Run(ctx)
	s.wg.Add(1)
	go s.acceptLoop(ctx, l)
}

// Addr is the bound game address, if Start bound one.
func (s *GameServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *GameServer) Match() *match.Match { return s.match }

func (s *GameServer) Monitor() *monitor.Monitor { return s.monitor }

// Status implements the admin controller. The published match info is
// shared, so the player list is copied before connection details go in.
func (s *GameServer) Status() match.Info {
	info := s.match.Info()
	info.Connections = s.peers.Count()
	info.MaxPlayers = s.peers.Max()
	info.PendingInputs = s.hub.Pending()

	now := time.Now()
	players := make([]match.PlayerInfo, len(info.Players))
	copy(players, info.Players)
	for i := range players {
		if p, ok := s.peers.ByPlayer(players[i].ID); ok {
			players[i].IdleSeconds = now.Sub(p.LastActive()).Seconds()
		}
	}
	info.Players = players
	return info
}

// Kick removes a player. The departure is recorded before the connection
// closes, so the reader's own departure is ignored.
func (s *GameServer) Kick(id sim.PlayerID) error {
	p, ok := s.peers.ByPlayer(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
	s.hub.Leave(id, sim.ReasonKicked)
	p.Conn.CloseWithReason(sim.ReasonKicked)
	return nil
}

func (s *GameServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if s.listener != nil {
			s.listener.Close()
		}
		for _, p := range s.peers.All() {
			p.Conn.CloseWithReason(network.ReasonShutdown)
		}
		s.match.Close()
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.monitor.Shutdown(ctx)
	})
}

// Wait blocks until the accept loop and every connection handler returned.
func (s *GameServer) Wait() {
	s.wg.Wait()
}

func (s *GameServer) acceptLoop(ctx context.Context, l *network.Listener) {
	defer s.wg.Done()
	for {
		c, err := l.Accept(ctx)
		if err != nil {
			return
		}
		p, err := s.peers.Add(c)
		if err != nil {
			logger.Log.Infow("connection rejected", "conn_id", c.ID(), "remote", c.RemoteAddr(), "reason", network.ReasonSessionFull)
			if frame, err := s.codec.Encode(network.KindJoinRejected, network.JoinRejected{Reason: network.ReasonSessionFull}); err == nil {
				c.Send(frame)
			}
			c.CloseWithReason(network.ReasonSessionFull)
			continue
		}
		logger.Log.Infow("new connection", "conn_id", p.ConnID, "remote", c.RemoteAddr())
		s.wg.Add(1)
		go s.handleConnection(p, c)
	}
}

func (s *GameServer) handleConnection(p *peer.Peer, c *network.Conn) {
	defer s.wg.Done()
	c.SetLiveness(s.cfg.Sim.LivenessWindow())

	reason := sim.ReasonDisconnected
	defer func() {
		s.peers.Remove(p.ConnID)
		if id := p.PlayerID(); id != 0 && s.hub.Leave(id, reason) {
			logger.Log.Infow("player disconnected", "player_id", id, "conn_id", p.ConnID, "reason", reason)
		}
		c.CloseWithReason(reason)
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}
		frame, err := c.Receive()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				reason = sim.ReasonTimeout
				return
			}
			if !errors.Is(err, network.ErrProtocol) {
				return
			}
		} else if !p.Allow() {
			s.monitor.InputDropped(dropRateLimited)
			continue
		} else {
			p.Touch()
			s.monitor.IncFramesReceived()
			err = s.handleFrame(p, frame)
		}

		if err != nil {
			s.monitor.IncProtocolErrors()
			logger.Log.Warnw("dropping connection", "conn_id", p.ConnID, "player_id", p.PlayerID(), "error", err)
			reason = sim.ReasonProtocol
			return
		}
	}
}

func (s *GameServer) handleFrame(p *peer.Peer, frame []byte) error {
	kind, payload, err := s.codec.Decode(frame)
	if err != nil {
		return err
	}
	if !p.Joined() && kind != network.KindJoin && kind != network.KindPing {
		return &network.ProtocolError{Op: "handshake", Kind: kind, Err: ErrNotJoined}
	}

	switch kind {
	case network.KindJoin:
		var join network.Join
		if err := s.codec.DecodeInto(kind, payload, &join); err != nil {
			return err
		}
		return s.handleJoin(p, join)
	case network.KindInput:
		var in network.Input
		if err := s.codec.DecodeInto(kind, payload, &in); err != nil {
			return err
		}
		if q, ok := s.hub.Queue(p.PlayerID()); ok {
			q.PushInput(in)
		}
	case network.KindEquip:
		var eq network.Equip
		if err := s.codec.DecodeInto(kind, payload, &eq); err != nil {
			return err
		}
		if q, ok := s.hub.Queue(p.PlayerID()); ok {
			q.PushEquip(sim.EquipRequest{InventorySlot: eq.InventorySlot})
		}
	case network.KindUnequip:
		var uq network.Unequip
		if err := s.codec.DecodeInto(kind, payload, &uq); err != nil {
			return err
		}
		if q, ok := s.hub.Queue(p.PlayerID()); ok {
			q.PushEquip(sim.EquipRequest{Unequip: true, Slot: uq.Slot})
		}
	case network.KindPing:
		var ping network.Ping
		if err := s.codec.DecodeInto(kind, payload, &ping); err != nil {
			return err
		}
		pong := network.Pong{Nonce: ping.Nonce, SentUnix: ping.SentUnix, Tick: s.match.Info().Tick}
		return s.broadcaster.SendTo(p, network.KindPong, pong)
	default:
		return &network.ProtocolError{Op: "dispatch", Kind: kind, Err: ErrUnexpected}
	}
	return nil
}

func (s *GameServer) handleJoin(p *peer.Peer, join network.Join) error {
	name := cleanName(join.Name)
	id, err := s.peers.Join(p, name, func(id sim.PlayerID) error {
		accepted := network.JoinAccepted{
			PlayerID: id,
			MatchID:  s.match.ID,
			TickRate: s.match.TickRate(),
			Tick:     s.match.Info().Tick,
			Graph:    s.match.Graph(),
		}
		if err := s.broadcaster.SendTo(p, network.KindJoinAccepted, accepted); err != nil {
			return err
		}
		s.hub.Join(id, name)
		return nil
	})
	if errors.Is(err, peer.ErrAlreadyJoined) {
		return &network.ProtocolError{Op: "handshake", Kind: network.KindJoin, Err: err}
	}
	if err != nil {
		return err
	}
	logger.Log.Infow("player joined", "player_id", id, "conn_id", p.ConnID, "name", name)
	return nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if !utf8.ValidString(name) || name == "" {
		return defaultName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}
