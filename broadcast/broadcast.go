package broadcast

import (
	"errors"
	"fmt"

	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/network"
	"github.com/wfunc/flyknight/peer"
	"github.com/wfunc/flyknight/sim"
)

type Encoder interface {
	Encode(kind network.Kind, msg any) ([]byte, error)
}

// Registry lists the peers that receive snapshots.
type Registry interface {
	Joined() []*peer.Peer
}

type Metrics interface {
	AddFramesSent(n int)
	IncFramesDropped()
	ObserveSnapshotBytes(n int)
}

// Broadcaster fans finished snapshots out to every joined peer. Each frame is
// encoded once and the same bytes are queued on every connection.
type Broadcaster struct {
	codec   Encoder
	peers   Registry
	metrics Metrics
}

func NewBroadcaster(codec Encoder, peers Registry, metrics Metrics) *Broadcaster {
	return &Broadcaster{codec: codec, peers: peers, metrics: metrics}
}

// BroadcastSnapshot sends departure notices for snap.Left followed by the
// snapshot itself. It never blocks on a slow peer.
func (b *Broadcaster) BroadcastSnapshot(snap *sim.Snapshot) error {
	targets := b.peers.Joined()
	for _, l := range snap.Left {
		frame, err := b.codec.Encode(network.KindPlayerLeft, network.PlayerLeft(l))
		if err != nil {
			return fmt.Errorf("encode player left: %w", err)
		}
		b.fanOut(targets, frame)
	}

	frame, err := b.codec.Encode(network.KindSnapshot, snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", snap.Tick, err)
	}
	if b.metrics != nil {
		b.metrics.ObserveSnapshotBytes(len(frame))
	}
	b.fanOut(targets, frame)
	return nil
}

// SendTo encodes msg and queues it on one peer.
func (b *Broadcaster) SendTo(p *peer.Peer, kind network.Kind, msg any) error {
	frame, err := b.codec.Encode(kind, msg)
	if err != nil {
		return err
	}
	b.fanOut([]*peer.Peer{p}, frame)
	return nil
}

func (b *Broadcaster) fanOut(targets []*peer.Peer, frame []byte) {
	sent := 0
	for _, p := range targets {
		err := p.Send(frame)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, network.ErrQueueFull):
			if b.metrics != nil {
				b.metrics.IncFramesDropped()
			}
			logger.Log.Debugw("send queue full, frame dropped", "player_id", p.PlayerID(), "conn_id", p.ConnID)
		default:
			// Closed connections are reaped by their reader.
		}
	}
	if b.metrics != nil && sent > 0 {
		b.metrics.AddFramesSent(sent)
	}
}
