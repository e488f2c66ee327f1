package client

import (
	"context"
	"time"

	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/sim"
)

// InputSource produces the local intent for each frame.
type InputSource func(frame uint64) sim.InputCommand

// Idle sends no intent.
func Idle(uint64) sim.InputCommand { return sim.InputCommand{} }

// RunHeadless drives a client without a renderer: every frame it adopts the
// newest snapshot, predicts, and sends input. A summary is logged every
// logEvery. It returns when ctx ends or the connection closes.
func RunHeadless(ctx context.Context, c *Client, input InputSource, logEvery time.Duration) error {
	rate := c.TickRate()
	if rate <= 0 {
		rate = 30
	}
	frameTime := time.Second / time.Duration(rate)
	dt := frameTime.Seconds()
	pred := NewPredictor(c.PlayerID(), c.Graph())

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()
	lastLog := time.Now()
	for frame := uint64(1); ; frame++ {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return c.Err()
		case left := <-c.Left():
			logger.Log.Infow("player left", "player_id", left.Player, "reason", left.Reason)
			continue
		case <-ticker.C:
		}

		pred.Observe(c.Latest())
		in := input(frame)
		pred.Apply(in, dt)
		if _, err := c.SendInput(in); err != nil {
			logger.Log.Debugw("input not sent", "error", err)
		}

		if logEvery > 0 && time.Since(lastLog) >= logEvery {
			lastLog = time.Now()
			v := pred.View()
			logger.Log.Infow("snapshot",
				"tick", v.Tick,
				"players", len(v.Others)+boolInt(v.HaveSelf),
				"enemies", len(v.Enemies),
				"items", len(v.Items),
				"hp", v.Self.HP,
				"pos", v.Self.Pos,
				"rtt", c.RTT(),
			)
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
