package prober

import (
	"context"
	"fmt"

	"github.com/linkwatch/linkwatch/agent/internal/pinger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// PingChecker sends PacketCount echo requests and reports mean latency,
// jitter and loss.
type PingChecker struct {
	pinger *pinger.Pinger
}

// NewPingChecker returns a PingChecker backed by p.
func NewPingChecker(p *pinger.Pinger) *PingChecker {
	return &PingChecker{pinger: p}
}

func (c *PingChecker) Check(ctx context.Context, svc types.ServiceConfig) types.CheckResult {
	st, err := c.pinger.Ping(ctx, svc.Target, svc.EffectivePacketCount(), svc.Timeout)
	if err != nil {
		return errorResult(fmt.Sprintf("Ping failed: %v", err))
	}

	// No replies is down whatever ping's exit status said.
	if len(st.RTTs) == 0 {
		res := downResult("No ping responses received")
		if st.Loss != nil {
			res.PacketLoss = types.Float(*st.Loss)
		}
		return res
	}

	return types.CheckResult{
		Status:     types.CheckUp,
		Latency:    types.Float(pinger.Round2(st.Mean())),
		Jitter:     types.Float(pinger.Round2(st.Jitter())),
		PacketLoss: types.Float(pinger.Round2(st.LossOrZero())),
	}
}
