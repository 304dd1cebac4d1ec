package prober

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/linkwatch/linkwatch/pkg/types"
)

// udpPayload is the datagram sent to the target.
var udpPayload = []byte("test")

// UDPChecker sends a single datagram and waits for a reply until the
// deadline. Any outcome after a successful send counts as up.
type UDPChecker struct{}

func (c *UDPChecker) Check(ctx context.Context, svc types.ServiceConfig) types.CheckResult {
	addr := net.JoinHostPort(svc.Target, strconv.Itoa(svc.EffectivePort()))

	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return errorResult(fmt.Sprintf("UDP dial failed: %v", err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(udpPayload); err != nil {
		return errorResult(fmt.Sprintf("UDP send failed: %v", err))
	}

	buf := make([]byte, 1024)
	_, _ = conn.Read(buf)

	return upResult(time.Since(start))
}
