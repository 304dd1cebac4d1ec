package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/linkwatch/linkwatch/pkg/types"
)

// TCPChecker measures the time to complete a TCP handshake.
type TCPChecker struct{}

func (c *TCPChecker) Check(ctx context.Context, svc types.ServiceConfig) types.CheckResult {
	port := svc.EffectivePort()
	addr := net.JoinHostPort(svc.Target, strconv.Itoa(port))

	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		var dnsErr *net.DNSError
		switch {
		case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
			return errorResult(fmt.Sprintf("DNS resolution failed: %v", err))
		case isTimeout(err):
			return timeoutResult("Connection timed out")
		default:
			return downResult(fmt.Sprintf("Port %d closed or filtered", port))
		}
	}
	latency := time.Since(start)
	_ = conn.Close()

	return upResult(latency)
}
