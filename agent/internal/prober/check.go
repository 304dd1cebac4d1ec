package prober

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/linkwatch/linkwatch/agent/internal/pinger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// Checker runs one protocol check against a service. Implementations must
// honour ctx cancellation and never panic on network errors.
type Checker interface {
	Check(ctx context.Context, svc types.ServiceConfig) types.CheckResult
}

// CheckerOptions configures the default checkers.
type CheckerOptions struct {
	// InsecureSkipVerify disables certificate verification for https checks.
	InsecureSkipVerify bool

	// Ping runs the ping binary; nil uses pinger.ExecRunner.
	Ping pinger.Runner
}

// DefaultCheckers returns one Checker per supported service type.
func DefaultCheckers(opts CheckerOptions) map[types.ServiceType]Checker {
	return map[types.ServiceType]Checker{
		types.ServicePing:  NewPingChecker(pinger.New(opts.Ping)),
		types.ServiceHTTP:  NewHTTPChecker("http", opts.InsecureSkipVerify),
		types.ServiceHTTPS: NewHTTPChecker("https", opts.InsecureSkipVerify),
		types.ServiceTCP:   &TCPChecker{},
		types.ServiceUDP:   &UDPChecker{},
	}
}

func upResult(latency time.Duration) types.CheckResult {
	return types.CheckResult{Status: types.CheckUp, Latency: types.Float(millis(latency))}
}

func downResult(msg string) types.CheckResult {
	return types.CheckResult{Status: types.CheckDown, ErrorMessage: msg}
}

func timeoutResult(msg string) types.CheckResult {
	return types.CheckResult{Status: types.CheckTimeout, ErrorMessage: msg}
}

func errorResult(msg string) types.CheckResult {
	return types.CheckResult{Status: types.CheckError, ErrorMessage: msg}
}

// millis converts d to milliseconds rounded to two decimals.
func millis(d time.Duration) float64 {
	return pinger.Round2(float64(d) / float64(time.Millisecond))
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
