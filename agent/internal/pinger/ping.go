// Package pinger runs the system ping command and parses its output.
//
// The same parser handles Unix (iputils, BSD) and Windows output so callers
// can be tested with literal fixtures from either platform.
package pinger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

// Runner executes name with args and returns its combined output.
// A non-nil error with output still counts as a completed run when it is an
// *exec.ExitError.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Pinger sends echo requests through the platform ping binary.
type Pinger struct {
	run  Runner
	goos string
}

// New returns a Pinger that executes ping with run. A nil run uses ExecRunner.
func New(run Runner) *Pinger {
	if run == nil {
		run = ExecRunner
	}
	return &Pinger{run: run, goos: runtime.GOOS}
}

// Ping sends count echo requests to host, waiting up to timeout for each
// reply. It returns an error only when the ping process could not be run;
// unreachable hosts yield Stats with no RTTs.
func (p *Pinger) Ping(ctx context.Context, host string, count int, timeout time.Duration) (Stats, error) {
	out, err := p.run(ctx, "ping", Args(p.goos, host, count, timeout)...)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && len(out) == 0 {
			return Stats{}, fmt.Errorf("pinger: run ping: %w", err)
		}
	}
	return Parse(string(out)), nil
}

// Args builds the ping argv for goos.
// Windows takes the per-reply timeout in milliseconds, everything else in
// whole seconds (minimum 1).
func Args(goos, host string, count int, timeout time.Duration) []string {
	if goos == "windows" {
		return []string{"-n", strconv.Itoa(count), "-w", strconv.FormatInt(timeout.Milliseconds(), 10), host}
	}
	secs := int(math.Ceil(timeout.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return []string{"-c", strconv.Itoa(count), "-W", strconv.Itoa(secs), host}
}

var (
	// Unix: "time=12.3 ms"; Windows: "time=15ms" or "time<1ms".
	rttRe = regexp.MustCompile(`time[=<]\s*([0-9]+(?:\.[0-9]+)?)\s*ms`)

	// Unix: "0% packet loss"; Windows: "(0% loss)".
	unixLossRe    = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)% packet loss`)
	windowsLossRe = regexp.MustCompile(`\(([0-9]+(?:\.[0-9]+)?)% loss\)`)
)

// Stats is the parsed result of one ping run.
type Stats struct {
	// RTTs holds one round-trip time in milliseconds per reply, in order.
	RTTs []float64

	// Loss is the reported packet loss percentage; nil when the summary
	// line was missing.
	Loss *float64
}

// Parse extracts per-reply RTTs and the loss percentage from ping output.
func Parse(output string) Stats {
	var st Stats
	for _, m := range rttRe.FindAllStringSubmatch(output, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			st.RTTs = append(st.RTTs, v)
		}
	}
	for _, re := range []*regexp.Regexp{unixLossRe, windowsLossRe} {
		if m := re.FindStringSubmatch(output); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				st.Loss = &v
				break
			}
		}
	}
	return st
}

// Mean returns the average RTT, or 0 with no replies.
func (s Stats) Mean() float64 {
	if len(s.RTTs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.RTTs {
		sum += v
	}
	return sum / float64(len(s.RTTs))
}

// Jitter returns the sample standard deviation of the RTTs.
// It is 0 for fewer than two replies.
func (s Stats) Jitter() float64 {
	n := len(s.RTTs)
	if n < 2 {
		return 0
	}
	mean := s.Mean()
	var sq float64
	for _, v := range s.RTTs {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n-1))
}

// LossOrZero returns the parsed loss, or 0 when none was reported.
func (s Stats) LossOrZero() float64 {
	if s.Loss == nil {
		return 0
	}
	return *s.Loss
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
