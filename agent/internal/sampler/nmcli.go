package sampler

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/agent/internal/pinger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// Field counts of the two terse queries.
const (
	deviceFields = 3 // DEVICE,TYPE,STATE
	wifiFields   = 7 // ACTIVE,SSID,BSSID,CHAN,FREQ,RATE,SIGNAL
)

// Values reported when the interface has no association.
const (
	noSignal  = -100
	noQuality = 0
)

// NMCLI samples a wireless interface through NetworkManager's CLI.
type NMCLI struct {
	iface string
	run   pinger.Runner
	log   zerolog.Logger

	// readFile reads /proc/net/wireless; replaced in tests.
	readFile func(string) ([]byte, error)
	now      func() time.Time

	pinger        *pinger.Pinger
	latencyTarget string
	pingCount     int
}

// NewNMCLI returns an NMCLI source for iface that runs commands with run.
func NewNMCLI(iface string, run pinger.Runner, log zerolog.Logger) *NMCLI {
	return &NMCLI{
		iface:    iface,
		run:      run,
		log:      log,
		readFile: os.ReadFile,
		now:      time.Now,
	}
}

// WithLatency enables latency, loss and jitter measurement against target.
func (s *NMCLI) WithLatency(p *pinger.Pinger, target string, count int) *NMCLI {
	s.pinger = p
	s.latencyTarget = target
	s.pingCount = count
	return s
}

// Sample returns the current state of the interface. It returns an error
// (an absent sample) when nmcli cannot run, does not list the interface, or
// reports it connected without a readable active access point.
func (s *NMCLI) Sample(ctx context.Context) (*types.ConnectionSample, error) {
	status, err := s.deviceStatus(ctx)
	if err != nil {
		return nil, err
	}

	sample := &types.ConnectionSample{
		Status:    status,
		Signal:    noSignal,
		Quality:   noQuality,
		Timestamp: s.now().UTC(),
	}
	if status != types.StatusConnected && status != types.StatusConnecting {
		return sample, nil
	}

	ap, ok, err := s.activeAP(ctx)
	if status == types.StatusConnected {
		// A connected sample needs a real signal reading. Filling in
		// noSignal would read as a -100 dBm drop.
		switch {
		case err != nil:
			return nil, fmt.Errorf("sampler: connected but wifi list failed: %w", err)
		case !ok:
			return nil, fmt.Errorf("sampler: connected but no active access point listed")
		case ap.signalPct == nil:
			return nil, fmt.Errorf("sampler: connected but active access point has no signal")
		}
	} else if err != nil {
		s.log.Debug().Err(err).Msg("sampler: wifi list failed")
	}
	if ok {
		sample.SSID = ap.ssid
		sample.BSSID = ap.bssid
		sample.LinkSpeed = ap.rate
		if ap.signalPct != nil {
			sample.Signal = percentToDBm(*ap.signalPct)
			sample.Quality = *ap.signalPct
		}
	}

	if data, err := s.readFile(wirelessPath); err == nil {
		if q, err := parseWirelessQuality(data, s.iface); err == nil {
			sample.Quality = q
		} else {
			s.log.Debug().Err(err).Msg("sampler: link quality unavailable")
		}
	}

	if status == types.StatusConnected && s.pinger != nil {
		s.measureLatency(ctx, sample)
	}
	return sample, nil
}

// deviceStatus maps the interface's NetworkManager state to a ConnectionStatus.
func (s *NMCLI) deviceStatus(ctx context.Context) (types.ConnectionStatus, error) {
	out, err := s.run(ctx, "nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "device")
	if err != nil {
		return "", fmt.Errorf("sampler: nmcli device: %w", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		f, err := splitTerse(line, deviceFields)
		if err != nil {
			s.log.Warn().Err(err).Msg("sampler: skipping malformed device line")
			continue
		}
		if f[0] != s.iface {
			continue
		}
		if f[1] != "wifi" {
			return "", fmt.Errorf("sampler: device %s is %s, not wifi", s.iface, f[1])
		}
		return mapDeviceState(f[2]), nil
	}
	return "", fmt.Errorf("sampler: wifi device %s not found", s.iface)
}

func mapDeviceState(state string) types.ConnectionStatus {
	switch {
	case strings.HasPrefix(state, "connecting"):
		return types.StatusConnecting
	case strings.HasPrefix(state, "connected"):
		return types.StatusConnected
	case state == "disconnected", state == "unavailable", state == "disconnecting", state == "deactivating":
		return types.StatusDisconnected
	default:
		return types.StatusError
	}
}

// accessPoint is the parsed active row of `nmcli device wifi list`.
type accessPoint struct {
	ssid      string
	bssid     string
	rate      *float64
	signalPct *int
}

func (s *NMCLI) activeAP(ctx context.Context) (accessPoint, bool, error) {
	args := []string{"-t", "-f", "ACTIVE,SSID,BSSID,CHAN,FREQ,RATE,SIGNAL", "device", "wifi", "list", "ifname", s.iface}
	out, err := s.run(ctx, "nmcli", args...)
	if err != nil {
		return accessPoint{}, false, fmt.Errorf("sampler: nmcli wifi list: %w", err)
	}
	ap, ok := parseWifiList(string(out), s.log)
	return ap, ok, nil
}

// parseWifiList returns the active access point from terse wifi list output.
func parseWifiList(out string, log zerolog.Logger) (accessPoint, bool) {
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.HasPrefix(line, "yes:") {
			continue
		}
		f, err := splitTerse(line, wifiFields)
		if err != nil {
			log.Warn().Err(err).Msg("sampler: skipping malformed wifi line")
			continue
		}

		ap := accessPoint{}
		if !noValue(f[1]) {
			ap.ssid = f[1]
		}
		if !noValue(f[2]) {
			ap.bssid = f[2]
		}
		if !noValue(f[5]) {
			rate := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(f[5]), "Mbit/s"))
			if v, err := strconv.ParseFloat(rate, 64); err == nil {
				ap.rate = &v
			}
		}
		if !noValue(f[6]) {
			if v, err := strconv.Atoi(strings.TrimSpace(f[6])); err == nil {
				ap.signalPct = &v
			}
		}
		return ap, true
	}
	return accessPoint{}, false
}

// percentToDBm converts nmcli's 0–100 signal percentage to approximate dBm.
func percentToDBm(pct int) int {
	return int(float64(pct)/2 - 100)
}

func (s *NMCLI) measureLatency(ctx context.Context, sample *types.ConnectionSample) {
	st, err := s.pinger.Ping(ctx, s.latencyTarget, s.pingCount, 2*time.Second)
	if err != nil {
		s.log.Debug().Err(err).Str("target", s.latencyTarget).Msg("sampler: latency ping failed")
		return
	}
	if st.Loss != nil {
		sample.PacketLoss = types.Float(pinger.Round2(*st.Loss))
	}
	if len(st.RTTs) == 0 {
		return
	}
	sample.NetworkLatency = types.Float(pinger.Round2(st.Mean()))
	sample.Jitter = types.Float(pinger.Round2(st.Jitter()))
}
