package sampler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkwatch/linkwatch/agent/internal/pinger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

const wirelessFixture = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
 wlan0: 0000   56.  -54.  -256        0      0      0      0     12        0
`

// fakeRunner answers nmcli queries from canned output keyed by the -f value.
func fakeRunner(outputs map[string]string, fail map[string]error) pinger.Runner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		key := name
		for i, a := range args {
			if a == "-f" && i+1 < len(args) {
				key = args[i+1]
			}
		}
		if err, ok := fail[key]; ok {
			return nil, err
		}
		out, ok := outputs[key]
		if !ok {
			return nil, fmt.Errorf("unexpected command %s %s", name, strings.Join(args, " "))
		}
		return []byte(out), nil
	}
}

func newTestNMCLI(run pinger.Runner, wireless string) *NMCLI {
	s := NewNMCLI("wlan0", run, zerolog.Nop())
	s.now = func() time.Time { return baseTime }
	s.readFile = func(string) ([]byte, error) {
		if wireless == "" {
			return nil, errors.New("no such file")
		}
		return []byte(wireless), nil
	}
	return s
}

func TestSplitTerse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{
			name: "escaped bssid",
			line: `yes:Office:AA\:BB\:CC\:DD\:EE\:FF:6:2437 MHz:130 Mbit/s:70`,
			want: []string{"yes", "Office", "AA:BB:CC:DD:EE:FF", "6", "2437 MHz", "130 Mbit/s", "70"},
		},
		{
			name: "colon inside ssid",
			line: `yes:Cafe\:Guest:AA\:BB\:CC\:DD\:EE\:FF:1:2412 MHz:54 Mbit/s:40`,
			want: []string{"yes", "Cafe:Guest", "AA:BB:CC:DD:EE:FF", "1", "2412 MHz", "54 Mbit/s", "40"},
		},
		{
			name: "escaped backslash",
			line: `yes:back\\slash:--:1:2412 MHz:54 Mbit/s:40`,
			want: []string{"yes", `back\slash`, "--", "1", "2412 MHz", "54 Mbit/s", "40"},
		},
		{
			name: "hidden network",
			line: `yes::AA\:BB\:CC\:DD\:EE\:FF:11:2462 MHz:65 Mbit/s:55`,
			want: []string{"yes", "", "AA:BB:CC:DD:EE:FF", "11", "2462 MHz", "65 Mbit/s", "55"},
		},
		{
			name: "trailing lone backslash kept",
			line: `yes:net:--:1:2412 MHz:54 Mbit/s:40\`,
			want: []string{"yes", "net", "--", "1", "2412 MHz", "54 Mbit/s", `40\`},
		},
		{
			name:    "unescaped colons in bssid rejected",
			line:    `yes:Office:AA:BB:CC:DD:EE:FF:6:2437 MHz:130 Mbit/s:70`,
			wantErr: true,
		},
		{
			name:    "too few fields",
			line:    `yes:Office`,
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := splitTerse(tc.line, wifiFields)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseWirelessQuality(t *testing.T) {
	q, err := parseWirelessQuality([]byte(wirelessFixture), "wlan0")
	require.NoError(t, err)
	assert.Equal(t, 80, q)

	_, err = parseWirelessQuality([]byte(wirelessFixture), "wlan1")
	assert.Error(t, err)
}

func TestPercentToDBm(t *testing.T) {
	assert.Equal(t, -65, percentToDBm(70))
	assert.Equal(t, -100, percentToDBm(0))
	assert.Equal(t, -50, percentToDBm(100))
	assert.Equal(t, -64, percentToDBm(71))
}

func TestNMCLI_Connected(t *testing.T) {
	run := fakeRunner(map[string]string{
		"DEVICE,TYPE,STATE": "lo:loopback:unmanaged\nwlan0:wifi:connected\neth0:ethernet:unavailable\n",
		"ACTIVE,SSID,BSSID,CHAN,FREQ,RATE,SIGNAL": "no:Neighbour:11\\:22\\:33\\:44\\:55\\:66:1:2412 MHz:54 Mbit/s:30\n" +
			"yes:Office:AA\\:BB\\:CC\\:DD\\:EE\\:FF:6:2437 MHz:130 Mbit/s:70\n",
	}, nil)

	s := newTestNMCLI(run, wirelessFixture)
	got, err := s.Sample(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, types.StatusConnected, got.Status)
	assert.Equal(t, "Office", got.SSID)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", got.BSSID)
	assert.Equal(t, -65, got.Signal)
	assert.Equal(t, 80, got.Quality)
	require.NotNil(t, got.LinkSpeed)
	assert.Equal(t, 130.0, *got.LinkSpeed)
	assert.Nil(t, got.NetworkLatency, "latency is not measured without a target")
	assert.Equal(t, baseTime, got.Timestamp)
}

func TestNMCLI_QualityFallsBackToPercent(t *testing.T) {
	run := fakeRunner(map[string]string{
		"DEVICE,TYPE,STATE":                        "wlan0:wifi:connected\n",
		"ACTIVE,SSID,BSSID,CHAN,FREQ,RATE,SIGNAL": "yes:--:--:6:2437 MHz:--:64\n",
	}, nil)

	got, err := newTestNMCLI(run, "").Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", got.SSID)
	assert.Equal(t, "", got.BSSID)
	assert.Nil(t, got.LinkSpeed)
	assert.Equal(t, 64, got.Quality)
	assert.Equal(t, -68, got.Signal)
}

func TestNMCLI_Disconnected(t *testing.T) {
	run := fakeRunner(map[string]string{"DEVICE,TYPE,STATE": "wlan0:wifi:disconnected\n"}, nil)

	got, err := newTestNMCLI(run, wirelessFixture).Sample(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.StatusDisconnected, got.Status)
	assert.Equal(t, -100, got.Signal)
	assert.Equal(t, 0, got.Quality)
}

func TestNMCLI_Absent(t *testing.T) {
	tests := []struct {
		name string
		run  pinger.Runner
	}{
		{"nmcli missing", fakeRunner(nil, map[string]error{"DEVICE,TYPE,STATE": errors.New("executable file not found")})},
		{"interface not listed", fakeRunner(map[string]string{"DEVICE,TYPE,STATE": "eth0:ethernet:connected\n"}, nil)},
		{"interface not wifi", fakeRunner(map[string]string{"DEVICE,TYPE,STATE": "wlan0:ethernet:connected\n"}, nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newTestNMCLI(tc.run, "").Sample(context.Background())
			assert.Error(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestNMCLI_ConnectedWithoutSignalIsAbsent(t *testing.T) {
	const device = "DEVICE,TYPE,STATE"
	const wifi = "ACTIVE,SSID,BSSID,CHAN,FREQ,RATE,SIGNAL"

	tests := []struct {
		name string
		run  pinger.Runner
	}{
		{"wifi list fails", fakeRunner(
			map[string]string{device: "wlan0:wifi:connected\n"},
			map[string]error{wifi: errors.New("scanning not allowed")},
		)},
		{"no active row", fakeRunner(map[string]string{
			device: "wlan0:wifi:connected\n",
			wifi:   "no:Neighbour:--:1:2412 MHz:54 Mbit/s:30\n",
		}, nil)},
		{"active row without signal", fakeRunner(map[string]string{
			device: "wlan0:wifi:connected\n",
			wifi:   "yes:Office:--:6:2437 MHz:130 Mbit/s:--\n",
		}, nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newTestNMCLI(tc.run, wirelessFixture).Sample(context.Background())
			assert.Error(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestNMCLI_ConnectedThenWifiListFails(t *testing.T) {
	failList := false
	ok := fakeRunner(map[string]string{
		"DEVICE,TYPE,STATE":                        "wlan0:wifi:connected\n",
		"ACTIVE,SSID,BSSID,CHAN,FREQ,RATE,SIGNAL": "yes:Office:--:6:2437 MHz:130 Mbit/s:100\n",
	}, nil)
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if failList && strings.Contains(strings.Join(args, " "), "wifi list") {
			return nil, errors.New("device busy")
		}
		return ok(ctx, name, args...)
	}

	s := newTestNMCLI(run, "")
	first, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -50, first.Signal)

	failList = true
	second, err := s.Sample(context.Background())
	assert.Error(t, err)
	assert.Nil(t, second, "a connected reading without a signal must not report -100 dBm")
}

func TestNMCLI_ConnectingWithoutAccessPoint(t *testing.T) {
	run := fakeRunner(
		map[string]string{"DEVICE,TYPE,STATE": "wlan0:wifi:connecting (getting IP configuration)\n"},
		map[string]error{"ACTIVE,SSID,BSSID,CHAN,FREQ,RATE,SIGNAL": errors.New("busy")},
	)

	got, err := newTestNMCLI(run, "").Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusConnecting, got.Status)
	assert.Equal(t, -100, got.Signal)
}

func TestMapDeviceState(t *testing.T) {
	tests := map[string]types.ConnectionStatus{
		"connected":                             types.StatusConnected,
		"connected (externally)":                types.StatusConnected,
		"connecting (getting IP configuration)": types.StatusConnecting,
		"disconnected":                          types.StatusDisconnected,
		"unavailable":                           types.StatusDisconnected,
		"unmanaged":                             types.StatusError,
	}
	for in, want := range tests {
		assert.Equal(t, want, mapDeviceState(in), in)
	}
}

func TestNMCLI_WithLatency(t *testing.T) {
	run := fakeRunner(map[string]string{
		"DEVICE,TYPE,STATE":                        "wlan0:wifi:connected\n",
		"ACTIVE,SSID,BSSID,CHAN,FREQ,RATE,SIGNAL": "yes:Office:--:6:2437 MHz:130 Mbit/s:90\n",
	}, nil)
	ping := pinger.New(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("64 bytes: time=20 ms\n64 bytes: time=22 ms\n64 bytes: time=24 ms\n" +
			"3 packets transmitted, 3 received, 0% packet loss"), nil
	})

	s := newTestNMCLI(run, "").WithLatency(ping, "8.8.8.8", 3)
	got, err := s.Sample(context.Background())
	require.NoError(t, err)

	require.NotNil(t, got.NetworkLatency)
	require.NotNil(t, got.Jitter)
	require.NotNil(t, got.PacketLoss)
	assert.Equal(t, 22.0, *got.NetworkLatency)
	assert.Equal(t, 2.0, *got.Jitter)
	assert.Equal(t, 0.0, *got.PacketLoss)
}

func TestStatic(t *testing.T) {
	a := &types.ConnectionSample{SSID: "a", Status: types.StatusConnected, Signal: -50}
	b := &types.ConnectionSample{SSID: "b", Status: types.StatusConnected, Signal: -60}
	s := NewStatic(a, nil, b)

	got, _ := s.Sample(context.Background())
	assert.Equal(t, "a", got.SSID)
	got, _ = s.Sample(context.Background())
	assert.Nil(t, got)
	got, _ = s.Sample(context.Background())
	assert.Equal(t, "b", got.SSID)
	got, _ = s.Sample(context.Background())
	assert.Equal(t, "b", got.SSID, "last sample repeats")

	empty, err := NewStatic().Sample(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, empty)
}
