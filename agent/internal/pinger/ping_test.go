package pinger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linuxOutput = `PING 8.8.8.8 (8.8.8.8) 56(84) bytes of data.
64 bytes from 8.8.8.8: icmp_seq=1 ttl=118 time=10 ms
64 bytes from 8.8.8.8: icmp_seq=2 ttl=118 time=12 ms
64 bytes from 8.8.8.8: icmp_seq=3 ttl=118 time=11 ms
64 bytes from 8.8.8.8: icmp_seq=4 ttl=118 time=13 ms

--- 8.8.8.8 ping statistics ---
4 packets transmitted, 4 received, 0% packet loss, time 3004ms
rtt min/avg/max/mdev = 10.000/11.500/13.000/1.118 ms`

const windowsOutput = `Pinging 8.8.8.8 with 32 bytes of data:
Reply from 8.8.8.8: bytes=32 time=15ms TTL=118
Reply from 8.8.8.8: bytes=32 time<1ms TTL=118
Request timed out.
Reply from 8.8.8.8: bytes=32 time=17ms TTL=118

Ping statistics for 8.8.8.8:
    Packets: Sent = 4, Received = 3, Lost = 1 (25% loss),
Approximate round trip times in milli-seconds:
    Minimum = 1ms, Maximum = 17ms, Average = 11ms`

const macOutput = `PING 1.1.1.1 (1.1.1.1): 56 data bytes
64 bytes from 1.1.1.1: icmp_seq=0 ttl=57 time=44.347 ms
Request timeout for icmp_seq 1

--- 1.1.1.1 ping statistics ---
2 packets transmitted, 1 packets received, 50.0% packet loss
round-trip min/avg/max/stddev = 44.347/44.347/44.347/0.000 ms`

const unreachableOutput = `PING 10.255.255.1 (10.255.255.1) 56(84) bytes of data.

--- 10.255.255.1 ping statistics ---
4 packets transmitted, 0 received, 100% packet loss, time 3069ms`

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		wantRTTs []float64
		wantLoss *float64
	}{
		{"linux", linuxOutput, []float64{10, 12, 11, 13}, ptr(0)},
		{"windows", windowsOutput, []float64{15, 1, 17}, ptr(25)},
		{"macOS fractional loss", macOutput, []float64{44.347}, ptr(50)},
		{"unreachable", unreachableOutput, nil, ptr(100)},
		{"unknown host", "ping: unknown host example.invalid", nil, nil},
		{"empty", "", nil, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := Parse(tc.output)
			assert.Equal(t, tc.wantRTTs, st.RTTs)
			if tc.wantLoss == nil {
				assert.Nil(t, st.Loss)
			} else {
				require.NotNil(t, st.Loss)
				assert.InDelta(t, *tc.wantLoss, *st.Loss, 1e-9)
			}
		})
	}
}

func TestStats_Summary(t *testing.T) {
	st := Stats{RTTs: []float64{10, 12, 11, 13}}
	assert.Equal(t, 11.5, Round2(st.Mean()))
	assert.Equal(t, 1.29, Round2(st.Jitter()))
	assert.Equal(t, 0.0, st.LossOrZero())

	single := Stats{RTTs: []float64{7.5}}
	assert.Equal(t, 0.0, single.Jitter())
	assert.Equal(t, 0.0, Stats{}.Mean())
}

func TestArgs(t *testing.T) {
	assert.Equal(t, []string{"-c", "4", "-W", "5", "example.com"},
		Args("linux", "example.com", 4, 5*time.Second))
	assert.Equal(t, []string{"-c", "1", "-W", "1", "example.com"},
		Args("darwin", "example.com", 1, 200*time.Millisecond))
	assert.Equal(t, []string{"-n", "4", "-w", "5000", "example.com"},
		Args("windows", "example.com", 4, 5*time.Second))
}

func TestPinger_Ping(t *testing.T) {
	var gotName string
	var gotArgs []string
	p := New(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(linuxOutput), nil
	})
	p.goos = "linux"

	st, err := p.Ping(context.Background(), "8.8.8.8", 4, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", gotName)
	assert.Equal(t, []string{"-c", "4", "-W", "2", "8.8.8.8"}, gotArgs)
	assert.Len(t, st.RTTs, 4)
}

func TestPinger_StartFailure(t *testing.T) {
	p := New(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exec: \"ping\": executable file not found in $PATH")
	})
	_, err := p.Ping(context.Background(), "8.8.8.8", 1, time.Second)
	assert.Error(t, err)
}

func TestPinger_NonZeroExitStillParsed(t *testing.T) {
	p := New(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(unreachableOutput), errors.New("exit status 1")
	})
	st, err := p.Ping(context.Background(), "10.255.255.1", 4, time.Second)
	require.NoError(t, err)
	assert.Empty(t, st.RTTs)
	assert.Equal(t, 100.0, st.LossOrZero())
}

func ptr(v float64) *float64 { return &v }
