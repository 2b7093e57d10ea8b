// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/bassosimone/netstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPipeNetworkSource returns a set up source whose connector is the
// returned end of a pipe.
func newPipeNetworkSource(t *testing.T, ctx context.Context) (*NetworkSource, net.Conn) {
	t.Helper()
	client, connector := net.Pipe()
	t.Cleanup(func() { connector.Close() })

	cfg := NewConfig()
	cfg.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			return client, nil
		},
	}
	source := NewNetworkSource(cfg, Endpoint{Host: DefaultHost, Port: DefaultPort}, DefaultSLogger())
	require.NoError(t, source.Setup(ctx))
	t.Cleanup(func() { source.Close() })
	return source, connector
}

// Setup fails with ErrConnection when the connector cannot be reached.
func TestNetworkSourceSetupError(t *testing.T) {
	wantErr := errors.New("connection refused")
	cfg := NewConfig()
	cfg.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, wantErr
		},
	}
	source := NewNetworkSource(cfg, Endpoint{Host: DefaultHost, Port: DefaultPort}, DefaultSLogger())

	err := source.Setup(context.Background())

	require.ErrorIs(t, err, ErrConnection)
	require.ErrorIs(t, err, wantErr)
}

// Read splits the stream at the record terminator and skips bad records.
func TestNetworkSourceRead(t *testing.T) {
	source, connector := newPipeNetworkSource(t, context.Background())

	stream := "" +
		`{"eSense":{"attention":40,"meditation":55},"poorSignalLevel":0}` + "\r" +
		`not json` + "\r" +
		"\r" +
		`null` + "\r" +
		`[1,2]` + "\r" +
		`{"a":1}{"b":2}` + "\r" +
		"\n" + `{"rawEeg":-12}` + "\r\n"
	go func() {
		io.WriteString(connector, stream)
	}()

	type result struct {
		reading Reading
		err     error
	}
	read := func() result {
		reading, err := source.Read(context.Background())
		return result{reading, err}
	}

	first := read()
	require.NoError(t, first.err)
	attention, _ := first.reading.Lookup("eSense.attention")
	assert.Equal(t, json.Number("40"), attention)
	assert.Equal(t, 3, first.reading.Len())

	for range 5 {
		r := read()
		require.ErrorIs(t, r.err, ErrRead)
		assert.Nil(t, r.reading)
	}

	last := read()
	require.NoError(t, last.err)
	raw, found := last.reading.Lookup(RawEEGField)
	require.True(t, found)
	value, ok := toFloat64(raw)
	require.True(t, ok)
	assert.Equal(t, -12.0, value)
}

// Read fails with ErrRead when the connector goes away.
func TestNetworkSourceReadEOF(t *testing.T) {
	source, connector := newPipeNetworkSource(t, context.Background())
	connector.Close()

	_, err := source.Read(context.Background())

	require.ErrorIs(t, err, ErrRead)
	require.ErrorIs(t, err, io.EOF)
}

// Cancelling the setup context unblocks a pending Read.
func TestNetworkSourceReadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source, _ := newPipeNetworkSource(t, ctx)

	errch := make(chan error, 1)
	go func() {
		_, err := source.Read(ctx)
		errch <- err
	}()
	cancel()

	require.ErrorIs(t, <-errch, ErrRead)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

// Write sends strings verbatim and encodes everything else as JSON.
func TestNetworkSourceWrite(t *testing.T) {
	type testcase struct {
		// name is the test case name.
		name string

		// command is the command to write.
		command any

		// expect is what the connector receives.
		expect string
	}

	cases := []testcase{
		{
			name:    "mapping",
			command: EnableRawOutputCommand,
			expect:  `{"enableRawOutput":true,"format":"Json"}`,
		},

		{
			name:    "string",
			command: `{"enableRawOutput": true, "format": "Json"}`,
			expect:  `{"enableRawOutput": true, "format": "Json"}`,
		},

		{
			name:    "bytes",
			command: []byte(`{"appName":"mindbridge"}`),
			expect:  `{"appName":"mindbridge"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source, connector := newPipeNetworkSource(t, context.Background())
			received := make(chan string, 1)
			go func() {
				buf := make([]byte, 256)
				count, _ := connector.Read(buf)
				received <- string(buf[:count])
			}()

			require.NoError(t, source.Write(context.Background(), tc.command))
			assert.Equal(t, tc.expect, <-received)
		})
	}
}

// Write fails with ErrWrite on encoding and I/O errors.
func TestNetworkSourceWriteErrors(t *testing.T) {
	t.Run("cannot encode", func(t *testing.T) {
		source, _ := newPipeNetworkSource(t, context.Background())
		err := source.Write(context.Background(), make(chan int))
		require.ErrorIs(t, err, ErrWrite)
	})

	t.Run("connector gone", func(t *testing.T) {
		source, connector := newPipeNetworkSource(t, context.Background())
		connector.Close()
		err := source.Write(context.Background(), "{}")
		require.ErrorIs(t, err, ErrWrite)
	})
}

// Read and Write fail before Setup.
func TestNetworkSourceNotConnected(t *testing.T) {
	source := NewNetworkSource(NewConfig(), Endpoint{Host: DefaultHost, Port: DefaultPort}, DefaultSLogger())

	_, err := source.Read(context.Background())
	require.ErrorIs(t, err, ErrRead)

	require.ErrorIs(t, source.Write(context.Background(), "{}"), ErrWrite)
	require.NoError(t, source.Close())
}
