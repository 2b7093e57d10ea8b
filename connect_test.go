// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/bassosimone/netstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewConnectFunc populates all fields from Config and the provided logger.
func TestNewConnectFunc(t *testing.T) {
	cfg := NewConfig()

	fn := NewConnectFunc(cfg, DefaultSLogger())

	require.NotNil(t, fn)
	assert.Equal(t, "tcp", fn.Network)
	assert.NotNil(t, fn.Dialer)
	assert.NotNil(t, fn.Logger)
	assert.NotNil(t, fn.TimeNow)
	assert.NotNil(t, fn.ErrClassifier)
}

// Call dials the connector endpoint and returns a net.Conn or an error.
func TestConnectFunc(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// dialErr is the error returned by the mock dialer.
		dialErr error

		// expectClass is the errClass logged by connectDone.
		expectClass string
	}{
		{
			name:        "successful connect",
			dialErr:     nil,
			expectClass: "",
		},

		{
			name:        "connect timeout",
			dialErr:     context.DeadlineExceeded,
			expectClass: errclass.ETIMEDOUT,
		},

		{
			name:        "other dial error",
			dialErr:     errors.New("mocked error"),
			expectClass: errclass.EGENERIC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotNetwork, gotAddress string
			cfg := NewConfig()
			cfg.Dialer = &netstub.FuncDialer{
				DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
					gotNetwork, gotAddress = network, address
					if tt.dialErr != nil {
						return newMinimalConn(), tt.dialErr
					}
					conn := newMinimalConn()
					conn.CloseFunc = func() error { return nil }
					return conn, nil
				},
			}
			logger, records := newCapturingLogger()

			fn := NewConnectFunc(cfg, logger)
			conn, err := fn.Call(context.Background(), Endpoint{Host: "localhost", Port: DefaultPort})

			assert.Equal(t, "tcp", gotNetwork)
			assert.Equal(t, "localhost:13854", gotAddress)
			require.Len(t, *records, 2)
			assert.Equal(t, "connectStart", (*records)[0].Message)
			assert.Equal(t, "connectDone", (*records)[1].Message)
			assert.Equal(t, tt.expectClass, recordAttr((*records)[1], "errClass"))

			if tt.dialErr != nil {
				require.ErrorIs(t, err, tt.dialErr)
				assert.Nil(t, conn)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, conn)
			conn.Close()
		})
	}
}

// Call transparently passes the caller's context to the dialer.
func TestConnectFuncContextTransparency(t *testing.T) {
	cfg := NewConfig()
	cfg.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, ctx.Err()
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := NewConnectFunc(cfg, DefaultSLogger()).Call(ctx, Endpoint{Host: "localhost", Port: 1})

	require.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, conn)
}

// recordAttr returns the string value of the named record attribute.
func recordAttr(record slog.Record, key string) string {
	var value string
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			value = attr.Value.String()
			return false
		}
		return true
	})
	return value
}
