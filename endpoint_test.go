// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// String joins host and port, bracketing IPv6 literals.
func TestEndpointString(t *testing.T) {
	tests := []struct {
		// name describes the scenario.
		name string

		// endpoint is the endpoint to format.
		endpoint Endpoint

		// want is the expected string.
		want string
	}{
		{
			name:     "host name",
			endpoint: Endpoint{Host: "localhost", Port: 13854},
			want:     "localhost:13854",
		},

		{
			name:     "IPv4 literal",
			endpoint: Endpoint{Host: "127.0.0.1", Port: 13854},
			want:     "127.0.0.1:13854",
		},

		{
			name:     "IPv6 literal",
			endpoint: Endpoint{Host: "::1", Port: 13854},
			want:     "[::1]:13854",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.endpoint.String())
		})
	}
}

// NewEndpointFunc injects the endpoint into a pipeline.
func TestNewEndpointFunc(t *testing.T) {
	endpoint := Endpoint{Host: DefaultHost, Port: DefaultPort}

	result, err := NewEndpointFunc(endpoint).Call(context.Background(), Unit{})

	require.NoError(t, err)
	assert.Equal(t, endpoint, result)
}
