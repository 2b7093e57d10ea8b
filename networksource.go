// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

// RecordTerminator ends every JSON record sent by the ThinkGear Connector.
const RecordTerminator = '\r'

// EnableRawOutputCommand asks the ThinkGear Connector to stream raw EEG
// values as JSON. Send it with [*Bridge.Write] right after setup.
var EnableRawOutputCommand = map[string]any{
	"enableRawOutput": true,
	"format":          "Json",
}

// NewNetworkSource returns a new [*NetworkSource] for the given endpoint.
//
// The cfg argument contains the common configuration.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewNetworkSource(cfg *Config, endpoint Endpoint, logger SLogger) *NetworkSource {
	return &NetworkSource{
		Endpoint:  endpoint,
		Logger:    logger,
		Separator: DefaultSeparator,
		dial: Compose4(
			NewEndpointFunc(endpoint),
			NewConnectFunc(cfg, logger),
			NewObserveConnFunc(cfg, logger),
			NewCancelWatchFunc(),
		),
	}
}

// NetworkSource reads `\r`-terminated JSON records from the ThinkGear
// Connector socket and flattens them into a [FlatReading].
//
// The connection is owned by the source and bound to the context passed
// to [*NetworkSource.Setup]: when that context is done the socket is
// closed, which unblocks a pending [*NetworkSource.Read].
type NetworkSource struct {
	// Endpoint is the connector address.
	//
	// Set by [NewNetworkSource] to the user-provided endpoint.
	Endpoint Endpoint

	// Logger is the [SLogger] to use.
	//
	// Set by [NewNetworkSource] to the user-provided logger.
	Logger SLogger

	// Separator joins nested keys.
	//
	// Set by [NewNetworkSource] to [DefaultSeparator].
	Separator string

	conn   net.Conn
	dial   Func[Unit, net.Conn]
	mu     sync.Mutex
	reader *bufio.Reader
}

var _ Source = &NetworkSource{}

// Setup implements [Source].
func (s *NetworkSource) Setup(ctx context.Context) error {
	s.Logger.Info("networkSourceSetup", slog.String("endpoint", s.Endpoint.String()))
	conn, err := s.dial.Call(ctx, Unit{})
	if err != nil {
		return fmt.Errorf("%w: cannot connect to %s: %w", ErrConnection, s.Endpoint, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.mu.Unlock()
	return nil
}

// Read implements [Source].
//
// It blocks until a full record is available. The record must be a JSON
// object; anything else, including a blank record, wraps [ErrRead].
func (s *NetworkSource) Read(ctx context.Context) (Reading, error) {
	reader := s.bufferedReader()
	if reader == nil {
		return nil, fmt.Errorf("%w: source not connected", ErrRead)
	}

	record, err := reader.ReadBytes(RecordTerminator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	record = bytes.TrimSpace(record)
	if len(record) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrRead)
	}

	var nested map[string]any
	decoder := json.NewDecoder(bytes.NewReader(record))
	decoder.UseNumber()
	if err := decoder.Decode(&nested); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON record %q: %w", ErrRead, record, err)
	}
	if nested == nil {
		return nil, fmt.Errorf("%w: record %q is not an object", ErrRead, record)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON record %q", ErrRead, record)
	}

	return Flatten(nested, s.Separator), nil
}

// Write implements [Source].
//
// Strings and byte slices are sent verbatim; any other value is
// encoded as JSON first.
func (s *NetworkSource) Write(ctx context.Context, command any) error {
	var data []byte
	switch v := command.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: cannot encode command: %w", ErrWrite, err)
		}
		data = encoded
	}

	conn := s.connection()
	if conn == nil {
		return fmt.Errorf("%w: source not connected", ErrWrite)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Close implements [Source].
func (s *NetworkSource) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn, s.reader = nil, nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *NetworkSource) connection() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *NetworkSource) bufferedReader() *bufio.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader
}
