// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHeadset is a [Headset] with canned attributes.
type fakeHeadset struct {
	closed     int
	connectErr error
	nextErr    error
	values     map[string]float64
	waves      map[string]float64
}

func (h *fakeHeadset) Connect(ctx context.Context) error { return h.connectErr }

func (h *fakeHeadset) Next(ctx context.Context) error { return h.nextErr }

func (h *fakeHeadset) Value(attr string) (float64, bool) {
	v, found := h.values[attr]
	return v, found
}

func (h *fakeHeadset) Wave(band string) (float64, bool) {
	v, found := h.waves[band]
	return v, found
}

func (h *fakeHeadset) Close() error {
	h.closed++
	return nil
}

// newFakeDeviceSource returns a [*DeviceSource] whose opener returns headset.
func newFakeDeviceSource(headset *fakeHeadset, openErr error) *DeviceSource {
	cfg := NewConfig()
	cfg.HeadsetOpener = func(device, headsetID string, openSerial bool) (Headset, error) {
		if openErr != nil {
			return nil, openErr
		}
		return headset, nil
	}
	opts := DeviceSourceOptions{Device: "/dev/ttyUSB0", HeadsetID: "a1b2", OpenSerial: true}
	return NewDeviceSource(cfg, NewMindwaveSchema(), opts, DefaultSLogger())
}

// Without a driver, Setup names where to get one.
func TestDeviceSourceNoDriver(t *testing.T) {
	source := NewDeviceSource(NewConfig(), NewMindwaveSchema(), DeviceSourceOptions{Device: "/dev/ttyUSB0"}, DefaultSLogger())

	err := source.Setup(context.Background())

	require.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), MindwaveDriverOrigin)
	assert.Contains(t, err.Error(), MindwaveDriverFork)
}

// Setup passes the options to the opener.
func TestDeviceSourceSetupOptions(t *testing.T) {
	var gotDevice, gotID string
	var gotSerial bool
	cfg := NewConfig()
	cfg.HeadsetOpener = func(device, headsetID string, openSerial bool) (Headset, error) {
		gotDevice, gotID, gotSerial = device, headsetID, openSerial
		return &fakeHeadset{}, nil
	}
	opts := DeviceSourceOptions{Device: "/dev/rfcomm0", HeadsetID: "", OpenSerial: false}
	source := NewDeviceSource(cfg, NewMindwaveSchema(), opts, DefaultSLogger())

	require.NoError(t, source.Setup(context.Background()))

	assert.Equal(t, "/dev/rfcomm0", gotDevice)
	assert.Equal(t, "", gotID)
	assert.False(t, gotSerial)
}

// Setup failures wrap ErrConnection and release the headset.
func TestDeviceSourceSetupErrors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		openErr := errors.New("no such device")
		source := newFakeDeviceSource(nil, openErr)

		err := source.Setup(context.Background())

		require.ErrorIs(t, err, ErrConnection)
		require.ErrorIs(t, err, openErr)
	})

	t.Run("connect", func(t *testing.T) {
		connectErr := errors.New("headset not found")
		headset := &fakeHeadset{connectErr: connectErr}
		source := newFakeDeviceSource(headset, nil)

		err := source.Setup(context.Background())

		require.ErrorIs(t, err, ErrConnection)
		require.ErrorIs(t, err, connectErr)
		assert.Equal(t, 1, headset.closed)
		require.NoError(t, source.Close())
		assert.Equal(t, 1, headset.closed)
	})
}

// Read probes every schema field and marks unmapped ones as Missing.
func TestDeviceSourceRead(t *testing.T) {
	headset := &fakeHeadset{
		values: map[string]float64{
			"raw_value":   -12,
			"blink":       80,
			"poor_signal": 0,
			"attention":   40,
			"meditation":  55,
		},
		waves: map[string]float64{
			"delta":      1,
			"theta":      2,
			"low-alpha":  3,
			"high-alpha": 4,
			"low-beta":   5,
			"high-beta":  6,
			"low-gamma":  7,
			"high-gamma": 8,
		},
	}
	source := newFakeDeviceSource(headset, nil)
	require.NoError(t, source.Setup(context.Background()))

	reading, err := source.Read(context.Background())
	require.NoError(t, err)

	schema := NewMindwaveSchema()
	require.Equal(t, schema.Len(), reading.Len())
	expect := map[string]float64{
		RawEEGField:          -12,
		"blinkStrength":      80,
		SignalQualityField:   0,
		"eSense.attention":   40,
		"eSense.meditation":  55,
		"eegPower.delta":     1,
		"eegPower.theta":     2,
		"eegPower.lowAlpha":  3,
		"eegPower.highAlpha": 4,
		"eegPower.lowBeta":   5,
		"eegPower.highBeta":  6,
		"eegPower.lowGamma":  7,
		"eegPower.highGamma": 8,
	}
	for _, name := range schema.Names() {
		raw, found := reading.Lookup(name)
		require.True(t, found, name)
		value := raw.(float64)
		if want, mapped := expect[name]; mapped {
			assert.Equal(t, want, value, name)
			continue
		}
		assert.True(t, IsMissing(value), name)
	}

	require.NoError(t, source.Close())
	assert.Equal(t, 1, headset.closed)
}

// Attributes the driver has not reported yet are Missing.
func TestDeviceSourceReadUnreported(t *testing.T) {
	source := newFakeDeviceSource(&fakeHeadset{values: map[string]float64{"attention": 40}}, nil)
	require.NoError(t, source.Setup(context.Background()))

	reading, err := source.Read(context.Background())
	require.NoError(t, err)

	attention, _ := reading.Lookup("eSense.attention")
	assert.Equal(t, 40.0, attention)
	delta, _ := reading.Lookup("eegPower.delta")
	assert.True(t, IsMissing(delta.(float64)))
}

// Read wraps driver errors and fails before Setup.
func TestDeviceSourceReadErrors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		source := newFakeDeviceSource(&fakeHeadset{}, nil)
		_, err := source.Read(context.Background())
		require.ErrorIs(t, err, ErrRead)
	})

	t.Run("driver", func(t *testing.T) {
		nextErr := errors.New("port closed")
		source := newFakeDeviceSource(&fakeHeadset{nextErr: nextErr}, nil)
		require.NoError(t, source.Setup(context.Background()))

		reading, err := source.Read(context.Background())

		require.ErrorIs(t, err, ErrRead)
		require.ErrorIs(t, err, nextErr)
		assert.Nil(t, reading)
	})
}

// Write is unsupported and only logs a warning.
func TestDeviceSourceWrite(t *testing.T) {
	logger, records := newCapturingLogger()
	source := newFakeDeviceSource(&fakeHeadset{}, nil)
	source.Logger = logger

	require.NoError(t, source.Write(context.Background(), EnableRawOutputCommand))

	assert.Equal(t, 1, countRecords(*records, slog.LevelWarn, "writeUnsupported"))
}
