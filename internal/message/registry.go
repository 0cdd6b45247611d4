package message

import (
	"fmt"
	"sort"

	"github.com/tonylturner/rs485mon/internal/logging"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

// DecodeFunc turns a telegram into a typed message. It re-validates size and
// identity on its own.
type DecodeFunc func(*telegram.Telegram) (Message, error)

// Decoder profiles selectable from configuration.
const (
	ProfileDefault = "default"
	ProfileLegacy  = "legacy"
)

// Registry maps telegram ids (destination<<8 | source) to decoders.
type Registry struct {
	name     string
	decoders map[uint16]DecodeFunc
	logger   *logging.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(name string) *Registry {
	return &Registry{name: name, decoders: make(map[uint16]DecodeFunc)}
}

// DefaultRegistry decodes current firmware traffic.
func DefaultRegistry() *Registry {
	r := NewRegistry(ProfileDefault)
	r.Register(batteryRequestLayout.id(), DecodeBatteryRequest)
	r.Register(batteryResponseLayout.id(), DecodeBatteryResponse)
	r.Register(controllerRequestLayout.id(), DecodeControllerRequest)
	r.Register(controllerResponseLayout.id(), DecodeControllerResponse)
	r.Register(speedometerRequestLayout.id(), DecodeSpeedometerRequest)
	r.Register(speedometerResponseLayout.id(), DecodeSpeedometerResponse)
	return r
}

// LegacyRegistry decodes the layouts of older firmware.
func LegacyRegistry() *Registry {
	r := NewRegistry(ProfileLegacy)
	r.Register(batteryStatusLayout.id(), DecodeBatteryStatus)
	r.Register(ecuStatusLayout.id(), DecodeECUStatus)
	r.Register(gsmStatusLayout.id(), DecodeGSMStatus)
	return r
}

// ForProfile returns the registry named by a configuration profile.
func ForProfile(profile string) (*Registry, error) {
	switch profile {
	case "", ProfileDefault:
		return DefaultRegistry(), nil
	case ProfileLegacy:
		return LegacyRegistry(), nil
	default:
		return nil, fmt.Errorf("unknown decoder profile %q (valid: %s, %s)", profile, ProfileDefault, ProfileLegacy)
	}
}

// Register adds or replaces the decoder for id.
func (r *Registry) Register(id uint16, fn DecodeFunc) {
	r.decoders[id] = fn
}

// Lookup returns the decoder for id.
func (r *Registry) Lookup(id uint16) (DecodeFunc, bool) {
	fn, ok := r.decoders[id]
	return fn, ok
}

// IDs lists the registered ids in ascending order.
func (r *Registry) IDs() []uint16 {
	ids := make([]uint16, 0, len(r.decoders))
	for id := range r.decoders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Name() string { return r.name }

// SetLogger sets the destination for diagnostics. A nil logger discards them.
func (r *Registry) SetLogger(l *logging.Logger) {
	r.logger = l
}

// Specialize promotes t to its typed variant. Unknown ids come back as
// Generic without error. A decoder rejecting a known id is an error; there
// is no fallback to Generic in that case.
func (r *Registry) Specialize(t *telegram.Telegram) (Message, error) {
	if !t.Valid() {
		return nil, ErrInvalidChecksum
	}
	fn, ok := r.decoders[t.ID()]
	if !ok {
		r.logger.Debug("no decoder for telegram id 0x%04X (%s -> %s)", t.ID(), t.Source(), t.Destination())
		return NewGeneric(t), nil
	}
	m, err := fn(t)
	if err != nil {
		return nil, err
	}
	if bs, ok := m.(*BatteryStatus); ok && !bs.KnownCharging() {
		r.logger.Debug("battery status charging byte 0x%02X", bs.ChargingRaw)
	}
	return m, nil
}
