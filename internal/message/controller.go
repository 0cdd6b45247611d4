package message

import (
	"fmt"

	"github.com/tonylturner/rs485mon/internal/telegram"
)

// ChargingState is the charge command sent to the engine controller.
type ChargingState uint8

const (
	ChargingOff     ChargingState = 0x00
	ChargingOn      ChargingState = 0x01
	ChargingUnknown ChargingState = 0xFF
)

func (c ChargingState) String() string {
	switch c {
	case ChargingOn:
		return "CHARGING_ON"
	case ChargingOff:
		return "CHARGING_OFF"
	default:
		return "CHARGING_UNKNOWN"
	}
}

// ParkStatus is the parking flag reported by the engine controller.
type ParkStatus uint8

const (
	ParkingOff     ParkStatus = 0x01
	ParkingOn      ParkStatus = 0x02
	ParkingUnknown ParkStatus = 0xFF
)

func (p ParkStatus) String() string {
	switch p {
	case ParkingOn:
		return "PARKING_ON"
	case ParkingOff:
		return "PARKING_OFF"
	default:
		return "PARKING_UNKNOWN"
	}
}

func parseParkStatus(b byte) ParkStatus {
	switch ParkStatus(b) {
	case ParkingOn, ParkingOff:
		return ParkStatus(b)
	default:
		return ParkingUnknown
	}
}

var (
	controllerRequestLayout  = layout{kind: KindControllerRequest, dst: telegram.EngineController, src: telegram.ECU, size: 2}
	controllerResponseLayout = layout{kind: KindControllerResponse, dst: telegram.ECU, src: telegram.EngineController, size: 10}
)

// ControllerRequest is the ECU command to the engine controller.
type ControllerRequest struct {
	base
	Charge ChargingState
}

const ctrlReqPosCharge = 1

// DecodeControllerRequest decodes the charge command sent to the engine controller.
func DecodeControllerRequest(t *telegram.Telegram) (Message, error) {
	if err := controllerRequestLayout.check(t); err != nil {
		return nil, err
	}
	charge := ChargingState(t.Byte(ctrlReqPosCharge))
	if charge != ChargingOn && charge != ChargingOff {
		charge = ChargingUnknown
	}
	return &ControllerRequest{base: base{t}, Charge: charge}, nil
}

func (m *ControllerRequest) Kind() Kind     { return KindControllerRequest }
func (m *ControllerRequest) String() string { return "Controller Request: " + m.Charge.String() }

// ControllerResponse is the engine controller state.
type ControllerResponse struct {
	base
	Gear        uint8
	CurrentRaw  uint16
	SpeedRaw    uint16
	Temperature int8
	ErrorCode   uint8
	Parking     ParkStatus
}

const (
	ctrlPosGear    = 0
	ctrlPosCurrent = 1
	ctrlPosSpeed   = 3
	ctrlPosTemp    = 5
	ctrlPosError   = 6
	ctrlPosParking = 8
)

// DecodeControllerResponse decodes the ten-byte engine controller state.
func DecodeControllerResponse(t *telegram.Telegram) (Message, error) {
	if err := controllerResponseLayout.check(t); err != nil {
		return nil, err
	}
	return &ControllerResponse{
		base:        base{t},
		Gear:        t.Byte(ctrlPosGear),
		CurrentRaw:  t.Uint16(ctrlPosCurrent),
		SpeedRaw:    t.Uint16(ctrlPosSpeed),
		Temperature: t.Int8(ctrlPosTemp),
		ErrorCode:   t.Byte(ctrlPosError),
		Parking:     parseParkStatus(t.Byte(ctrlPosParking)),
	}, nil
}

// Current in ampere, 0.1 A per unit.
func (m *ControllerResponse) Current() float64 { return currentAmps(m.CurrentRaw) }

// Speed in km/h, 0.028 km/h per unit.
func (m *ControllerResponse) Speed() float64 { return speedKmh(m.SpeedRaw) }

func (m *ControllerResponse) Kind() Kind { return KindControllerResponse }

// String formats current and speed without float noise.
func (m *ControllerResponse) String() string {
	return fmt.Sprintf("Controller Response: Mode %d, %sA, %skm/h, %d°C, Parking: %s",
		m.Gear, formatFloat(m.Current()), formatFloat(m.Speed()), m.Temperature, m.Parking)
}

// Divisions keep the decimal result exact for display (4 -> 0.4, not
// 0.4000000000000001).
func currentAmps(raw uint16) float64 { return float64(raw) / 10 }
func speedKmh(raw uint16) float64    { return float64(uint32(raw)*28) / 1000 }
