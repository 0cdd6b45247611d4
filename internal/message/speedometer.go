package message

import (
	"fmt"
	"strings"

	"github.com/tonylturner/rs485mon/internal/telegram"
)

// VehicleState as shown on the speedometer.
type VehicleState uint8

const (
	VehicleActive   VehicleState = 0
	VehicleParking  VehicleState = 1
	VehicleCharging VehicleState = 4
	VehicleUnknown  VehicleState = 0xFF
)

func (v VehicleState) String() string {
	switch v {
	case VehicleActive:
		return "ACTIVE"
	case VehicleParking:
		return "PARKING"
	case VehicleCharging:
		return "CHARGING"
	default:
		return "UNKNOWN"
	}
}

// ErrorFlags are the error codes the speedometer displays. The numeric
// suffix is the code shown to the rider.
type ErrorFlags uint16

const (
	ErrCtrlDisconnect99          ErrorFlags = 0x0001
	ErrCtrl98                    ErrorFlags = 0x0002
	ErrCtrl97                    ErrorFlags = 0x0004
	ErrCtrl96                    ErrorFlags = 0x0008
	ErrCtrl95                    ErrorFlags = 0x0010
	ErrBatteryDisconnect94       ErrorFlags = 0x0020
	ErrBatteryChargeCurrent93    ErrorFlags = 0x0040
	ErrBatteryChargeStopped92    ErrorFlags = 0x0080
	ErrBatteryOvertemp91         ErrorFlags = 0x0100
	ErrBatteryDischargeCurrent90 ErrorFlags = 0x0200
	ErrBattery89                 ErrorFlags = 0x0400
	ErrBattery88                 ErrorFlags = 0x0800
)

var errorFlagNames = []struct {
	flag ErrorFlags
	name string
}{
	{ErrCtrlDisconnect99, "CTRL_DISCONNECT_99"},
	{ErrCtrl98, "CTRL_ERROR_98"},
	{ErrCtrl97, "CTRL_ERROR_97"},
	{ErrCtrl96, "CTRL_ERROR_96"},
	{ErrCtrl95, "CTRL_ERROR_95"},
	{ErrBatteryDisconnect94, "BATTERY_DISCONNECT_94"},
	{ErrBatteryChargeCurrent93, "BATTERY_CHARGE_CURRENT_93"},
	{ErrBatteryChargeStopped92, "BATTERY_CHARGE_STOPPED_92"},
	{ErrBatteryOvertemp91, "BATTERY_OVERTEMP_91"},
	{ErrBatteryDischargeCurrent90, "BATTERY_DISCHARGE_CURRENT_90"},
	{ErrBattery89, "BATTERY_ERROR_89"},
	{ErrBattery88, "BATTERY_ERROR_88"},
}

// Has reports whether every bit of flag is set.
func (e ErrorFlags) Has(flag ErrorFlags) bool { return e&flag == flag }

// String joins the set flag names with "|", unknown bits in hex.
func (e ErrorFlags) String() string {
	if e == 0 {
		return "0"
	}
	var names []string
	rest := e
	for _, f := range errorFlagNames {
		if e.Has(f.flag) {
			names = append(names, f.name)
			rest &^= f.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%04X", uint16(rest)))
	}
	return strings.Join(names, "|")
}

var (
	speedometerRequestLayout  = layout{kind: KindSpeedometerRequest, dst: telegram.Speedometer, src: telegram.ECU, size: 14}
	speedometerResponseLayout = layout{kind: KindSpeedometerResponse, dst: telegram.ECU, src: telegram.Speedometer, size: 1}
)

// SpeedometerRequest is the ECU updating the dashboard.
type SpeedometerRequest struct {
	base
	SoC          uint8
	CtrlCurrent  uint8
	Speed        uint8
	TempLevel    uint8
	Hour         uint8
	Minute       uint8
	Errors       ErrorFlags
	State        VehicleState
	Gear         uint8
	SpeedControl uint16
	Range        uint8
}

const (
	spdPosSoC       = 0
	spdPosCurrent   = 1
	spdPosSpeed     = 2
	spdPosTempLevel = 3
	spdPosHour      = 4
	spdPosMinute    = 5
	spdPosErrors    = 6
	spdPosState     = 8
	spdPosGear      = 9
	spdPosSpeedCtrl = 10
	spdPosRange     = 13
)

// DecodeSpeedometerRequest decodes the fourteen-byte dashboard update.
func DecodeSpeedometerRequest(t *telegram.Telegram) (Message, error) {
	if err := speedometerRequestLayout.check(t); err != nil {
		return nil, err
	}
	state := VehicleState(t.Byte(spdPosState))
	switch state {
	case VehicleActive, VehicleParking, VehicleCharging:
	default:
		state = VehicleUnknown
	}
	return &SpeedometerRequest{
		base:         base{t},
		SoC:          t.Byte(spdPosSoC),
		CtrlCurrent:  t.Byte(spdPosCurrent),
		Speed:        t.Byte(spdPosSpeed),
		TempLevel:    t.Byte(spdPosTempLevel),
		Hour:         t.Byte(spdPosHour),
		Minute:       t.Byte(spdPosMinute),
		Errors:       ErrorFlags(t.Uint16(spdPosErrors)),
		State:        state,
		Gear:         t.Byte(spdPosGear),
		SpeedControl: t.Uint16(spdPosSpeedCtrl),
		Range:        t.Byte(spdPosRange),
	}, nil
}

// ControllerCurrent in ampere, 2.5 A per unit.
func (m *SpeedometerRequest) ControllerCurrent() float64 { return float64(m.CtrlCurrent) * 2.5 }

func (m *SpeedometerRequest) Kind() Kind { return KindSpeedometerRequest }

func (m *SpeedometerRequest) String() string {
	return fmt.Sprintf("Speedometer Request: Soc %d%%, Current %sA, Speed %dkm/h, TempLvl %d, Time %02d:%02d, Error %s, Vehicle State %s, Gear %d, Speed Ctrl %d, Range %dkm",
		m.SoC, formatFloat(m.ControllerCurrent()), m.Speed, m.TempLevel, m.Hour, m.Minute,
		m.Errors, m.State, m.Gear, m.SpeedControl, m.Range)
}

// SpeedometerResponse acknowledges a SpeedometerRequest.
type SpeedometerResponse struct {
	base
}

// DecodeSpeedometerResponse decodes the one-byte dashboard acknowledgement.
func DecodeSpeedometerResponse(t *telegram.Telegram) (Message, error) {
	if err := speedometerResponseLayout.check(t); err != nil {
		return nil, err
	}
	return &SpeedometerResponse{base{t}}, nil
}

func (m *SpeedometerResponse) Kind() Kind     { return KindSpeedometerResponse }
func (m *SpeedometerResponse) String() string { return "Speedometer Response" }
