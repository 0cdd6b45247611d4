package message

import (
	"fmt"

	"github.com/tonylturner/rs485mon/internal/telegram"
)

// BreakerStatus is the battery's voltage breaker code.
type BreakerStatus uint8

const (
	BreakerOK                   BreakerStatus = 0
	BreakerBMSStoppedCharge     BreakerStatus = 1
	BreakerHighCurrentCharge    BreakerStatus = 2
	BreakerHighCurrentDischarge BreakerStatus = 4
)

// String returns the breaker name, or the raw code when unknown.
func (s BreakerStatus) String() string {
	switch s {
	case BreakerOK:
		return "OK"
	case BreakerBMSStoppedCharge:
		return "BMS_STOPPED_CHARGE"
	case BreakerHighCurrentCharge:
		return "HIGH_CURRENT_CHARGE"
	case BreakerHighCurrentDischarge:
		return "HIGH_CURRENT_DISCHARGE"
	default:
		return fmt.Sprintf("%d", uint8(s))
	}
}

// BatteryActivity is what the battery is currently doing.
type BatteryActivity uint8

const (
	ActivityNone        BatteryActivity = 0
	ActivityCharging    BatteryActivity = 1
	ActivityDischarging BatteryActivity = 4
)

func (a BatteryActivity) String() string {
	switch a {
	case ActivityNone:
		return "NO_ACTIVITY"
	case ActivityCharging:
		return "CHARGING"
	case ActivityDischarging:
		return "DISCHARGING"
	default:
		return fmt.Sprintf("%d", uint8(a))
	}
}

var (
	batteryRequestLayout  = layout{kind: KindBatteryRequest, dst: telegram.Battery, src: telegram.ECU, size: 1}
	batteryResponseLayout = layout{kind: KindBatteryResponse, dst: telegram.ECU, src: telegram.Battery, size: 10}
)

// BatteryRequest is the ECU polling the battery.
type BatteryRequest struct {
	base
}

// DecodeBatteryRequest decodes the one-byte battery poll from the ECU.
func DecodeBatteryRequest(t *telegram.Telegram) (Message, error) {
	if err := batteryRequestLayout.check(t); err != nil {
		return nil, err
	}
	return &BatteryRequest{base{t}}, nil
}

func (m *BatteryRequest) Kind() Kind     { return KindBatteryRequest }
func (m *BatteryRequest) String() string { return "Battery Request" }

// BatteryResponse carries the battery management state.
type BatteryResponse struct {
	base
	Voltage         uint8
	SoC             uint8
	Temperature     int8
	Current         int8
	Cycles          uint16
	DischargeCycles uint16
	Breaker         BreakerStatus
	Activity        BatteryActivity
}

const (
	batPosVoltage  = 0
	batPosSoC      = 1
	batPosTemp     = 2
	batPosCurrent  = 3
	batPosCycles   = 4
	batPosDischCyc = 6
	batPosBreaker  = 8
	batPosActivity = 9
)

// DecodeBatteryResponse decodes the ten-byte battery management report.
func DecodeBatteryResponse(t *telegram.Telegram) (Message, error) {
	if err := batteryResponseLayout.check(t); err != nil {
		return nil, err
	}
	return &BatteryResponse{
		base:            base{t},
		Voltage:         t.Byte(batPosVoltage),
		SoC:             t.Byte(batPosSoC),
		Temperature:     t.Int8(batPosTemp),
		Current:         t.Int8(batPosCurrent),
		Cycles:          t.Uint16(batPosCycles),
		DischargeCycles: t.Uint16(batPosDischCyc),
		Breaker:         BreakerStatus(t.Byte(batPosBreaker)),
		Activity:        BatteryActivity(t.Byte(batPosActivity)),
	}, nil
}

// Charging is true while the activity code reports charging.
func (m *BatteryResponse) Charging() bool { return m.Activity == ActivityCharging }

func (m *BatteryResponse) Kind() Kind { return KindBatteryResponse }

// String is the one-line form shown by the printers.
func (m *BatteryResponse) String() string {
	return fmt.Sprintf("Battery Response: %dV, %d%%, %d°C, %d Amp, Charged: %dx, Discharged: %dx, VBreaker: %s, Activity: %s, Charging: %t",
		m.Voltage, m.SoC, m.Temperature, m.Current, m.Cycles, m.DischargeCycles, m.Breaker, m.Activity, m.Charging())
}
