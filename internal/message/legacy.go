package message

import (
	"fmt"

	"github.com/tonylturner/rs485mon/internal/telegram"
)

// Layouts used by older firmware. They share ids with the current variants
// and are only reachable through LegacyRegistry.
var (
	batteryStatusLayout = layout{kind: KindBatteryStatus, dst: telegram.ECU, src: telegram.Battery, size: 10}
	ecuStatusLayout     = layout{kind: KindECUStatus, dst: telegram.ECU, src: telegram.EngineController, size: 10}
	gsmStatusLayout     = layout{kind: KindGSMStatus, dst: telegram.Speedometer, src: telegram.ECU, size: 14}
)

// BatteryStatus is the legacy battery report.
type BatteryStatus struct {
	base
	Voltage     uint8
	SoC         uint8
	Temperature uint8
	ChargeRaw   uint8
	Cycles      uint16
	ChargingRaw uint8
}

const (
	legBatPosCharge   = 3
	legBatPosCycles   = 6
	legBatPosCharging = 9
)

// DecodeBatteryStatus decodes the legacy battery report.
func DecodeBatteryStatus(t *telegram.Telegram) (Message, error) {
	if err := batteryStatusLayout.check(t); err != nil {
		return nil, err
	}
	return &BatteryStatus{
		base:        base{t},
		Voltage:     t.Byte(batPosVoltage),
		SoC:         t.Byte(batPosSoC),
		Temperature: t.Byte(batPosTemp),
		ChargeRaw:   t.Byte(legBatPosCharge),
		Cycles:      t.Uint16(legBatPosCycles),
		ChargingRaw: t.Byte(legBatPosCharging),
	}, nil
}

// Charge in ampere. Raw values of 100 and above carry one decimal place.
func (m *BatteryStatus) Charge() float64 {
	v := float64(m.ChargeRaw)
	if v >= 100 {
		v /= 10
	}
	return v
}

// Charging decodes the 0/1 flag. Other values read as false; KnownCharging
// tells them apart.
func (m *BatteryStatus) Charging() bool { return m.ChargingRaw == 1 }

// KnownCharging reports whether the charging byte holds a defined value.
func (m *BatteryStatus) KnownCharging() bool { return m.ChargingRaw <= 1 }

func (m *BatteryStatus) Kind() Kind { return KindBatteryStatus }

func (m *BatteryStatus) String() string {
	return fmt.Sprintf("Battery Status: %dV, %d%%, %d°C, %s Amp, %dx, Charging: %t",
		m.Voltage, m.SoC, m.Temperature, formatFloat(m.Charge()), m.Cycles, m.Charging())
}

// ECUStatus is the legacy name of the controller response.
type ECUStatus struct {
	base
	Mode        uint8
	CurrentRaw  uint16
	SpeedRaw    uint16
	Temperature int8
	Parking     ParkStatus
}

// DecodeECUStatus decodes the legacy controller report.
func DecodeECUStatus(t *telegram.Telegram) (Message, error) {
	if err := ecuStatusLayout.check(t); err != nil {
		return nil, err
	}
	return &ECUStatus{
		base:        base{t},
		Mode:        t.Byte(ctrlPosGear),
		CurrentRaw:  t.Uint16(ctrlPosCurrent),
		SpeedRaw:    t.Uint16(ctrlPosSpeed),
		Temperature: t.Int8(ctrlPosTemp),
		Parking:     parseParkStatus(t.Byte(ctrlPosParking)),
	}, nil
}

func (m *ECUStatus) Current() float64 { return currentAmps(m.CurrentRaw) }
func (m *ECUStatus) Speed() float64   { return speedKmh(m.SpeedRaw) }
func (m *ECUStatus) IsParking() bool  { return m.Parking == ParkingOn }
func (m *ECUStatus) Kind() Kind       { return KindECUStatus }

func (m *ECUStatus) String() string {
	return fmt.Sprintf("ECU Status: Mode %d, %sA, %skm/h, %d°C, Parking: %t",
		m.Mode, formatFloat(m.Current()), formatFloat(m.Speed()), m.Temperature, m.IsParking())
}

// GSMStatus is the legacy reading of the speedometer request, where only the
// clock was decoded.
type GSMStatus struct {
	base
	Hour   uint8
	Minute uint8
}

// DecodeGSMStatus reads only the clock of a speedometer request.
func DecodeGSMStatus(t *telegram.Telegram) (Message, error) {
	if err := gsmStatusLayout.check(t); err != nil {
		return nil, err
	}
	return &GSMStatus{
		base:   base{t},
		Hour:   t.Byte(spdPosHour),
		Minute: t.Byte(spdPosMinute),
	}, nil
}

func (m *GSMStatus) Kind() Kind { return KindGSMStatus }

func (m *GSMStatus) String() string {
	return fmt.Sprintf("GSM Status: Time %02d:%02d", m.Hour, m.Minute)
}
