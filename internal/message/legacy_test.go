package message

import (
	"testing"

	"github.com/tonylturner/rs485mon/internal/telegram"
)

func TestLegacyRegistry(t *testing.T) {
	reg := LegacyRegistry()

	tests := []struct {
		name string
		tg   *telegram.Telegram
		want string
	}{
		{
			name: "battery status",
			tg:   mustTelegram(t, batteryResponseRaw),
			want: "Battery Status: 77V, 72%, 23°C, 0 Amp, 11x, Charging: false",
		},
		{
			name: "ecu status",
			tg:   mustTelegram(t, controllerResponseRaw),
			want: "ECU Status: Mode 2, 0.4A, 0km/h, 19°C, Parking: true",
		},
		{
			name: "gsm status",
			tg:   mustTelegram(t, speedometerRequestRaw),
			want: "GSM Status: Time 10:38",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := reg.Specialize(tt.tg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.String() != tt.want {
				t.Errorf("String() = %q, want %q", m.String(), tt.want)
			}
		})
	}

	m, err := reg.Specialize(mustTelegram(t, batteryRequestRaw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind() != KindGeneric {
		t.Errorf("battery request is not part of the legacy profile, got %v", m.Kind())
	}
}

func TestBatteryStatusCharge(t *testing.T) {
	tests := []struct {
		name         string
		charge       byte
		charging     byte
		wantCharge   float64
		wantCharging bool
		wantKnown    bool
	}{
		{"small charge", 42, 1, 42, true, true},
		{"scaled charge", 125, 0, 12.5, false, true},
		{"undefined charging byte", 0, 7, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdu := []byte{0x4D, 0x48, 0x17, tt.charge, 0x00, 0x00, 0x00, 0x03, 0x00, tt.charging}
			m, err := DecodeBatteryStatus(encoded(t, telegram.Response, telegram.ECU, telegram.Battery, pdu...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			bs := m.(*BatteryStatus)
			if bs.Charge() != tt.wantCharge {
				t.Errorf("Charge() = %v, want %v", bs.Charge(), tt.wantCharge)
			}
			if bs.Charging() != tt.wantCharging {
				t.Errorf("Charging() = %v, want %v", bs.Charging(), tt.wantCharging)
			}
			if bs.KnownCharging() != tt.wantKnown {
				t.Errorf("KnownCharging() = %v, want %v", bs.KnownCharging(), tt.wantKnown)
			}
			if bs.Cycles != 3 {
				t.Errorf("Cycles = %d, want 3", bs.Cycles)
			}
		})
	}
}
