package bridge

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/behome-bridge/internal/device"
)

// Water heaters, media players and air purifiers report only the vendor's
// plain-string state form; these tests cover that path end to end.

func TestWaterHeaterAdapter_State(t *testing.T) {
	a := waterHeaterAdapter{}

	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "heating in eco",
			raw:  "on,55,eco",
			want: map[string]any{"on": true, "target_temperature": float64(55), "mode": "eco"},
		},
		{
			name: "wire mode name normalised",
			raw:  "on,60,perf",
			want: map[string]any{"on": true, "target_temperature": float64(60), "mode": "performance"},
		},
		{
			name: "missing mode defaults to performance",
			raw:  "on,50",
			want: map[string]any{"on": true, "target_temperature": float64(50), "mode": "performance"},
		},
		{
			name: "missing temperature uses default",
			raw:  "on",
			want: map[string]any{"on": true, "target_temperature": waterHeaterDefaultTemp, "mode": "performance"},
		},
		{
			name: "off",
			raw:  "off",
			want: map[string]any{"on": false, "mode": "off"},
		},
		{
			name: "empty raw state",
			raw:  "",
			want: map[string]any{"on": false, "mode": "off"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDeviceFor(device.PlatformWaterHeater, device.State{})
			d.RawState = tt.raw
			got := a.State(d)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaterHeaterAdapter_Translate(t *testing.T) {
	a := waterHeaterAdapter{}

	t.Run("set temperature carries temperature on the wire", func(t *testing.T) {
		d := testDeviceFor(device.PlatformWaterHeater, device.State{})
		d.RawState = "on,55,eco"

		tr, err := a.Translate(d, Command{Action: ActionSetTemp, Temperature: floatPtr(48)})
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		want := map[string]any{"on": true, "v": float64(48)}
		if !reflect.DeepEqual(tr.Message, want) {
			t.Errorf("Message = %v, want %v", tr.Message, want)
		}
	})

	t.Run("mode change keeps current temperature and applies mode locally", func(t *testing.T) {
		d := testDeviceFor(device.PlatformWaterHeater, device.State{})
		d.RawState = "on,60,perf"

		tr, err := a.Translate(d, Command{Action: ActionSetMode, Mode: "eco"})
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if tr.Message["v"] != float64(60) {
			t.Errorf("v = %v, want 60", tr.Message["v"])
		}
		if tr.Optimistic["mode"] != "eco" {
			t.Errorf("Optimistic mode = %v, want eco", tr.Optimistic["mode"])
		}
	})

	t.Run("mode off powers down", func(t *testing.T) {
		d := testDeviceFor(device.PlatformWaterHeater, device.State{})

		tr, err := a.Translate(d, Command{Action: ActionSetMode, Mode: "off"})
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		want := map[string]any{"on": false}
		if !reflect.DeepEqual(tr.Message, want) {
			t.Errorf("Message = %v, want %v", tr.Message, want)
		}
	})

	t.Run("invalid mode rejected", func(t *testing.T) {
		d := testDeviceFor(device.PlatformWaterHeater, device.State{})

		if _, err := a.Translate(d, Command{Action: ActionSetMode, Mode: "boost"}); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Translate() error = %v, want ErrInvalidCommand", err)
		}
	})
}

func TestMediaPlayerAdapter(t *testing.T) {
	a := mediaPlayerAdapter{}

	t.Run("state from raw string", func(t *testing.T) {
		tests := []struct {
			raw  string
			want bool
		}{
			{"on", true},
			{"playing", true},
			{"off", false},
			{"", false},
		}
		for _, tt := range tests {
			d := testDeviceFor(device.PlatformMediaPlayer, device.State{})
			d.RawState = tt.raw
			if got, _ := a.State(d)["on"].(bool); got != tt.want {
				t.Errorf("State(%q) on = %v, want %v", tt.raw, got, tt.want)
			}
		}
	})

	t.Run("step commands", func(t *testing.T) {
		d := testDeviceFor(device.PlatformMediaPlayer, device.State{})
		d.RawState = "on"

		tests := []struct {
			action string
			want   string
		}{
			{ActionVolumeUp, "volup"},
			{ActionVolumeDown, "voldown"},
			{ActionChannelUp, "chup"},
			{ActionChannelDown, "chdown"},
		}
		for _, tt := range tests {
			tr, err := a.Translate(d, Command{Action: tt.action})
			if err != nil {
				t.Fatalf("Translate(%s) error = %v", tt.action, err)
			}
			if tr.Message["command"] != tt.want {
				t.Errorf("Translate(%s) = %v, want command=%q", tt.action, tr.Message, tt.want)
			}
			if tr.Optimistic != nil {
				t.Errorf("Translate(%s) Optimistic = %v, want nil", tt.action, tr.Optimistic)
			}
		}
	})
}

func TestAirPurifierAdapter(t *testing.T) {
	a := airPurifierAdapter{}

	t.Run("state from raw string", func(t *testing.T) {
		d := testDeviceFor(device.PlatformAirPurifier, device.State{})
		d.RawState = "on,sleep"

		want := map[string]any{"on": true, "preset": "sleep"}
		if got := a.State(d); !reflect.DeepEqual(got, want) {
			t.Errorf("State() = %v, want %v", got, want)
		}
	})

	t.Run("unknown preset in raw state dropped", func(t *testing.T) {
		d := testDeviceFor(device.PlatformAirPurifier, device.State{})
		d.RawState = "on,warp"

		want := map[string]any{"on": true}
		if got := a.State(d); !reflect.DeepEqual(got, want) {
			t.Errorf("State() = %v, want %v", got, want)
		}
	})

	t.Run("set preset", func(t *testing.T) {
		d := testDeviceFor(device.PlatformAirPurifier, device.State{})
		d.RawState = "on,auto"

		tr, err := a.Translate(d, Command{Action: ActionSetPreset, Preset: "strong"})
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		want := map[string]any{"on": true, "mode": "strong"}
		if !reflect.DeepEqual(tr.Message, want) {
			t.Errorf("Message = %v, want %v", tr.Message, want)
		}
	})

	t.Run("invalid preset rejected", func(t *testing.T) {
		d := testDeviceFor(device.PlatformAirPurifier, device.State{})

		if _, err := a.Translate(d, Command{Action: ActionSetPreset, Preset: "warp"}); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Translate() error = %v, want ErrInvalidCommand", err)
		}
	})
}

func TestSensorAdapter(t *testing.T) {
	d := testDeviceFor(device.PlatformSensor, device.State{
		"t":    float64(21.5),
		"h":    float64(40),
		"pm25": float64(12),
	})

	readings := SensorReadings(d)
	want := map[string]float64{
		"temperature": 21.5,
		"humidity":    40,
		"pm25":        12,
	}
	if !reflect.DeepEqual(readings, want) {
		t.Errorf("SensorReadings() = %v, want %v", readings, want)
	}

	a := sensorAdapter{}
	if _, err := a.Translate(d, Command{Action: ActionTurnOn}); !errors.Is(err, ErrUnsupportedCommand) {
		t.Errorf("Translate() error = %v, want ErrUnsupportedCommand", err)
	}
}
