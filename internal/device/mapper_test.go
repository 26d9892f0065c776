package device

import (
	"errors"
	"testing"
)

func TestPlatformForType(t *testing.T) {
	tests := []struct {
		suffix string
		want   Platform
	}{
		{"outlet", PlatformSwitch},
		{"switch", PlatformSwitch},
		{"light", PlatformLight},
		{"fan", PlatformFan},
		{"sensor", PlatformSensor},
		{"aircondition", PlatformClimate},
		{"thermostat", PlatformClimate},
		{"curtain", PlatformCover},
		{"waterheater", PlatformWaterHeater},
		{"television", PlatformMediaPlayer},
		{"airpurifier", PlatformAirPurifier},
	}

	for _, tt := range tests {
		t.Run(tt.suffix, func(t *testing.T) {
			got, err := PlatformForType(tt.suffix)
			if err != nil {
				t.Fatalf("PlatformForType(%q) error = %v", tt.suffix, err)
			}
			if got != tt.want {
				t.Errorf("PlatformForType(%q) = %q, want %q", tt.suffix, got, tt.want)
			}
		})
	}
}

func TestPlatformForType_Unknown(t *testing.T) {
	for _, suffix := range []string{"", "doorbell", "LIGHT", "light "} {
		_, err := PlatformForType(suffix)
		if err == nil {
			t.Errorf("PlatformForType(%q) expected error, got nil", suffix)
			continue
		}
		if !errors.Is(err, ErrUnknownDeviceType) {
			t.Errorf("PlatformForType(%q) error = %v, want ErrUnknownDeviceType", suffix, err)
		}
	}
}

func TestIsSocket(t *testing.T) {
	if !IsSocket("outlet") {
		t.Error("IsSocket(outlet) = false, want true")
	}
	if IsSocket("switch") {
		t.Error("IsSocket(switch) = true, want false")
	}
}

func TestKnownTypeSuffixes_CoversAllPlatforms(t *testing.T) {
	seen := make(map[Platform]bool)
	for _, suffix := range KnownTypeSuffixes() {
		p, err := PlatformForType(suffix)
		if err != nil {
			t.Fatalf("PlatformForType(%q) error = %v", suffix, err)
		}
		seen[p] = true
	}

	for _, p := range AllPlatforms() {
		if !seen[p] {
			t.Errorf("no type suffix maps to platform %q", p)
		}
	}
}
