package device

import "fmt"

// platformByType maps the trailing segment of a cloud topic to the entity
// platform it is surfaced under. The cloud identifies device kinds only by
// this suffix; the numeric type code is informational.
var platformByType = map[string]Platform{
	"outlet":       PlatformSwitch,
	"switch":       PlatformSwitch,
	"light":        PlatformLight,
	"fan":          PlatformFan,
	"sensor":       PlatformSensor,
	"aircondition": PlatformClimate,
	"thermostat":   PlatformClimate,
	"curtain":      PlatformCover,
	"waterheater":  PlatformWaterHeater,
	"television":   PlatformMediaPlayer,
	"airpurifier":  PlatformAirPurifier,
}

// PlatformForType resolves a cloud type suffix to its entity platform.
//
// Unknown suffixes return ErrUnknownDeviceType. Callers must surface the
// failure (log and count it) rather than silently dropping the device, so
// new cloud device kinds are visible in diagnostics.
//
// Parameters:
//   - typeSuffix: Trailing segment of the cloud topic (e.g. "light")
//
// Returns:
//   - Platform: Mapped platform identifier
//   - error: ErrUnknownDeviceType if the suffix is not recognised
func PlatformForType(typeSuffix string) (Platform, error) {
	p, ok := platformByType[typeSuffix]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDeviceType, typeSuffix)
	}
	return p, nil
}

// IsSocket reports whether a switch-platform device should be presented as
// a socket rather than a wall switch. The cloud uses the "outlet" suffix
// for socket hardware.
func IsSocket(typeSuffix string) bool {
	return typeSuffix == "outlet"
}

// KnownTypeSuffixes returns every cloud type suffix the bridge can map.
func KnownTypeSuffixes() []string {
	suffixes := make([]string, 0, len(platformByType))
	for s := range platformByType {
		suffixes = append(suffixes, s)
	}
	return suffixes
}
