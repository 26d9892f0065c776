package device

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Validation constants.
const (
	maxNameLength = 100

	// Size limits for JSON fields to prevent memory exhaustion from a
	// misbehaving cloud response.
	maxStateKeys      = 100
	maxStringValueLen = 1024
	maxNestingDepth   = 10
	maxArrayLen       = 50
)

// validPlatforms is a pre-computed set for O(1) lookups.
var validPlatforms map[Platform]struct{}

func init() {
	validPlatforms = make(map[Platform]struct{}, len(AllPlatforms()))
	for _, p := range AllPlatforms() {
		validPlatforms[p] = struct{}{}
	}
}

// ValidateDevice performs comprehensive validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if strings.TrimSpace(d.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidTopic)
	}

	if err := ValidatePlatform(d.Platform); err != nil {
		return err
	}

	if len(d.State) > maxStateKeys {
		return fmt.Errorf("%w: state exceeds max keys (%d)", ErrInvalidState, maxStateKeys)
	}
	if err := validateMapSize(d.State, "state"); err != nil {
		return err
	}

	return nil
}

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidatePlatform checks if a platform is valid.
// Uses O(1) map lookup for efficiency.
func ValidatePlatform(platform Platform) error {
	if _, ok := validPlatforms[platform]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
}

// NormaliseRoom cleans a cloud-reported room name for use as a suggested
// area. The cloud mixes full-width and half-width forms for the same room
// ("２Ｆ" vs "2F", "ｷｯﾁﾝ" vs "キッチン"), so the name is NFKC-folded first,
// then surrounding whitespace is stripped and internal runs of whitespace
// collapse to a single space.
func NormaliseRoom(room string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(room)), " ")
}

// validateMapSize checks that all values in a map don't exceed size limits.
// This recursively validates nested maps and slices.
func validateMapSize(m map[string]any, fieldName string) error {
	return validateMapSizeRecursive(m, fieldName, 0)
}

// validateMapSizeRecursive recursively validates map values with depth tracking.
func validateMapSizeRecursive(m map[string]any, fieldName string, depth int) error {
	if depth > maxNestingDepth {
		return fmt.Errorf("%w: %s exceeds maximum nesting depth", ErrInvalidDevice, fieldName)
	}

	for k, v := range m {
		// Check key length
		if len(k) > maxStringValueLen {
			return fmt.Errorf("%w: %s key too long", ErrInvalidDevice, fieldName)
		}
		// Recursively validate values
		if err := validateValueSize(v, fieldName, depth); err != nil {
			return err
		}
	}
	return nil
}

// validateValueSize recursively validates a value's size.
func validateValueSize(v any, fieldName string, depth int) error {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case string:
		if len(val) > maxStringValueLen {
			return fmt.Errorf("%w: %s string value too long", ErrInvalidDevice, fieldName)
		}
	case map[string]any:
		if len(val) > maxStateKeys {
			return fmt.Errorf("%w: %s nested map too large", ErrInvalidDevice, fieldName)
		}
		return validateMapSizeRecursive(val, fieldName, depth+1)
	case []any:
		if len(val) > maxArrayLen {
			return fmt.Errorf("%w: %s array too large", ErrInvalidDevice, fieldName)
		}
		for _, elem := range val {
			if err := validateValueSize(elem, fieldName, depth+1); err != nil {
				return err
			}
		}
	}
	// Primitives (bool, int, float64, etc.) are safe
	return nil
}
