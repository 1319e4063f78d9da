package device

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// MaxFeatures is the most features a device may carry.
const MaxFeatures = 64

// Validation constants.
const (
	maxNameLength       = 100
	maxExternalIDLength = 255
	selectorPattern     = `^[a-z0-9]+(?:-[a-z0-9]+)*$`
	externalIDPattern   = `^[a-z0-9_-]+:[^:\s]+(?::[^:\s]+)?$`
)

var (
	selectorRegex   = regexp.MustCompile(selectorPattern)
	externalIDRegex = regexp.MustCompile(externalIDPattern)
)

// ValidateDevice checks a device and all of its features, returning the first
// failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is nil", ErrInvalidDevice)
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if strings.TrimSpace(d.ServiceID) == "" {
		return fmt.Errorf("%w: service_id is required", ErrInvalidDevice)
	}
	if err := ValidateExternalID(d.ExternalID); err != nil {
		return err
	}
	if err := ValidateSelector(d.Selector); err != nil {
		return err
	}
	if len(d.Features) > MaxFeatures {
		return fmt.Errorf("%w: %d features exceeds maximum %d", ErrInvalidDevice, len(d.Features), MaxFeatures)
	}

	seen := make(map[string]struct{}, len(d.Features))
	for i := range d.Features {
		f := &d.Features[i]
		if err := validateFeature(d.ExternalID, f); err != nil {
			return err
		}
		if _, dup := seen[f.ExternalID]; dup {
			return fmt.Errorf("%w: duplicate external id %q", ErrInvalidFeature, f.ExternalID)
		}
		seen[f.ExternalID] = struct{}{}
	}
	return nil
}

func validateFeature(deviceExternalID string, f *Feature) error {
	if err := ValidateName(f.Name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFeature, err)
	}
	if f.Category == "" || f.Type == "" {
		return fmt.Errorf("%w: %q needs category and type", ErrInvalidFeature, f.ExternalID)
	}
	if !strings.HasPrefix(f.ExternalID, deviceExternalID+":") {
		return fmt.Errorf("%w: %q is not scoped to device %q", ErrInvalidFeature, f.ExternalID, deviceExternalID)
	}
	if err := ValidateExternalID(f.ExternalID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFeature, err)
	}
	if err := ValidateSelector(f.Selector); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFeature, err)
	}
	if f.Min > f.Max {
		return fmt.Errorf("%w: %q min %v above max %v", ErrInvalidFeature, f.ExternalID, f.Min, f.Max)
	}
	return nil
}

// ValidateName checks that a name is non-blank and at most 100 characters.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateExternalID checks the "<vendor>:<topic>[:<capability>]" shape.
func ValidateExternalID(id string) error {
	if len(id) > maxExternalIDLength || !externalIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidExternalID, id)
	}
	return nil
}

// ValidateSelector checks that a selector is lower-case alphanumerics joined
// by single hyphens.
func ValidateSelector(selector string) error {
	if !selectorRegex.MatchString(selector) {
		return fmt.Errorf("%w: %q", ErrInvalidSelector, selector)
	}
	return nil
}

// GenerateSelector derives a UI-safe selector: lower-cased, with every run of
// non-alphanumeric characters collapsed to a single hyphen.
//
//	GenerateSelector("tasmota:kitchen_plug:POWER") // "tasmota-kitchen-plug-power"
func GenerateSelector(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}
