package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that reads and prints as "30s" in YAML and
// environment variables instead of integer nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText accepts any string time.ParseDuration understands.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// MarshalYAML keeps yaml.v3 from emitting the underlying int64.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
