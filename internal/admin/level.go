package admin

import (
	"errors"
	"fmt"
)

// Level is a depth in the location tree.
type Level int

const (
	National Level = iota
	AdminOne
	AdminTwo
)

// ErrInvalidLevel is returned when a level has no meaning for the call.
// It signals a wiring bug, not dirty data.
var ErrInvalidLevel = errors.New("invalid admin level")

// UnspecifiedSuffix marks a connector code.
const UnspecifiedSuffix = "-XXX"

// UnspecifiedName is the display name of every connector row.
const UnspecifiedName = "UNSPECIFIED"

func (l Level) String() string {
	switch l {
	case National:
		return "national"
	case AdminOne:
		return "adminone"
	case AdminTwo:
		return "admintwo"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts "national", "adminone", "admintwo" or "0", "1", "2".
func ParseLevel(s string) (Level, error) {
	switch s {
	case "national", "0":
		return National, nil
	case "adminone", "1":
		return AdminOne, nil
	case "admintwo", "2":
		return AdminTwo, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Admin1ToLocationConnector returns the unspecified admin1 code of a country.
func Admin1ToLocationConnector(locationCode string) string {
	return locationCode + UnspecifiedSuffix
}

// Admin2ToAdmin1Connector returns the unspecified admin2 code of an admin1.
func Admin2ToAdmin1Connector(admin1Code string) string {
	return admin1Code + UnspecifiedSuffix
}

// Admin2ToLocationConnector returns the doubly unspecified admin2 code of a
// country.
func Admin2ToLocationConnector(locationCode string) string {
	return locationCode + UnspecifiedSuffix + UnspecifiedSuffix
}

// Admin1CodeForLevel maps a code reported at level to the admin1 code that
// stands for it. Only National and AdminOne are meaningful.
func Admin1CodeForLevel(code string, level Level) (string, error) {
	switch level {
	case National:
		return Admin1ToLocationConnector(code), nil
	case AdminOne:
		return code, nil
	}
	return "", fmt.Errorf("admin1 code for %s: %w", level, ErrInvalidLevel)
}

// Admin2CodeForLevel maps a code reported at level to the admin2 code that
// stands for it.
func Admin2CodeForLevel(code string, level Level) (string, error) {
	switch level {
	case National:
		return Admin2ToAdmin1Connector(Admin1ToLocationConnector(code)), nil
	case AdminOne:
		return Admin2ToAdmin1Connector(code), nil
	case AdminTwo:
		return code, nil
	}
	return "", fmt.Errorf("admin2 code for %s: %w", level, ErrInvalidLevel)
}
