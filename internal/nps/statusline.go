package nps

import (
	"regexp"
	"strings"
)

// State is the power state of a relay as reported by the device
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"

	// StateUnknown is reported for a requested relay that does not appear
	// in the device's status table.
	StateUnknown State = "UNKNOWN"
)

// RelayStatus is one relay's entry in a status response
type RelayStatus struct {
	Relay int
	State State
}

// A status line starts with the relay digit and ends its interesting part
// with "| ON" or "| OFF". Everything between is free-form plug names and
// column separators.
var statusLinePattern = regexp.MustCompile(`^(\d)[\d\w\s()|]+\s+\|\s+(ON|OFF)`)

// ParseStatusLine extracts the relay number and state from one line of the
// status table. Header, separator, and blank lines do not match.
func ParseStatusLine(line string) (RelayStatus, bool) {
	m := statusLinePattern.FindStringSubmatch(strings.TrimLeft(line, " \t"))
	if m == nil {
		return RelayStatus{}, false
	}

	return RelayStatus{
		Relay: int(m[1][0] - '0'),
		State: State(m[2]),
	}, true
}

// ParseStatusTable returns every status line in text, in the order the
// device printed them.
func ParseStatusTable(text string) []RelayStatus {
	var statuses []RelayStatus
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if st, ok := ParseStatusLine(line); ok {
			statuses = append(statuses, st)
		}
	}
	return statuses
}
