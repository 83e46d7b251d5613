package relay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Relays are numbered from MinRelay to MaxRelay on the device, on the
// command line, and in status output.
const (
	MinRelay = 1
	MaxRelay = 8
)

// AllKeyword selects every relay
const AllKeyword = "all"

// Action is the operation requested for a set of relays
type Action int

const (
	ActionOn Action = iota + 1
	ActionOff
	ActionReboot
	ActionStatus
)

// Verb returns the command token the device expects for a, or "" for
// actions that are not sent per relay.
func (a Action) Verb() string {
	switch a {
	case ActionOn:
		return "On"
	case ActionOff:
		return "Off"
	case ActionReboot:
		return "Boot"
	default:
		return ""
	}
}

func (a Action) String() string {
	switch a {
	case ActionOn:
		return "on"
	case ActionOff:
		return "off"
	case ActionReboot:
		return "reboot"
	case ActionStatus:
		return "status"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Validate checks that n names a relay on the device
func Validate(n int) error {
	if n < MinRelay || n > MaxRelay {
		return fmt.Errorf("%w %d: must be between %d and %d", ErrInvalidRelay, n, MinRelay, MaxRelay)
	}
	return nil
}

// ValidateCount checks a configured number of relays
func ValidateCount(count int) error {
	if count < MinRelay || count > MaxRelay {
		return fmt.Errorf("%w %d: must be between %d and %d", ErrInvalidCount, count, MinRelay, MaxRelay)
	}
	return nil
}

// Selector names either a single relay or all of them
type Selector struct {
	all   bool
	index int
}

// All returns a selector for every relay
func All() Selector {
	return Selector{all: true}
}

// Single returns a selector for relay n
func Single(n int) (Selector, error) {
	if err := Validate(n); err != nil {
		return Selector{}, err
	}
	return Selector{index: n}, nil
}

// ParseSelector accepts "all" or a relay number
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, AllKeyword) {
		return All(), nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return Selector{}, fmt.Errorf("%w %q: expected a relay number or %q", ErrInvalidSelector, s, AllKeyword)
	}
	return Single(n)
}

// IsAll reports whether the selector covers every relay
func (s Selector) IsAll() bool {
	return s.all
}

// Index returns the selected relay, or 0 for an "all" selector
func (s Selector) Index() int {
	if s.all {
		return 0
	}
	return s.index
}

// IsZero reports whether the selector was never set
func (s Selector) IsZero() bool {
	return !s.all && s.index == 0
}

// Expand resolves the selector to relay numbers in ascending order. An
// "all" selector covers relays 1 through count.
func (s Selector) Expand(count int) ([]int, error) {
	if s.IsZero() {
		return nil, fmt.Errorf("%w: no relay selected", ErrInvalidSelector)
	}
	if !s.all {
		if err := Validate(s.index); err != nil {
			return nil, err
		}
		return []int{s.index}, nil
	}

	if err := ValidateCount(count); err != nil {
		return nil, err
	}
	return lo.RangeFrom(MinRelay, count), nil
}

// Matches reports whether a relay reported by the device is covered by the
// selector. An "all" selector matches whatever the device reports.
func (s Selector) Matches(n int) bool {
	return s.all || s.index == n
}

func (s Selector) String() string {
	if s.all {
		return AllKeyword
	}
	return strconv.Itoa(s.index)
}
