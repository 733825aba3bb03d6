package angel

import (
	"fmt"
	"strings"
)

// Mode is the feature mode a role requires before it may be dispatched.
type Mode string

const (
	ModeStewardship Mode = "stewardship"
	ModeBuilder     Mode = "builder"
	ModeAny         Mode = "any"
)

// ParseMode parses a mode name; the empty string means ModeAny.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAny, nil
	case ModeStewardship, ModeBuilder, ModeAny:
		return m, nil
	default:
		return "", fmt.Errorf("unknown angel mode %q", s)
	}
}

// Modes lists the feature modes enabled for a process.
type Modes struct {
	Stewardship bool `yaml:"stewardship"`
	Builder     bool `yaml:"builder"`
}

// Allows reports whether a role requiring m may run.
func (ms Modes) Allows(m Mode) bool {
	switch m {
	case ModeStewardship:
		return ms.Stewardship
	case ModeBuilder:
		return ms.Builder
	default:
		return true
	}
}

// modeRefusal is returned when a role's mode gate is closed.
func modeRefusal(role string, m Mode) string {
	return fmt.Sprintf("⛔ MODE GATE: %s requires %s mode, which is not enabled. Enable %s mode to dispatch this angel.", role, m, m)
}
