package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

// Binding ties a key chord to a capture mode.
type Binding struct {
	Mode  types.Mode
	Chord string
	Keys  []string
}

// keymapFile is the YAML layout:
//
//	capture:
//	  visible: ctrl+shift+1
//	  full-page: ctrl+shift+2
//	  region: ctrl+shift+3
type keymapFile struct {
	Capture map[string]string `yaml:"capture"`
}

// DefaultChords are used for modes the key map file does not mention.
var DefaultChords = map[types.Mode]string{
	types.ModeVisible:  "ctrl+shift+1",
	types.ModeFullPage: "ctrl+shift+2",
	types.ModeRegion:   "ctrl+shift+3",
}

// LoadKeymap reads the key map at path. A missing file yields the defaults.
func LoadKeymap(path string) ([]Binding, error) {
	chords := make(map[types.Mode]string, len(DefaultChords))
	for m, c := range DefaultChords {
		chords[m] = c
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("keymap config: %w", err)
	default:
		var file keymapFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("keymap config: %w", err)
		}
		for name, chord := range file.Capture {
			mode, err := types.ParseMode(name)
			if err != nil {
				return nil, fmt.Errorf("keymap config: %w", err)
			}
			chords[mode] = chord
		}
	}

	bindings := make([]Binding, 0, len(types.Modes))
	seen := make(map[string]types.Mode, len(types.Modes))
	for _, mode := range types.Modes {
		keys, err := ParseChord(chords[mode])
		if err != nil {
			return nil, fmt.Errorf("keymap config: %s: %w", mode, err)
		}
		norm := strings.Join(keys, "+")
		if other, dup := seen[norm]; dup {
			return nil, fmt.Errorf("keymap config: %s and %s share chord %q", other, mode, norm)
		}
		seen[norm] = mode
		bindings = append(bindings, Binding{Mode: mode, Chord: norm, Keys: keys})
	}
	return bindings, nil
}

// ParseChord splits "Ctrl+Shift+1" into normalized key names. Modifier
// aliases collapse: win, super and meta become cmd; control becomes ctrl;
// option becomes alt.
func ParseChord(chord string) ([]string, error) {
	parts := strings.Split(strings.ToLower(chord), "+")
	keys := make([]string, 0, len(parts))
	plain := 0
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			return nil, fmt.Errorf("empty key in chord %q", chord)
		case "ctrl", "control":
			keys = append(keys, "ctrl")
		case "alt", "option":
			keys = append(keys, "alt")
		case "shift":
			keys = append(keys, "shift")
		case "win", "cmd", "super", "meta":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
			plain++
		}
	}
	if plain != 1 {
		return nil, fmt.Errorf("chord %q needs exactly one non-modifier key", chord)
	}
	return keys, nil
}
