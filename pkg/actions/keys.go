package actions

import (
	"fmt"
	"strings"
)

// AndroidKey is an Android KeyEvent keycode.
type AndroidKey int

// Keycodes from android.view.KeyEvent.
const (
	KeyHome       AndroidKey = 3
	KeyBack       AndroidKey = 4
	KeyDpadUp     AndroidKey = 19
	KeyDpadDown   AndroidKey = 20
	KeyDpadLeft   AndroidKey = 21
	KeyDpadRight  AndroidKey = 22
	KeyVolumeUp   AndroidKey = 24
	KeyVolumeDown AndroidKey = 25
	KeyPower      AndroidKey = 26
	KeyTab        AndroidKey = 61
	KeySpace      AndroidKey = 62
	KeyEnter      AndroidKey = 66
	KeyDel        AndroidKey = 67
	KeyMenu       AndroidKey = 82
	KeySearch     AndroidKey = 84
	KeyEscape     AndroidKey = 111
	KeyAppSwitch  AndroidKey = 187
)

var keyNames = map[string]AndroidKey{
	"HOME":        KeyHome,
	"BACK":        KeyBack,
	"DPAD_UP":     KeyDpadUp,
	"DPAD_DOWN":   KeyDpadDown,
	"DPAD_LEFT":   KeyDpadLeft,
	"DPAD_RIGHT":  KeyDpadRight,
	"VOLUME_UP":   KeyVolumeUp,
	"VOLUME_DOWN": KeyVolumeDown,
	"POWER":       KeyPower,
	"TAB":         KeyTab,
	"SPACE":       KeySpace,
	"ENTER":       KeyEnter,
	"DEL":         KeyDel,
	"MENU":        KeyMenu,
	"SEARCH":      KeySearch,
	"ESCAPE":      KeyEscape,
	"APP_SWITCH":  KeyAppSwitch,
}

// ParseKey looks up a key by name ("ENTER", "back", "KEYCODE_HOME").
func ParseKey(name string) (AndroidKey, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "KEYCODE_")
	if k, ok := keyNames[n]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown android key %q", name)
}

func (k AndroidKey) String() string {
	for name, code := range keyNames {
		if code == k {
			return name
		}
	}
	return fmt.Sprintf("KEYCODE_%d", int(k))
}
