package scanner

import "strings"

// Signal is a non-character key event relevant to scan buffering.
type Signal int

const (
	SignalNone Signal = iota
	// SignalEnter terminates the current scan burst.
	SignalEnter
	// SignalBackspace removes the last buffered character.
	SignalBackspace
)

// shifted maps punctuation key codes to their shifted character.
var shifted = map[string]rune{
	"Digit1": '!', "Digit2": '@', "Digit3": '#', "Digit4": '$',
	"Digit5": '%', "Digit6": '^', "Digit7": '&', "Digit8": '*',
	"Digit9": '(', "Digit0": ')',
	"Minus": '_', "Equal": '+', "Semicolon": ':', "Quote": '"',
	"Comma": '<', "Period": '>', "Slash": '?', "Backquote": '~',
	"BracketLeft": '{', "BracketRight": '}', "Backslash": '|',
}

// plain maps punctuation key codes to their unshifted character.
var plain = map[string]rune{
	"Minus": '-', "Equal": '=', "Semicolon": ';', "Quote": '\'',
	"Comma": ',', "Period": '.', "Slash": '/', "Backquote": '`',
	"BracketLeft": '[', "BracketRight": ']', "Backslash": '\\',
	"Space": ' ',
	"NumpadAdd": '+', "NumpadSubtract": '-', "NumpadMultiply": '*',
	"NumpadDivide": '/', "NumpadDecimal": '.',
}

// LatinKey maps a physical key code (KeyboardEvent.code) to the Latin
// character the scanner hardware meant to emit, ignoring the OS keyboard
// layout entirely. Scanners send Latin key codes even when the active
// layout is Arabic; translating by code instead of by produced character
// keeps scans uncorrupted.
//
// Returns the character and SignalNone, or 0 and a sentinel signal for
// Enter/Backspace. ok is false for keys that play no part in a scan
// (modifiers, arrows, function keys).
func LatinKey(code string, shift bool) (r rune, sig Signal, ok bool) {
	switch code {
	case "Enter", "NumpadEnter":
		return 0, SignalEnter, true
	case "Backspace":
		return 0, SignalBackspace, true
	}

	if strings.HasPrefix(code, "Key") && len(code) == 4 {
		c := rune(code[3]) // 'A'..'Z'
		if c < 'A' || c > 'Z' {
			return 0, SignalNone, false
		}
		if !shift {
			c += 'a' - 'A'
		}
		return c, SignalNone, true
	}

	if strings.HasPrefix(code, "Digit") && len(code) == 6 {
		if shift {
			if s, found := shifted[code]; found {
				return s, SignalNone, true
			}
		}
		c := rune(code[5])
		if c < '0' || c > '9' {
			return 0, SignalNone, false
		}
		return c, SignalNone, true
	}

	if strings.HasPrefix(code, "Numpad") && len(code) == 7 {
		c := rune(code[6])
		if c >= '0' && c <= '9' {
			return c, SignalNone, true
		}
	}

	if shift {
		if s, found := shifted[code]; found {
			return s, SignalNone, true
		}
	}
	if p, found := plain[code]; found {
		return p, SignalNone, true
	}
	return 0, SignalNone, false
}
