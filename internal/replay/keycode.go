package replay

// evdevByCode maps a ShareFlow wire KeyPress.Code to a Linux evdev
// keycode. Code is ASCII-shaped per spec §4.5's standardized coverage
// list; the numeric values happen to coincide with the same range of
// Windows virtual-key codes the teacher's vk_evdev.go table covers, so
// evdev targets are adapted straight from that table rather than
// re-derived.
//
// Unknown codes resolve to 0 and are silently ignored by replay
// (spec §4.5, §8).
var evdevByCode = map[uint32]int{
	// Control / whitespace
	8:  14, // Backspace -> KEY_BACKSPACE
	9:  15, // Tab -> KEY_TAB
	10: 28, // Return (LF alias) -> KEY_ENTER
	13: 28, // Return (CR) -> KEY_ENTER
	27: 1,  // Escape -> KEY_ESC
	32: 57, // Space -> KEY_SPACE

	// Digits 0-9 (ASCII 48-57)
	48: 11, 49: 2, 50: 3, 51: 4, 52: 5,
	53: 6, 54: 7, 55: 8, 56: 9, 57: 10,

	// Uppercase letters A-Z (ASCII 65-90)
	65: 30, 66: 48, 67: 46, 68: 32, 69: 18,
	70: 33, 71: 34, 72: 35, 73: 23, 74: 36,
	75: 37, 76: 38, 77: 50, 78: 49, 79: 24,
	80: 25, 81: 16, 82: 19, 83: 31, 84: 20,
	85: 22, 86: 47, 87: 17, 88: 45, 89: 21,
	90: 44,

	// Lowercase letters a-z (ASCII 97-122): same physical key as
	// uppercase (spec §4.5).
	97: 30, 98: 48, 99: 46, 100: 32, 101: 18,
	102: 33, 103: 34, 104: 35, 105: 23, 106: 36,
	107: 37, 108: 38, 109: 50, 110: 49, 111: 24,
	112: 25, 113: 16, 114: 19, 115: 31, 116: 20,
	117: 22, 118: 47, 119: 17, 120: 45, 121: 21,
	122: 44,

	// Punctuation group (ASCII), adapted from the OEM rows of
	// vk_evdev.go (VK_OEM_* happen to share the same ASCII points).
	44: 51, // ',' -> KEY_COMMA
	46: 52, // '.' -> KEY_DOT
	47: 53, // '/' -> KEY_SLASH
	59: 39, // ';' -> KEY_SEMICOLON
	61: 13, // '=' -> KEY_EQUAL
	45: 12, // '-' -> KEY_MINUS
	96: 41, // '`' -> KEY_GRAVE
	91: 26, // '[' -> KEY_LEFTBRACE
	92: 43, // '\' -> KEY_BACKSLASH
	93: 27, // ']' -> KEY_RIGHTBRACE
	39: 40, // '\'' -> KEY_APOSTROPHE

	// Modifier group, left/right disambiguated (spec §4.5). Values
	// above the printable ASCII range are ShareFlow-specific, chosen
	// not to collide with any ASCII code.
	0x1001: 42,  // ShiftLeft -> KEY_LEFTSHIFT
	0x1002: 54,  // ShiftRight -> KEY_RIGHTSHIFT
	0x1003: 29,  // ControlLeft -> KEY_LEFTCTRL
	0x1004: 97,  // ControlRight -> KEY_RIGHTCTRL
	0x1005: 56,  // AltLeft -> KEY_LEFTALT
	0x1006: 100, // AltRight -> KEY_RIGHTALT
	0x1007: 125, // MetaLeft -> KEY_LEFTMETA
	0x1008: 126, // MetaRight -> KEY_RIGHTMETA
}

// EvdevForCode resolves a wire KeyPress.Code to an evdev keycode.
// Returns 0, false for unmapped codes.
func EvdevForCode(code uint32) (int, bool) {
	v, ok := evdevByCode[code]
	return v, ok
}
