package capture

// keyInfo pairs the wire KeyPress.Code ShareFlow standardizes on
// (spec §4.5) with the human-readable name forwarded to the control
// bus (spec §4.4: "both a symbolic name and a numeric virtual-key
// code"). Evdev reports key identity, not shift state, so letters
// always resolve to their canonical uppercase code; a separate
// KeyPress for the Shift modifier itself carries case information to
// a listener that cares.
//
// Keyed by Linux evdev keycode (as read from /dev/input/eventN);
// adapted from helixml-helix/api/pkg/desktop/keyboard.go's
// keyCodeNames and vk_evdev.go's OEM/modifier rows.
var keyInfoByEvdev = map[int]keyInfo{
	1:  {27, "Escape"},
	14: {8, "Backspace"},
	15: {9, "Tab"},
	28: {13, "Enter"},
	57: {32, "Space"},

	2: {49, "1"}, 3: {50, "2"}, 4: {51, "3"}, 5: {52, "4"}, 6: {53, "5"},
	7: {54, "6"}, 8: {55, "7"}, 9: {56, "8"}, 10: {57, "9"}, 11: {48, "0"},

	16: {81, "Q"}, 17: {87, "W"}, 18: {69, "E"}, 19: {82, "R"}, 20: {84, "T"},
	21: {89, "Y"}, 22: {85, "U"}, 23: {73, "I"}, 24: {79, "O"}, 25: {80, "P"},
	30: {65, "A"}, 31: {83, "S"}, 32: {68, "D"}, 33: {70, "F"}, 34: {71, "G"},
	35: {72, "H"}, 36: {74, "J"}, 37: {75, "K"}, 38: {76, "L"},
	44: {90, "Z"}, 45: {88, "X"}, 46: {67, "C"}, 47: {86, "V"}, 48: {66, "B"},
	49: {78, "N"}, 50: {77, "M"},

	51: {44, ","}, 52: {46, "."}, 53: {47, "/"},
	39: {59, ";"}, 40: {39, "'"}, 41: {96, "`"},
	26: {91, "["}, 27: {93, "]"}, 43: {92, "\\"},
	12: {45, "-"}, 13: {61, "="},

	42:  {0x1001, "ShiftLeft"},
	54:  {0x1002, "ShiftRight"},
	29:  {0x1003, "ControlLeft"},
	97:  {0x1004, "ControlRight"},
	56:  {0x1005, "AltLeft"},
	100: {0x1006, "AltRight"},
	125: {0x1007, "MetaLeft"},
	126: {0x1008, "MetaRight"},
}

type keyInfo struct {
	wireCode uint32
	name     string
}

// infoForEvdev resolves a raw evdev keycode to ShareFlow's wire code
// and symbolic name. Unmapped keys still get a best-effort name so
// they are visible on the control bus, but a zero wireCode so they are
// never forwarded on the wire (spec §4.4, §4.5: unknown codes are
// ignorable).
func infoForEvdev(code int) (wireCode uint32, name string) {
	if ki, ok := keyInfoByEvdev[code]; ok {
		return ki.wireCode, ki.name
	}
	return 0, "Unknown"
}

// Control/Alt evdev keycodes used to recognize the escape hatch
// combination independent of left/right (spec §4.4).
const (
	evdevLeftCtrl  = 29
	evdevRightCtrl = 97
	evdevLeftAlt   = 56
	evdevRightAlt  = 100
	evdevQ         = 16
)
