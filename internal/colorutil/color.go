package colorutil

import (
	"strconv"
	"strings"
)

// HexToRBGColor parses colors in the form #rrggbb or #rgb. Invalid input
// yields black.
func HexToRBGColor(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(hex, "#")

	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}

	if len(hex) != 6 {
		return 0, 0, 0
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}

	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

// UseLightTextOnBackground reports whether white text is more readable
// than black text on the given background.
func UseLightTextOnBackground(r, g, b int) bool {
	luminance := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 255

	return luminance < 0.5
}

// Foreground returns "white" or "black" for text on background hex.
func Foreground(hex string) string {
	if UseLightTextOnBackground(HexToRBGColor(hex)) {
		return "white"
	}

	return "black"
}
