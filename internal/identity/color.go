// Package identity derives display attributes (palette color, display name)
// from a stable identity id.
package identity

import (
	"strings"
	"unicode/utf16"

	"github.com/samber/lo"
)

// Palette is the closed set of colors a participant may be shown in.
var Palette = []string{
	"#ef4444", "#f59e0b", "#10b981", "#3b82f6",
	"#8b5cf6", "#ec4899", "#06b6d4", "#84cc16",
}

// GenerateColor maps an identity id onto the palette. The hash is the same
// 32-bit string hash every client uses, so all participants agree on a
// color without coordinating.
func GenerateColor(id string) string {
	var h int64
	for _, unit := range utf16.Encode([]rune(id)) {
		shifted := int64(int32(uint32(h) << 5))
		h = int64(unit) + shifted - h
	}
	if h < 0 {
		h = -h
	}
	return Palette[h%int64(len(Palette))]
}

// IsPaletteColor reports whether c is one of the palette entries.
func IsPaletteColor(c string) bool {
	return lo.Contains(Palette, c)
}

// ResolveColor returns preferred when it is a palette color and the derived
// color for id otherwise.
func ResolveColor(id, preferred string) string {
	if IsPaletteColor(preferred) {
		return preferred
	}
	return GenerateColor(id)
}

// DisplayName merges the name asserted by the identity provider with the one
// chosen locally. The authenticated name wins; an empty result means anonymous.
func DisplayName(authenticated, local string) string {
	if name := strings.TrimSpace(authenticated); name != "" {
		return name
	}
	return strings.TrimSpace(local)
}
