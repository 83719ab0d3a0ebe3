package probe

import (
	"bytes"
	"strings"
)

// BannerPlaceholder replaces every non-printable banner byte.
const BannerPlaceholder = '.'

// asciiSpace is trimmed from both ends of a banner. Unicode spaces such as
// U+00A0 are not whitespace here; their bytes become BannerPlaceholder.
const asciiSpace = " \t\r\n\v\f"

// SanitizeBanner turns raw banner bytes into printable ASCII. Surrounding
// ASCII whitespace is trimmed, then each byte outside 0x20..0x7e becomes
// BannerPlaceholder. It returns nil when nothing printable remains.
func SanitizeBanner(raw []byte) *string {
	raw = bytes.Trim(raw, asciiSpace)

	var b strings.Builder
	b.Grow(len(raw))
	printable := false
	for _, c := range raw {
		if isPrintable(c) {
			b.WriteByte(c)
			if c != ' ' {
				printable = true
			}
			continue
		}
		b.WriteByte(BannerPlaceholder)
	}
	if !printable {
		return nil
	}

	banner := b.String()
	return &banner
}

func isPrintable(c byte) bool {
	return c >= 0x20 && c < 0x7f
}
