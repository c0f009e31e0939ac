package coordinator

import (
	"strings"
	"unicode/utf8"

	"github.com/valueadders/papito/internal/platform"
)

// contentLimits is the maximum content length per destination, in runes.
var contentLimits = map[platform.Destination]int{
	platform.DestX:       280,
	platform.DestYouTube: 500,
	platform.DestDiscord: 2000,
	platform.DestRelay:   2000,
}

// adaptContent fits content to a destination. Adaptation is pure: same
// input, same output. Unknown destinations pass content through as-is.
func adaptContent(dest platform.Destination, content string) string {
	limit, ok := contentLimits[dest]
	if !ok || utf8.RuneCountInString(content) <= limit {
		return content
	}

	runes := []rune(content)
	cut := limit - 3
	// Back up to a word boundary when one is close enough.
	trimmed := strings.TrimRight(string(runes[:cut]), " ")
	if idx := strings.LastIndex(trimmed, " "); idx > cut-20 && idx > 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed + "..."
}
