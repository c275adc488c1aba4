package ingest

import (
	"strconv"
	"strings"

	"github.com/slacksift/slacksift/internal/slack"
)

// resolveUserName picks the best human-readable name for a user. First
// non-empty wins: display name, real name, username, raw id.
func resolveUserName(u slack.User) string {
	if s := strings.TrimSpace(u.DisplayName); s != "" {
		return s
	}
	if s := strings.TrimSpace(u.RealName); s != "" {
		return s
	}
	if s := strings.TrimSpace(u.Username); s != "" {
		return s
	}
	return u.ID
}

// conversationDisplayName resolves the name shown for a conversation. Direct
// messages take the counterpart's resolved name; everything else keeps its own
// name, falling back to the raw id.
func conversationDisplayName(conv slack.Conversation, resolve func(string) string) string {
	if conv.IsDirectMessage {
		if conv.CounterpartUserID != "" {
			return resolve(conv.CounterpartUserID)
		}
		return conv.ID
	}
	if conv.Name != "" {
		return conv.Name
	}
	return conv.ID
}

// parseTimestamp extracts whole seconds from an external id of the form
// "1700000000.000100". Anything unparsable maps to zero.
func parseTimestamp(externalID string) int64 {
	secs, _, _ := strings.Cut(externalID, ".")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// compareExternalIDs orders external ids numerically: by the integer seconds
// part, then by the fractional part right-padded to equal width. Plain string
// comparison would misorder ids when the seconds part grows a digit.
func compareExternalIDs(a, b string) int {
	aSec, aFrac, _ := strings.Cut(a, ".")
	bSec, bFrac, _ := strings.Cut(b, ".")

	if c := compareNumeric(aSec, bSec); c != 0 {
		return c
	}
	for len(aFrac) < len(bFrac) {
		aFrac += "0"
	}
	for len(bFrac) < len(aFrac) {
		bFrac += "0"
	}
	return strings.Compare(aFrac, bFrac)
}

func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// maxExternalID returns the larger of two external ids, treating the empty
// string as smaller than anything.
func maxExternalID(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if compareExternalIDs(a, b) >= 0 {
		return a
	}
	return b
}
