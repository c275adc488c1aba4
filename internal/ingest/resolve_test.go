package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slacksift/slacksift/internal/slack"
)

func TestResolveUserNamePrecedence(t *testing.T) {
	tests := []struct {
		name string
		user slack.User
		want string
	}{
		{
			name: "display name wins",
			user: slack.User{ID: "U1", Username: "ana.torres", RealName: "Ana Torres", DisplayName: "Ana"},
			want: "Ana",
		},
		{
			name: "real name when display empty",
			user: slack.User{ID: "U1", Username: "ben", RealName: "Ben Okafor"},
			want: "Ben Okafor",
		},
		{
			name: "username when names empty",
			user: slack.User{ID: "U1", Username: "cyd"},
			want: "cyd",
		},
		{
			name: "raw id as last resort",
			user: slack.User{ID: "U1"},
			want: "U1",
		},
		{
			name: "whitespace counts as empty",
			user: slack.User{ID: "U1", Username: "dee", DisplayName: "   "},
			want: "dee",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveUserName(tt.user))
		})
	}
}

func TestConversationDisplayName(t *testing.T) {
	resolve := func(id string) string {
		if id == "U_ANA" {
			return "Ana"
		}
		return id
	}

	dm := slack.Conversation{ID: "D1", IsDirectMessage: true, CounterpartUserID: "U_ANA"}
	assert.Equal(t, "Ana", conversationDisplayName(dm, resolve))

	orphanDM := slack.Conversation{ID: "D2", IsDirectMessage: true}
	assert.Equal(t, "D2", conversationDisplayName(orphanDM, resolve))

	channel := slack.Conversation{ID: "C1", Name: "general"}
	assert.Equal(t, "general", conversationDisplayName(channel, resolve))

	unnamed := slack.Conversation{ID: "C2"}
	assert.Equal(t, "C2", conversationDisplayName(unnamed, resolve))
}

func TestParseTimestamp(t *testing.T) {
	assert.Equal(t, int64(1700000000), parseTimestamp("1700000000.000100"))
	assert.Equal(t, int64(42), parseTimestamp("42"))
	assert.Equal(t, int64(0), parseTimestamp("not-a-ts"))
	assert.Equal(t, int64(0), parseTimestamp(""))
}

func TestCompareExternalIDs(t *testing.T) {
	assert.Equal(t, 0, compareExternalIDs("1700000000.000100", "1700000000.000100"))
	assert.Equal(t, -1, compareExternalIDs("1700000000.000100", "1700000000.000200"))
	assert.Equal(t, 1, compareExternalIDs("1700000001.000000", "1700000000.999999"))
	// Plain string comparison would get this one backwards.
	assert.Equal(t, -1, compareExternalIDs("999.000100", "1000.000100"))
	// Leading zeros and ragged fraction widths still order numerically.
	assert.Equal(t, 0, compareExternalIDs("0042.10", "42.100"))
	assert.Equal(t, -1, compareExternalIDs("42.1", "42.15"))
}

func TestMaxExternalID(t *testing.T) {
	assert.Equal(t, "1000.2", maxExternalID("", "1000.2"))
	assert.Equal(t, "1000.2", maxExternalID("1000.2", ""))
	assert.Equal(t, "1000.2", maxExternalID("999.9", "1000.2"))
	assert.Equal(t, "1000.2", maxExternalID("1000.2", "999.9"))
}
