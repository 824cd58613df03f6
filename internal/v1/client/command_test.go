package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Action
	}{
		{"help", "/help", Help{}},
		{"quit", "/quit", Quit{}},
		{"disconnect", "/disconnect", Disconnect{}},
		{"name", "/name jon", SetName{Name: "jon"}},
		{"changename", "/changename jonas", ChangeName{Name: "jonas"}},
		{"connect", "/connect 127.0.0.1:6667", Connect{Addr: "127.0.0.1:6667"}},
		{"join", "/join main", Join{Room: "main"}},
		{"leave", "/leave main", Leave{Room: "main"}},
		{"create", "/create lobby", Create{Room: "lobby"}},
		{"list", "/list users", List{Option: "users"}},
		{"sendto single word", "/sendto main hi", SendTo{Room: "main", Message: "hi"}},
		{"sendto joins words", "/sendto main hello there friends", SendTo{Room: "main", Message: "hello there friends"}},
		{"privmsg joins words", "/privmsg jon see you at noon", PrivMsg{User: "jon", Message: "see you at noon"}},
		{"leading whitespace", "   /join main", Join{Room: "main"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseCommand(tc.line)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCommandRejects(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"hello there",
		"/unknown",
		"/name",
		"/connect",
		"/join",
		"/list",
		"/sendto main",
		"/privmsg jon",
	} {
		t.Run(line, func(t *testing.T) {
			action, ok := ParseCommand(line)
			assert.False(t, ok)
			assert.Nil(t, action)
		})
	}
}
