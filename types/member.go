package types

import (
	"math/rand"
	"strings"
	"unicode/utf8"
)

// Member is the live, in-memory participant record of one connection in one
// room. Id is the connection id and changes across reconnects; UserId is the
// stable logical identity (the connection id doubles as a pseudo-identity for
// guests).
type Member struct {
	Id      string `json:"id"`
	UserId  string `json:"userId"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Initial string `json:"initial"`
}

// avatar palette, must stay in sync with the frontend
var memberColors = []string{
	"#4f46e5", "#0891b2", "#7c3aed", "#c026d3", "#db2777", "#e11d48",
	"#ea580c", "#d97706", "#65a30d", "#16a34a", "#059669",
}

func RandomMemberColor() string {
	return memberColors[rand.Intn(len(memberColors))]
}

// MemberInitial returns the uppercased first rune of a display name.
func MemberInitial(name string) string {
	if name == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(name)
	return strings.ToUpper(string(r))
}
