// Package dialogue renders the lines dossh prints for people rather than for
// logs.
package dialogue

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hop.computer/dossh/keys"
)

// These colors are from the gruvbox vim theme
// https://github.com/morhetz/gruvbox
var fg = lipgloss.AdaptiveColor{
	Light: "#3c3836",
	Dark:  "#ebdbb2",
}
var green = lipgloss.Color("#98971a")
var yellow = lipgloss.Color("#d79921")
var purple = lipgloss.Color("#b16286")

var baseStyle = lipgloss.NewStyle().
	Foreground(fg)

var labelStyle = baseStyle.
	Bold(true)

var idStyle = baseStyle.
	Foreground(purple).
	Bold(true)

var portStyle = baseStyle.
	Foreground(green)

var addrStyle = baseStyle.
	Foreground(yellow)

// Banner is the line a server prints at startup so the operator can hand the
// node id to clients.
func Banner(peer keys.PeerID) string {
	return labelStyle.Render("NodeId:") + " " + idStyle.Render(peer.String())
}

// Serving describes the listen address and forwarded ports.
func Serving(addr string, ports []uint16) string {
	ps := make([]string, len(ports))
	for i, p := range ports {
		ps[i] = fmt.Sprint(p)
	}
	return labelStyle.Render("Listening:") + " " + addrStyle.Render(addr) + " " +
		labelStyle.Render("Ports:") + " " + portStyle.Render(strings.Join(ps, ","))
}
