// Package ports holds the set of local TCP ports a server is willing to
// forward to.
package ports

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"golang.org/x/exp/slices"

	"hop.computer/dossh/common"
)

// AllowList is an immutable set of ports. The zero value allows nothing; use
// NewAllowList or ParseAllowList to build one. It is safe for concurrent use
// because it is never mutated after construction.
type AllowList struct {
	set   map[uint16]struct{}
	ports []uint16
}

// NewAllowList returns an AllowList holding ports. An empty list allows only
// common.DefaultForwardPort.
func NewAllowList(ports ...uint16) *AllowList {
	if len(ports) == 0 {
		ports = []uint16{common.DefaultForwardPort}
	}
	sorted := slices.Clone(ports)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	set := make(map[uint16]struct{}, len(sorted))
	for _, p := range sorted {
		set[p] = struct{}{}
	}
	return &AllowList{set: set, ports: sorted}
}

// ParseAllowList parses specs such as "22", "22,8080" or "8000-8010". Each
// element of specs may itself be a comma separated list.
func ParseAllowList(specs ...string) (*AllowList, error) {
	var out []uint16
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			start, end, err := nat.ParsePortRange(part)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q: %w", part, err)
			}
			if start == 0 {
				return nil, fmt.Errorf("invalid port %q: port 0 cannot be forwarded", part)
			}
			for p := start; p <= end; p++ {
				out = append(out, uint16(p))
			}
		}
	}
	return NewAllowList(out...), nil
}

// Authorize reports whether port may be forwarded.
func (a *AllowList) Authorize(port uint16) bool {
	if a == nil {
		return false
	}
	_, ok := a.set[port]
	return ok
}

// Ports returns the allowed ports in ascending order.
func (a *AllowList) Ports() []uint16 {
	if a == nil {
		return nil
	}
	return slices.Clone(a.ports)
}

// String renders the list as it would be passed to ParseAllowList, without
// collapsing ranges.
func (a *AllowList) String() string {
	parts := make([]string, 0, len(a.Ports()))
	for _, p := range a.Ports() {
		parts = append(parts, strconv.Itoa(int(p)))
	}
	return strings.Join(parts, ",")
}
