package discovery

import (
	"net"
	"strconv"
)

// AdvertiseAddresses returns the addresses a server listening on listen
// should publish. A listener bound to a specific IP publishes just that. A
// wildcard listener publishes every global unicast address of the host.
func AdvertiseAddresses(listen net.Addr) ([]string, error) {
	host, portStr, err := net.SplitHostPort(listen.String())
	if err != nil {
		return nil, err
	}
	if ip := net.ParseIP(host); ip != nil && !ip.IsUnspecified() {
		return []string{listen.String()}, nil
	}
	ifaddrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	return advertise(ifaddrs, portStr), nil
}

func advertise(ifaddrs []net.Addr, port string) []string {
	if _, err := strconv.Atoi(port); err != nil {
		return nil
	}
	var out []string
	for _, a := range ifaddrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || !ipnet.IP.IsGlobalUnicast() {
			continue
		}
		out = append(out, net.JoinHostPort(ipnet.IP.String(), port))
	}
	return out
}
