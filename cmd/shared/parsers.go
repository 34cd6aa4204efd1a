package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"dominicbreuker/tlsduplex/pkg/config"
)

// host is empty, "*", a name or IPv4 address, or a bracketed IPv6 address
var transportRe = regexp.MustCompile(`^([a-z]+)://(\[[0-9A-Fa-f:.]+\]|[^:\[\]/]*):(\d{1,5})$`)

var protocols = map[string]config.Protocol{
	"tcp": config.ProtoTCP,
	"ws":  config.ProtoWS,
	"wss": config.ProtoWSS,
	"udp": config.ProtoUDP,
}

// ParseTransport parses "protocol://host:port" where protocol is one of tcp,
// ws, wss or udp. An empty host or "*" means all interfaces. IPv6 hosts must
// be bracketed and are returned without brackets.
func ParseTransport(s string) (config.Protocol, string, int, error) {
	m := transportRe.FindStringSubmatch(s)
	if m == nil {
		return 0, "", 0, parsingError(s)
	}

	proto, ok := protocols[m[1]]
	if !ok {
		return 0, "", 0, parsingError(s)
	}

	port, err := strconv.Atoi(m[3])
	if err != nil || port < 1 || port > 65535 {
		return 0, "", 0, parsingError(s)
	}

	host := strings.TrimSuffix(strings.TrimPrefix(m[2], "["), "]")
	if host == "*" {
		host = ""
	}

	return proto, host, port, nil
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: format should be 'protocol://host:port', where protocol = tcp|ws|wss|udp", s)
}
