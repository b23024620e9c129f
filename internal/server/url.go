package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/Tyrowin/lanpreview/internal/netif"
)

// Mode selects which host a URL targets.
type Mode int

const (
	// Loopback addresses the local machine only.
	Loopback Mode = iota
	// LAN addresses the primary LAN interface so other devices can connect.
	LAN
)

func (m Mode) String() string {
	switch m {
	case Loopback:
		return "loopback"
	case LAN:
		return "lan"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "loopback" (or "localhost") and "lan" (or "wifi").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "loopback", "localhost", "local":
		return Loopback, nil
	case "lan", "wifi":
		return LAN, nil
	default:
		return Loopback, fmt.Errorf("unknown mode %q", s)
	}
}

const loopbackHost = "127.0.0.1"

// AddressResolver resolves the numeric address of a named interface.
type AddressResolver interface {
	Resolve(name string, family netif.Family) (string, error)
}

// URLBuilder composes scheme://host:port strings for loopback and LAN access.
// LAN addresses are resolved again on every call so URLs follow network changes.
type URLBuilder struct {
	resolver      AddressResolver
	interfaceName string
}

// NewURLBuilder returns a builder resolving LAN hosts on interfaceName.
// A nil resolver queries the operating system.
func NewURLBuilder(resolver AddressResolver, interfaceName string) *URLBuilder {
	if resolver == nil {
		resolver = netif.NewResolver(nil)
	}
	return &URLBuilder{resolver: resolver, interfaceName: interfaceName}
}

// Build returns scheme://host:port. The scheme is passed through verbatim.
// In LAN mode a failed resolution is reported as ErrLANUnavailable wrapping the
// resolver's error.
func (b *URLBuilder) Build(scheme string, mode Mode, port uint16) (string, error) {
	host, err := b.host(mode)
	if err != nil {
		return "", err
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(int(port))), nil
}

// BuildPath is Build with path appended.
func (b *URLBuilder) BuildPath(scheme string, mode Mode, port uint16, path string) (string, error) {
	base, err := b.Build(scheme, mode, port)
	if err != nil {
		return "", err
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path, nil
}

func (b *URLBuilder) host(mode Mode) (string, error) {
	switch mode {
	case Loopback:
		return loopbackHost, nil
	case LAN:
		addr, err := b.resolver.Resolve(b.interfaceName, netif.IPv4)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrLANUnavailable, err)
		}
		return addr, nil
	default:
		return "", fmt.Errorf("unknown mode %s", mode)
	}
}
