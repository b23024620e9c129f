// Package netif resolves the numeric address a local network interface carries
// for a given address family, so callers can hand out LAN-reachable URLs.
package netif

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// Family selects which address family to resolve.
type Family int

const (
	// IPv4 selects AF_INET addresses.
	IPv4 Family = iota
	// IPv6 selects AF_INET6 addresses.
	IPv6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// ErrNoAddress reports that no interface matched the requested name and family.
// It is the expected outcome when the device is not on that network.
var ErrNoAddress = errors.New("netif: no matching interface address")

// EnumerationError reports that listing the host's interfaces failed.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return "netif: enumerate interfaces: " + e.Err.Error()
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// Interface is a snapshot of one local interface and its assigned addresses.
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// Lister enumerates the host's interfaces.
type Lister func() ([]Interface, error)

// SystemInterfaces lists the interfaces known to the operating system.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(ifaces))
	for _, ifc := range ifaces {
		addrs, err := ifc.Addrs()
		if err != nil {
			return nil, fmt.Errorf("addresses of %s: %w", ifc.Name, err)
		}
		out = append(out, Interface{Name: ifc.Name, Flags: ifc.Flags, Addrs: addrs})
	}
	return out, nil
}

// Resolver looks up interface addresses. The zero value queries the OS.
type Resolver struct {
	List Lister
}

// NewResolver returns a Resolver backed by list, or by the OS when list is nil.
func NewResolver(list Lister) *Resolver {
	return &Resolver{List: list}
}

// Resolve returns the numeric address assigned to the interface called name for
// the given family. An empty name picks the first interface that is up, is not a
// loopback and carries an address of that family.
//
// When nothing matches the error is ErrNoAddress; when enumeration itself fails
// it is an *EnumerationError.
func (r *Resolver) Resolve(name string, family Family) (string, error) {
	list := r.List
	if list == nil {
		list = SystemInterfaces
	}

	ifaces, err := list()
	if err != nil {
		return "", &EnumerationError{Err: err}
	}

	for _, ifc := range ifaces {
		if !matchesName(ifc, name) {
			continue
		}
		for _, a := range ifc.Addrs {
			addr, ok := numericAddr(a)
			if !ok || !matchesFamily(addr, family) {
				continue
			}
			if addr.Is6() && (addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()) {
				addr = addr.WithZone(ifc.Name)
			}
			return addr.String(), nil
		}
	}

	if name == "" {
		return "", fmt.Errorf("%w (%s, any interface)", ErrNoAddress, family)
	}
	return "", fmt.Errorf("%w (%s on %s)", ErrNoAddress, family, name)
}

func matchesName(ifc Interface, name string) bool {
	if name != "" {
		return ifc.Name == name
	}
	return ifc.Flags&net.FlagUp != 0 && ifc.Flags&net.FlagLoopback == 0
}

func matchesFamily(addr netip.Addr, family Family) bool {
	switch family {
	case IPv4:
		return addr.Is4()
	case IPv6:
		return addr.Is6()
	default:
		return false
	}
}

func numericAddr(a net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}

	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
