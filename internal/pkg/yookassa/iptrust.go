package yookassa

import "net/netip"

// Published YooKassa webhook source ranges. Requests from anywhere else are
// rejected before anything touches the queue.
var trustedRanges = []string{
	"185.71.76.0/27",
	"185.71.77.0/27",
	"77.75.153.0/25",
	"77.75.156.11/32",
	"77.75.156.35/32",
	"77.75.154.128/25",
	"2a02:5180::/32",
}

var trustedPrefixes []netip.Prefix

func init() {
	trustedPrefixes = make([]netip.Prefix, 0, len(trustedRanges))
	for _, r := range trustedRanges {
		trustedPrefixes = append(trustedPrefixes, netip.MustParsePrefix(r))
	}
}

// IsTrustedIP reports whether addr belongs to a YooKassa webhook range.
// Unparseable addresses are untrusted.
func IsTrustedIP(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, p := range trustedPrefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
