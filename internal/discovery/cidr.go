package discovery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var cidrPattern = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})/(\d{1,2})$`)

// parsedCIDR is an IPv4 CIDR split into octets and prefix length.
type parsedCIDR struct {
	octets [4]int
	prefix int
}

func parseCIDR(cidr string) (parsedCIDR, error) {
	var p parsedCIDR
	m := cidrPattern.FindStringSubmatch(strings.TrimSpace(cidr))
	if m == nil {
		return p, &ValidationError{Field: "ipRanges", Reason: fmt.Sprintf("invalid CIDR %q, expected format A.B.C.D/N", cidr)}
	}
	for i := 0; i < 4; i++ {
		n, _ := strconv.Atoi(m[i+1])
		if n > 255 {
			return p, &ValidationError{Field: "ipRanges", Reason: fmt.Sprintf("invalid CIDR %q: octet %d out of range", cidr, n)}
		}
		p.octets[i] = n
	}
	p.prefix, _ = strconv.Atoi(m[5])
	if p.prefix > 32 {
		return p, &ValidationError{Field: "ipRanges", Reason: fmt.Sprintf("invalid CIDR %q: prefix must be between 0 and 32", cidr)}
	}
	return p, nil
}

// ValidateCIDR checks that cidr has the form A.B.C.D/N with N in [0,32].
func ValidateCIDR(cidr string) error {
	_, err := parseCIDR(cidr)
	return err
}

// ExpandRange returns the candidate host addresses for cidr: hosts .1
// through .254 sharing the first three octets of the input. Prefixes
// shorter than 24 get the same single final-octet sweep; see IsTruncated.
func ExpandRange(cidr string) ([]string, error) {
	p, err := parseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%d.%d.%d.", p.octets[0], p.octets[1], p.octets[2])
	hosts := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		hosts = append(hosts, base+strconv.Itoa(i))
	}
	return hosts, nil
}

// IsTruncated reports whether ExpandRange covers less than the full
// network named by cidr, which is the case for prefixes shorter than 24.
func IsTruncated(cidr string) bool {
	p, err := parseCIDR(cidr)
	if err != nil {
		return false
	}
	return p.prefix < 24
}

// subnetBase returns the first three octets of an IPv4 host, e.g.
// "192.168.1" for "192.168.1.20".
func subnetBase(host string) (string, bool) {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return "", false
	}
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return "", false
		}
	}
	return strings.Join(parts[:3], "."), true
}
