package discovery

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandRange_Slash24(t *testing.T) {
	hosts, err := ExpandRange("192.168.1.0/24")
	if err != nil {
		t.Fatalf("ExpandRange() error = %v", err)
	}
	if len(hosts) != 254 {
		t.Fatalf("len(hosts) = %d, want 254", len(hosts))
	}
	if hosts[0] != "192.168.1.1" {
		t.Errorf("hosts[0] = %q, want 192.168.1.1", hosts[0])
	}
	if hosts[253] != "192.168.1.254" {
		t.Errorf("hosts[253] = %q, want 192.168.1.254", hosts[253])
	}
}

func TestExpandRange_LongPrefixesStayInsideSlash24(t *testing.T) {
	for _, cidr := range []string{"10.0.5.0/24", "10.0.5.128/25", "10.0.5.64/30", "10.0.5.7/32"} {
		t.Run(cidr, func(t *testing.T) {
			hosts, err := ExpandRange(cidr)
			if err != nil {
				t.Fatalf("ExpandRange(%q) error = %v", cidr, err)
			}
			if len(hosts) < 1 || len(hosts) > 254 {
				t.Fatalf("len(hosts) = %d, want 1..254", len(hosts))
			}
			for _, h := range hosts {
				if !strings.HasPrefix(h, "10.0.5.") {
					t.Fatalf("host %q outside 10.0.5.0/24", h)
				}
				if h == "10.0.5.0" || h == "10.0.5.255" {
					t.Fatalf("host %q is a base or broadcast address", h)
				}
			}
			if IsTruncated(cidr) {
				t.Errorf("IsTruncated(%q) = true, want false", cidr)
			}
		})
	}
}

func TestExpandRange_ShortPrefixIsFinalOctetSweep(t *testing.T) {
	hosts, err := ExpandRange("172.16.4.0/16")
	if err != nil {
		t.Fatalf("ExpandRange() error = %v", err)
	}
	if len(hosts) != 254 {
		t.Fatalf("len(hosts) = %d, want 254", len(hosts))
	}
	if hosts[0] != "172.16.4.1" {
		t.Errorf("hosts[0] = %q, want 172.16.4.1", hosts[0])
	}
	if !IsTruncated("172.16.4.0/16") {
		t.Error("IsTruncated(/16) = false, want true")
	}
}

func TestExpandRange_Malformed(t *testing.T) {
	tests := []string{
		"not-an-ip",
		"192.168.1.0/33",
		"192.168.1.0",
		"256.1.1.0/24",
		"192.168.1/24",
		"",
		"192.168.1.0/-1",
	}
	for _, cidr := range tests {
		t.Run(cidr, func(t *testing.T) {
			hosts, err := ExpandRange(cidr)
			if err == nil {
				t.Fatalf("ExpandRange(%q) = %v, want error", cidr, hosts)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error = %T, want *ValidationError", err)
			}
			if hosts != nil {
				t.Errorf("hosts = %v, want nil", hosts)
			}
		})
	}
}

func TestValidateCIDR_PrefixBounds(t *testing.T) {
	for _, cidr := range []string{"0.0.0.0/0", "192.168.1.1/32"} {
		if err := ValidateCIDR(cidr); err != nil {
			t.Errorf("ValidateCIDR(%q) error = %v", cidr, err)
		}
	}
}

func TestSubnetBase(t *testing.T) {
	tests := []struct {
		host string
		want string
		ok   bool
	}{
		{"192.168.1.20", "192.168.1", true},
		{"10.0.0.1", "10.0.0", true},
		{"router.local", "", false},
		{"192.168.1.300", "", false},
	}
	for _, tt := range tests {
		got, ok := subnetBase(tt.host)
		if got != tt.want || ok != tt.ok {
			t.Errorf("subnetBase(%q) = (%q, %v), want (%q, %v)", tt.host, got, ok, tt.want, tt.ok)
		}
	}
}
