package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// NeighborTable maps IPv4 addresses to upper-case colon-separated MACs.
type NeighborTable map[string]string

// NeighborSource returns the host's current IP-to-MAC neighbor table.
type NeighborSource interface {
	Neighbors(ctx context.Context) (NeighborTable, error)
}

// SystemNeighbors reads the operating system's ARP cache.
type SystemNeighbors struct{}

// Neighbors reads /proc/net/arp on Linux and falls back to `arp -a` elsewhere.
func (SystemNeighbors) Neighbors(ctx context.Context) (NeighborTable, error) {
	if runtime.GOOS == "linux" {
		data, err := os.ReadFile("/proc/net/arp")
		if err == nil {
			return ParseARPOutput(string(data), "linux"), nil
		}
	}
	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return nil, fmt.Errorf("read arp cache: %w", err)
	}
	return ParseARPOutput(string(out), runtime.GOOS), nil
}

// ParseARPOutput parses ARP cache text in the format produced on platform
// ("linux" /proc/net/arp, "windows" or "darwin" `arp -a`). Incomplete and
// broadcast entries are skipped.
func ParseARPOutput(output, platform string) NeighborTable {
	table := make(NeighborTable)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		var ip, mac string
		switch platform {
		case "linux":
			if len(fields) < 4 || fields[2] == "0x0" {
				continue
			}
			ip, mac = fields[0], fields[3]
		case "windows":
			if len(fields) < 3 {
				continue
			}
			ip, mac = fields[0], fields[1]
		case "darwin", "freebsd", "openbsd", "netbsd":
			// ? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
			if len(fields) < 4 || fields[2] != "at" {
				continue
			}
			ip, mac = strings.Trim(fields[1], "()"), fields[3]
		default:
			return table
		}

		if net.ParseIP(ip).To4() == nil {
			continue
		}
		hw, err := net.ParseMAC(padMAC(strings.ReplaceAll(mac, "-", ":")))
		if err != nil || isZeroOrBroadcast(hw) {
			continue
		}
		table[ip] = strings.ToUpper(hw.String())
	}
	return table
}

// padMAC expands single-digit octets such as "0:1b:63:a:b:c" printed by BSD arp.
func padMAC(mac string) string {
	parts := strings.Split(mac, ":")
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}

func isZeroOrBroadcast(hw net.HardwareAddr) bool {
	zero, bcast := true, true
	for _, b := range hw {
		if b != 0 {
			zero = false
		}
		if b != 0xff {
			bcast = false
		}
	}
	return zero || bcast
}
