package discovery

import (
	"bufio"
	"bytes"
	_ "embed"
	"strings"
	"sync"
)

//go:embed oui_data.txt
var ouiRawData []byte

// OUITable resolves the vendor-identifying prefix of a MAC address to a
// manufacturer name. The table is parsed on first use.
type OUITable struct {
	once  sync.Once
	table map[string]string
}

// NewOUITable creates a new OUI lookup table.
func NewOUITable() *OUITable {
	return &OUITable{}
}

// Lookup returns the manufacturer for a MAC in any common format
// (AA:BB:CC:DD:EE:FF, AA-BB-CC-DD-EE-FF, AABBCCDDEEFF, aabb.ccdd.eeff), or
// "" when the prefix is unknown.
func (o *OUITable) Lookup(mac string) string {
	o.once.Do(o.load)

	prefix := ouiPrefix(mac)
	if prefix == "" {
		return ""
	}
	return o.table[prefix]
}

func (o *OUITable) load() {
	o.table = make(map[string]string, 64)
	scanner := bufio.NewScanner(bytes.NewReader(ouiRawData))
	for scanner.Scan() {
		prefix, vendor, ok := strings.Cut(scanner.Text(), "\t")
		if !ok {
			continue
		}
		prefix = strings.ToUpper(strings.TrimSpace(prefix))
		vendor = strings.TrimSpace(vendor)
		if prefix != "" && vendor != "" {
			o.table[prefix] = vendor
		}
	}
}

// ouiPrefix returns the first three octets of mac as "AA:BB:CC".
func ouiPrefix(mac string) string {
	mac = strings.ToUpper(mac)
	mac = strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac)
	if len(mac) < 6 {
		return ""
	}
	return mac[0:2] + ":" + mac[2:4] + ":" + mac[4:6]
}
