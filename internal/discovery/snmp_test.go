package discovery

import "testing"

func TestParseARPEntry(t *testing.T) {
	mac := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

	tests := []struct {
		name   string
		oid    string
		value  any
		want   ARPEntry
		wantOK bool
	}{
		{
			name:   "leading dot",
			oid:    ".1.3.6.1.2.1.4.22.1.2.3.192.168.1.100",
			value:  mac,
			want:   ARPEntry{IfIndex: 3, IP: "192.168.1.100", MAC: "00:11:22:33:44:55"},
			wantOK: true,
		},
		{
			name:   "no leading dot",
			oid:    "1.3.6.1.2.1.4.22.1.2.1.10.0.0.1",
			value:  mac,
			want:   ARPEntry{IfIndex: 1, IP: "10.0.0.1", MAC: "00:11:22:33:44:55"},
			wantOK: true,
		},
		{name: "other column", oid: ".1.3.6.1.2.1.4.22.1.3.1.10.0.0.1", value: mac},
		{name: "short index", oid: ".1.3.6.1.2.1.4.22.1.2.1.10.0.1", value: mac},
		{name: "string value", oid: ".1.3.6.1.2.1.4.22.1.2.1.10.0.0.1", value: "00:11:22:33:44:55"},
		{name: "zero mac", oid: ".1.3.6.1.2.1.4.22.1.2.1.10.0.0.1", value: make([]byte, 6)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseARPEntry(tt.oid, tt.value)
			if ok != tt.wantOK {
				t.Fatalf("parseARPEntry() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("parseARPEntry() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
