// Package catalogue holds the immutable property-name table the
// property codec validates against: a leaf module mapping each 4-char
// ACP tag to its logical type and, where applicable, a validator over
// the encoded wire bytes. Modelled on the teacher's registry.Store idea
// of a string-keyed lookup, but built once from a literal table instead
// of being mutable/KV-backed, since the catalogue never changes at
// runtime.
package catalogue

import "fmt"

// TypeTag is one of the logical wire types a property value may have.
type TypeTag string

const (
	TypeStr TypeTag = "str"
	TypeDec TypeTag = "dec"
	TypeHex TypeTag = "hex"
	TypeLog TypeTag = "log"
	TypeMac TypeTag = "mac"
	TypeCfb TypeTag = "cfb"
	TypeBin TypeTag = "bin"
	TypeU8  TypeTag = "u8"
	TypeU16 TypeTag = "u16"
	TypeU32 TypeTag = "u32"
	TypeUi8 TypeTag = "ui8"
	TypeIP4 TypeTag = "ip4"
	TypeIP6 TypeTag = "ip6"
	TypeUID TypeTag = "uid"
	TypeBoo TypeTag = "boo"
	TypeBpl TypeTag = "bpl"
)

// Validator is a pure predicate over a property's encoded wire value.
type Validator interface {
	Valid(encoded []byte) bool
}

// Range accepts big-endian unsigned integers, of whatever byte length
// the encoded value has, within [Lo, Hi] inclusive.
type Range struct {
	Lo, Hi int64
}

func (r Range) Valid(encoded []byte) bool {
	v := decodeBigEndian(encoded)
	return v >= r.Lo && v <= r.Hi
}

// OneOf accepts big-endian unsigned integers present in Values.
type OneOf struct {
	Values []int64
}

func (o OneOf) Valid(encoded []byte) bool {
	v := decodeBigEndian(encoded)
	for _, want := range o.Values {
		if v == want {
			return true
		}
	}
	return false
}

// Func wraps an arbitrary predicate over the raw encoded bytes.
type Func struct {
	Predicate func([]byte) bool
}

func (f Func) Valid(encoded []byte) bool { return f.Predicate(encoded) }

func decodeBigEndian(b []byte) int64 {
	var v int64
	for _, by := range b {
		v = v<<8 | int64(by)
	}
	return v
}

// Entry describes one catalogue tag.
type Entry struct {
	Type        TypeTag
	Description string
	Validator   Validator
}

// table is populated once at init from the literal list below. raPo has
// two historical definitions in the reference catalogue (one str, one
// commented out); per the resolved open question the later str
// "Transmit Power" definition is the only one modelled here.
var table = buildTable()

type rawEntry struct {
	tag string
	e   Entry
}

func buildTable() map[string]Entry {
	entries := []rawEntry{
		{"syNm", Entry{Type: TypeStr, Description: "System Name"}},
		{"syPW", Entry{Type: TypeStr, Description: "System Password"}},
		{"syAP", Entry{Type: TypeStr, Description: "Access Point Mode"}},
		{"sySN", Entry{Type: TypeStr, Description: "Serial Number"}},
		{"raMA", Entry{Type: TypeMac, Description: "Radio MAC Address"}},
		{"waIP", Entry{Type: TypeIP4, Description: "WAN IP Address"}},
		{"waSM", Entry{Type: TypeIP4, Description: "WAN Subnet Mask"}},
		{"waRA", Entry{Type: TypeIP4, Description: "WAN Router Address"}},
		{"waMA", Entry{Type: TypeMac, Description: "WAN MAC Address"}},
		{"waDN", Entry{Type: TypeStr, Description: "WAN Domain Name"}},
		{"waDC", Entry{Type: TypeStr, Description: "WAN DNS Configuration"}},
		{"laIP", Entry{Type: TypeIP4, Description: "LAN IP Address"}},
		{"laSM", Entry{Type: TypeIP4, Description: "LAN Subnet Mask"}},
		{"laMA", Entry{Type: TypeMac, Description: "LAN MAC Address"}},
		{"dhBg", Entry{Type: TypeIP4, Description: "DHCP Range Begin"}},
		{"dhEn", Entry{Type: TypeIP4, Description: "DHCP Range End"}},
		{"dhSN", Entry{Type: TypeIP4, Description: "DHCP Subnet"}},
		{"dhLe", Entry{Type: TypeU32, Description: "DHCP Lease Time"}},
		{"DRes", Entry{Type: TypeStr, Description: "DHCP Reservations"}},
		{"dhSL", Entry{Type: TypeStr, Description: "DHCP Static Leases"}},
		{"naFl", Entry{Type: TypeU32, Description: "NAT Flags"}},
		{"nDMZ", Entry{Type: TypeIP4, Description: "NAT DMZ Host"}},
		{"tACL", Entry{Type: TypeBin, Description: "Timed Access Control List"}},
		{"ntSV", Entry{Type: TypeStr, Description: "NTP Server"}},
		{"slvl", Entry{Type: TypeU8, Description: "Syslog Level", Validator: Range{Lo: 0, Hi: 7}}},
		{"logm", Entry{Type: TypeBin, Description: "Log Message Buffer"}},
		{"usrd", Entry{Type: TypeBin, Description: "User Data Blob"}},
		{"uuid", Entry{Type: TypeStr, Description: "Device UUID"}},
		{"syUT", Entry{Type: TypeU32, Description: "System Uptime"}},
		{"feat", Entry{Type: TypeBin, Description: "Feature Bitmap"}},
		{"prop", Entry{Type: TypeBin, Description: "Raw Property Blob"}},
		{"acRB", Entry{Type: TypeU8, Description: "Reboot Trigger", Validator: OneOf{Values: []int64{0, 1}}}},
		{"acRN", Entry{Type: TypeU8, Description: "Restore Factory Defaults", Validator: OneOf{Values: []int64{0, 1}}}},
		{"acRF", Entry{Type: TypeU8, Description: "Firmware Activate", Validator: OneOf{Values: []int64{0, 1}}}},
		{"auHK", Entry{Type: TypeHex, Description: "Auth Handshake Key"}},
		{"auHE", Entry{Type: TypeBoo, Description: "Auth Handshake Enabled"}},
		{"auNP", Entry{Type: TypeU16, Description: "Auth Nonce Period"}},
		{"auRR", Entry{Type: TypeU8, Description: "Auth Retry Remaining", Validator: Range{Lo: 0, Hi: 255}}},
		{"6aut", Entry{Type: TypeBoo, Description: "IPv6 Autoconfig Enabled"}},
		{"6cfg", Entry{Type: TypeU8, Description: "IPv6 Configuration Mode"}},
		{"6Wad", Entry{Type: TypeIP6, Description: "IPv6 WAN Address"}},
		{"6Wgw", Entry{Type: TypeIP6, Description: "IPv6 WAN Gateway"}},
		{"6Lad", Entry{Type: TypeIP6, Description: "IPv6 LAN Address"}},
		{"6Lfx", Entry{Type: TypeU8, Description: "IPv6 LAN Prefix Length", Validator: Range{Lo: 0, Hi: 128}}},
		{"6sfw", Entry{Type: TypeBoo, Description: "IPv6 Stateful Firewall"}},
		{"6trd", Entry{Type: TypeU16, Description: "IPv6 6to4 Relay Distance"}},
		{"6fwl", Entry{Type: TypeBoo, Description: "IPv6 Firewall Enabled"}},
		{"6NS1", Entry{Type: TypeIP6, Description: "IPv6 DNS Server 1"}},
		{"6NS2", Entry{Type: TypeIP6, Description: "IPv6 DNS Server 2"}},
		{"6NS3", Entry{Type: TypeIP6, Description: "IPv6 DNS Server 3"}},
		{"APID", Entry{Type: TypeStr, Description: "Access Point Identifier"}},
		{"LEDc", Entry{Type: TypeU8, Description: "LED Control Mode", Validator: Range{Lo: 0, Hi: 3}}},
		{"leAc", Entry{Type: TypeBoo, Description: "LED Active"}},
		{"isAC", Entry{Type: TypeBoo, Description: "Running on AC Power"}},
		{"GPIs", Entry{Type: TypeBin, Description: "GPIO State"}},
		{"SUEn", Entry{Type: TypeBoo, Description: "Software Update Enabled"}},
		{"SUFq", Entry{Type: TypeU32, Description: "Software Update Check Frequency"}},
		{"wbEn", Entry{Type: TypeBoo, Description: "Web Portal Enabled"}},
		{"wbHN", Entry{Type: TypeStr, Description: "Web Portal Host Name"}},
		{"wbHU", Entry{Type: TypeStr, Description: "Web Portal Host User"}},
		{"wbHP", Entry{Type: TypeStr, Description: "Web Portal Host Password"}},
		{"wbAC", Entry{Type: TypeBoo, Description: "Web Portal Access Control"}},
		{"iCld", Entry{Type: TypeBoo, Description: "iCloud Integration Enabled"}},
		{"iCLH", Entry{Type: TypeStr, Description: "iCloud Account Handle"}},
		{"raPo", Entry{Type: TypeStr, Description: "Transmit Power"}},
	}
	m := make(map[string]Entry, len(entries))
	for _, re := range entries {
		m[re.tag] = re.e
	}
	return m
}

// Lookup returns the catalogue entry for tag and whether it exists.
func Lookup(tag string) (Entry, bool) {
	e, ok := table[tag]
	return e, ok
}

// MustLookup panics if tag is absent; reserved for package-internal
// invariants where the tag is a compile-time constant known to exist.
func MustLookup(tag string) Entry {
	e, ok := Lookup(tag)
	if !ok {
		panic(fmt.Sprintf("catalogue: unknown tag %q", tag))
	}
	return e
}
