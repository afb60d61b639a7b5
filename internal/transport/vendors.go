package transport

import "strings"

// usbVendor names a USB-serial bridge maker and the bridge chips it ships.
type usbVendor struct {
	name     string
	products map[string]string
}

// usbVendors is keyed by lower case hex VID
var usbVendors = map[string]usbVendor{
	"0403": {
		name: "FTDI",
		products: map[string]string{
			"6001": "FT232R",
			"6010": "FT2232",
			"6011": "FT4232H",
			"6014": "FT232H",
			"6015": "FT-X",
		},
	},
	"067b": {
		name: "Prolific",
		products: map[string]string{
			"2303": "PL2303",
			"23a3": "PL2303GC",
		},
	},
	"10c4": {
		name: "Silicon Labs",
		products: map[string]string{
			"ea60": "CP210x",
			"ea70": "CP2105",
			"ea71": "CP2108",
		},
	},
	"1a86": {
		name: "WCH",
		products: map[string]string{
			"7523": "CH340",
			"7522": "CH340K",
			"55d4": "CH9102",
		},
	},
	"2341": {name: "Arduino"},
	"0483": {
		name: "STMicroelectronics",
		products: map[string]string{
			"5740": "Virtual COM Port",
			"374b": "ST-LINK/V2-1",
		},
	},
	"303a": {name: "Espressif"},
	"04d8": {
		name: "Microchip",
		products: map[string]string{
			"000a": "CDC RS-232",
			"00dd": "MCP2221",
		},
	},
}

// LookupVendor describes a USB VID:PID pair, e.g. "FTDI FT232R". It returns
// the vendor alone when the product is unknown and "" when the vendor is.
func LookupVendor(vid, pid string) string {
	v, ok := usbVendors[strings.ToLower(vid)]
	if !ok {
		return ""
	}
	if chip, ok := v.products[strings.ToLower(pid)]; ok {
		return v.name + " " + chip
	}
	return v.name
}
