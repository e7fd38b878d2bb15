package phone

import "sort"

type countryCode struct {
	code          string
	country       string
	subscriberLen int
}

// Canonical dialing-code table. Overlapping prefixes (1/1876, 5xx/598) are
// resolved by matching the longest code first, see codesByLength.
var countryCodes = []countryCode{
	{"1", "United States/Canada", 10},
	{"1758", "Saint Lucia", 7},
	{"1868", "Trinidad and Tobago", 7},
	{"1876", "Jamaica", 7},
	{"7", "Russia/Kazakhstan", 10},
	{"20", "Egypt", 10},
	{"27", "South Africa", 9},
	{"30", "Greece", 10},
	{"31", "Netherlands", 9},
	{"32", "Belgium", 9},
	{"33", "France", 9},
	{"34", "Spain", 9},
	{"39", "Italy", 10},
	{"40", "Romania", 9},
	{"44", "United Kingdom", 10},
	{"46", "Sweden", 9},
	{"48", "Poland", 9},
	{"49", "Germany", 10},
	{"52", "Mexico", 10},
	{"55", "Brazil", 11},
	{"60", "Malaysia", 9},
	{"61", "Australia", 9},
	{"62", "Indonesia", 10},
	{"63", "Philippines", 10},
	{"65", "Singapore", 8},
	{"66", "Thailand", 9},
	{"81", "Japan", 10},
	{"82", "South Korea", 10},
	{"84", "Vietnam", 9},
	{"86", "China", 11},
	{"90", "Turkey", 10},
	{"91", "India", 10},
	{"92", "Pakistan", 10},
	{"94", "Sri Lanka", 9},
	{"95", "Myanmar", 9},
	{"98", "Iran", 10},
	{"212", "Morocco", 9},
	{"234", "Nigeria", 10},
	{"254", "Kenya", 9},
	{"351", "Portugal", 9},
	{"380", "Ukraine", 9},
	{"420", "Czech Republic", 9},
	{"598", "Uruguay", 8},
	{"852", "Hong Kong", 8},
	{"880", "Bangladesh", 10},
	{"886", "Taiwan", 9},
	{"966", "Saudi Arabia", 9},
	{"971", "United Arab Emirates", 9},
	{"972", "Israel", 9},
	{"974", "Qatar", 8},
	{"975", "Bhutan", 8},
	{"977", "Nepal", 10},
}

// codesByLength returns the table ordered longest code first so that a more
// specific code ("1876") always wins over a prefix of it ("1"). Ties are
// broken lexicographically to keep iteration deterministic.
func codesByLength() []countryCode {
	codes := make([]countryCode, len(countryCodes))
	copy(codes, countryCodes)
	sort.SliceStable(codes, func(i, j int) bool {
		if len(codes[i].code) != len(codes[j].code) {
			return len(codes[i].code) > len(codes[j].code)
		}
		return codes[i].code < codes[j].code
	})
	return codes
}
