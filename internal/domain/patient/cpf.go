package patient

import (
	"strings"
	"unicode"
)

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCPF renders an 11-digit CPF as ###.###.###-##, whatever punctuation
// it arrived with. Values without exactly 11 digits are returned trimmed but
// otherwise untouched so validation can reject them.
func FormatCPF(value string) string {
	value = strings.TrimSpace(value)
	d := digits(value)
	if len(d) != 11 {
		return value
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// FormatZipCode renders an 8-digit CEP as #####-###.
func FormatZipCode(value string) string {
	value = strings.TrimSpace(value)
	d := digits(value)
	if len(d) != 8 {
		return value
	}
	return d[0:5] + "-" + d[5:8]
}
