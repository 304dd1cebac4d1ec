package sampler

import (
	"fmt"
	"strings"
)

// splitTerse splits one line of `nmcli -t` output into want fields.
//
// Fields are separated by unescaped ':'. Inside a field "\:" decodes to ':'
// and "\\" to '\'. A trailing lone '\' is kept literally. A line that does
// not yield exactly want fields is rejected rather than realigned.
func splitTerse(line string, want int) ([]string, error) {
	fields := make([]string, 0, want)
	var cur strings.Builder

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line) && (line[i+1] == ':' || line[i+1] == '\\'):
			cur.WriteByte(line[i+1])
			i++
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())

	if len(fields) != want {
		return nil, fmt.Errorf("terse line has %d fields, want %d: %q", len(fields), want, line)
	}
	return fields, nil
}

// noValue reports whether an nmcli field holds its "no value" marker.
func noValue(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "--"
}
