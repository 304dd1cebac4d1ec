package sampler

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// wirelessPath is the kernel's per-interface wireless statistics table.
const wirelessPath = "/proc/net/wireless"

// linkQualityMax is the link quality scale most drivers report against.
const linkQualityMax = 70

// parseWirelessQuality extracts the link quality of iface from the contents
// of /proc/net/wireless and returns it as a 0–100 percentage.
//
//	Inter-| sta-|   Quality        |   Discarded packets
//	 face | tus | link level noise |  nwid  crypt   frag  retry   misc
//	 wlan0: 0000   54.  -56.  -256        0      0      0      0      0
func parseWirelessQuality(data []byte, iface string) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	prefix := iface + ":"
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		parts := strings.Fields(strings.TrimPrefix(line, prefix))
		if len(parts) < 2 {
			return 0, fmt.Errorf("wireless: short line for %s: %q", iface, line)
		}
		raw, err := strconv.ParseFloat(strings.TrimSuffix(parts[1], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("wireless: parse link quality %q: %w", parts[1], err)
		}
		pct := int(raw * 100 / linkQualityMax)
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		return pct, nil
	}
	return 0, fmt.Errorf("wireless: interface %s not listed", iface)
}
