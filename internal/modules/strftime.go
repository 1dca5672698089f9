package modules

import (
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// formatTime renders t with a strftime pattern when format contains '%',
// otherwise with a Go reference layout.
func formatTime(t time.Time, format string) string {
	if strings.Contains(format, "%") {
		return strftime.Format(oneBasedWeeks(format, t), t)
	}
	return t.Format(format)
}

// oneBasedWeeks replaces %U and %W with their value plus one, so the first
// week of the year reads "01" on the display.
func oneBasedWeeks(format string, t time.Time) string {
	if !strings.Contains(format, "%U") && !strings.Contains(format, "%W") {
		return format
	}
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		switch format[i] {
		case 'U', 'W':
			n, err := strconv.Atoi(strftime.Format("%"+string(format[i]), t))
			if err != nil {
				b.WriteByte('%')
				b.WriteByte(format[i])
				continue
			}
			if n < 9 {
				b.WriteByte('0')
			}
			b.WriteString(strconv.Itoa(n + 1))
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}
