package address

import (
	"strings"
)

// wrapColumn is the column past which WriteListWrap folds header lines.
const wrapColumn = 74

// render writes a single address in wire form. Angle brackets appear only
// when a personal name is present or the mailbox begins with a route. When
// display is set, punycoded domains are shown decoded.
func (a *Address) render(display bool) string {
	if a.Personal == "" && a.Mailbox == "" {
		return ""
	}

	var sb strings.Builder

	if a.Personal != "" {
		if strings.ContainsAny(a.Personal, Specials) {
			sb.WriteByte('"')
			for i := 0; i < len(a.Personal); i++ {
				c := a.Personal[i]
				if c == '"' || c == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteByte(c)
			}
			sb.WriteByte('"')
		} else {
			sb.WriteString(a.Personal)
		}
		sb.WriteByte(' ')
	}

	route := a.Mailbox != "" && a.Mailbox[0] == '@'
	brackets := a.Personal != "" || route

	if brackets {
		sb.WriteByte('<')
	}
	if a.Mailbox != "" {
		if a.Mailbox != "@" {
			m := a.Mailbox
			if display {
				m = a.ForDisplay()
			}
			sb.WriteString(m)
		}
		if brackets {
			sb.WriteByte('>')
		}
		if a.Group {
			sb.WriteString(": ")
		}
	} else {
		sb.WriteByte(';')
	}

	return sb.String()
}

// String renders the address in wire form.
func (a *Address) String() string {
	return a.render(false)
}

// Format renders the address; with display set, IDN domains are decoded for
// human consumption. The display form may not parse back losslessly.
func (a *Address) Format(display bool) string {
	return a.render(display)
}

func (l List) write(display bool, header string, cols int) string {
	if len(l) == 0 {
		return ""
	}

	var buf []byte
	if header != "" {
		buf = append(buf, header...)
		buf = append(buf, ": "...)
	}

	col := len(buf)

	for i, a := range l {
		mark := len(buf)
		rendered := a.render(display)
		buf = append(buf, rendered...)
		col += len(rendered)

		// Fold before the entry that overflowed, never before the first.
		if cols > 0 && col > cols && i > 0 {
			folded := make([]byte, 0, len(buf)+2)
			folded = append(folded, buf[:mark]...)
			folded = append(folded, '\n', '\t')
			folded = append(folded, buf[mark:]...)
			buf = folded
			col = 8 + len(rendered)
		}

		if a.Group {
			continue
		}

		// A terminator always renders as ';', even when the list was cut
		// after the opener.
		if a.terminator() {
			buf = append(buf, ';')
			col++
		}

		if i+1 < len(l) && (l[i+1].Mailbox != "" || l[i+1].Personal != "" || l[i+1].Group) {
			buf = append(buf, ", "...)
			col += 2
		}
	}

	return string(buf)
}

// String renders the list in wire form, entries separated by ", ". Group
// terminators render as ';'.
func (l List) String() string {
	return l.write(false, "", -1)
}

// Format renders the list; with display set, IDN domains are decoded.
func (l List) Format(display bool) string {
	return l.write(display, "", -1)
}

// WriteWrap renders the list as a header line ("Header: addr, ...\n\taddr")
// folded at 74 columns, continuation lines indented with a tab.
func (l List) WriteWrap(header string) string {
	return l.write(false, header, wrapColumn)
}
