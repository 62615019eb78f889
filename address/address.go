// Package address parses, renders and transforms RFC 822 email address
// lists, including group syntax, route addresses, comments, quoting and
// internationalized (IDN) domains.
package address

import (
	"strings"
)

// Specials are the characters with special meaning in an email address.
const Specials = "\"(),.:;<>@[\\]"

// Address is a single entry of an address list.
//
// A group header entry has Group set and the group name in Mailbox. A group
// terminator is an entry with no mailbox and no personal name. Group headers
// and terminators always nest properly within a List.
type Address struct {
	// Personal is the human display name, if any.
	Personal string
	// Mailbox is the canonical local@domain form. Empty for group
	// terminators.
	Mailbox string
	// Group marks this entry as a group header; Mailbox holds the group
	// name.
	Group bool

	// IDN status memoization, set by ToIntl/ToLocal.
	intl        bool
	intlChecked bool
}

// New returns an Address with the given personal name and mailbox.
func New(personal, mailbox string) *Address {
	return &Address{Personal: personal, Mailbox: mailbox}
}

// Copy returns a deep copy of the Address.
func (a *Address) Copy() *Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// terminator reports whether the entry is a group terminator.
func (a *Address) terminator() bool {
	return a.Mailbox == "" && a.Personal == "" && !a.Group
}

// Cmp reports whether two addresses have the same mailbox, compared
// case-insensitively. Personal names are ignored.
func (a *Address) Cmp(b *Address) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Mailbox == "" || b.Mailbox == "" {
		return false
	}
	return strings.EqualFold(a.Mailbox, b.Mailbox)
}

// List is an ordered list of addresses, possibly containing groups.
type List []*Address

// Copy appends a deep copy of src to the list. If prune is set, group
// headers immediately followed by a terminator (or nothing) are skipped.
func (l *List) Copy(src List, prune bool) {
	for i, a := range src {
		if prune && a.Group {
			if i+1 >= len(src) || src[i+1].Mailbox == "" {
				continue
			}
		}
		*l = append(*l, a.Copy())
	}
}

// Append adds an address to the end of the list.
func (l *List) Append(a *Address) {
	if a != nil {
		*l = append(*l, a)
	}
}

// Prepend adds an address to the front of the list.
func (l *List) Prepend(a *Address) {
	if a != nil {
		*l = append(List{a}, *l...)
	}
}

// Clear empties the list.
func (l *List) Clear() {
	*l = (*l)[:0]
}

// Remove deletes every entry whose mailbox equals the given one,
// case-insensitively. It reports whether anything was removed.
func (l *List) Remove(mailbox string) bool {
	removed := false
	out := (*l)[:0]
	for _, a := range *l {
		if a.Mailbox != "" && strings.EqualFold(a.Mailbox, mailbox) {
			removed = true
			continue
		}
		out = append(out, a)
	}
	*l = out
	return removed
}

// Qualify rewrites each bare local name in the list to local@host. Group
// headers and already-qualified mailboxes are left alone. A missing host is
// a no-op.
func (l List) Qualify(host string) {
	if host == "" {
		return
	}
	for _, a := range l {
		if !a.Group && a.Mailbox != "" && !strings.ContainsRune(a.Mailbox, '@') {
			a.Mailbox += "@" + host
		}
	}
}

// Equal reports whether two lists are strictly identical: same length, and
// byte-equal mailbox and personal strings in lockstep.
func (l List) Equal(other List) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i].Mailbox != other[i].Mailbox || l[i].Personal != other[i].Personal {
			return false
		}
	}
	return true
}

// Search reports whether the needle's mailbox appears in the list,
// case-insensitively.
func (l List) Search(needle *Address) bool {
	for _, a := range l {
		if a.Cmp(needle) {
			return true
		}
	}
	return false
}

// CountRecipients returns the number of entries with a mailbox that are not
// group headers.
func (l List) CountRecipients() int {
	n := 0
	for _, a := range l {
		if a.Mailbox != "" && !a.Group {
			n++
		}
	}
	return n
}

// Dedupe removes entries whose mailbox duplicates an earlier entry,
// case-insensitively. Entries without a mailbox are kept.
func (l *List) Dedupe() {
	out := (*l)[:0]
	for _, a := range *l {
		if a.Mailbox != "" {
			dup := false
			for _, kept := range out {
				if kept.Mailbox != "" && strings.EqualFold(kept.Mailbox, a.Mailbox) {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
		}
		out = append(out, a)
	}
	*l = out
}

// RemoveXrefs deletes from l every address contained in ref.
func (l *List) RemoveXrefs(ref List) {
	out := (*l)[:0]
	for _, a := range *l {
		if ref.Search(a) {
			continue
		}
		out = append(out, a)
	}
	*l = out
}

// UsesUnicode reports whether any non-group mailbox contains a byte above
// 0x7F.
func (l List) UsesUnicode() bool {
	for _, a := range l {
		if a.Group || a.Mailbox == "" {
			continue
		}
		for i := 0; i < len(a.Mailbox); i++ {
			if a.Mailbox[i] > 0x7F {
				return true
			}
		}
	}
	return false
}

// ValidMsgID reports whether s is a plausible Message-ID: non-empty, at
// least 5 bytes, bracketed by <>, containing @, all bytes ASCII.
//
// Deliberately conservative; used to thwart the APOP MD5 attack.
func ValidMsgID(s string) bool {
	if len(s) < 5 {
		return false
	}
	if s[0] != '<' || s[len(s)-1] != '>' {
		return false
	}
	if !strings.ContainsRune(s, '@') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}
