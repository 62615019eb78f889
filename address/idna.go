package address

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// IDNError reports a mailbox that could not be converted between its local
// and international (punycode) forms.
type IDNError struct {
	Mailbox string
}

func (e *IDNError) Error() string {
	return fmt.Sprintf("address: bad IDN %q", e.Mailbox)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

// splitMailbox splits local@domain at the last '@'. It fails when either
// side would be empty.
func splitMailbox(mailbox string) (user, domain string, ok bool) {
	at := strings.LastIndexByte(mailbox, '@')
	if at < 1 || at+1 >= len(mailbox) {
		return "", "", false
	}
	return mailbox[:at], mailbox[at+1:], true
}

// localToIntl converts a mailbox to its ASCII wire form, punycoding the
// domain. The local part has no wire encoding for non-ASCII, so a non-ASCII
// local part fails.
func localToIntl(user, domain string) (string, error) {
	if !isASCII(user) {
		return "", &IDNError{Mailbox: user + "@" + domain}
	}
	ascii, err := idna.ToASCII(domain)
	if err != nil || !isASCII(ascii) {
		return "", &IDNError{Mailbox: user + "@" + domain}
	}
	return user + "@" + ascii, nil
}

// intlToLocal decodes a punycoded domain back to Unicode. Unless
// allowIrreversible is set, a decode that does not re-encode to the same
// wire form is rejected.
func intlToLocal(user, domain string, allowIrreversible bool) (string, error) {
	uni, err := idna.ToUnicode(domain)
	if err != nil {
		return "", &IDNError{Mailbox: user + "@" + domain}
	}
	if !allowIrreversible {
		back, err := idna.ToASCII(uni)
		if err != nil || !strings.EqualFold(back, domain) {
			return "", &IDNError{Mailbox: user + "@" + domain}
		}
	}
	return user + "@" + uni, nil
}

// ToIntl converts the mailbox to its international wire form in place.
func (a *Address) ToIntl() error {
	if a.Mailbox == "" || a.Group {
		return nil
	}
	if a.intlChecked && a.intl {
		return nil
	}
	user, domain, ok := splitMailbox(a.Mailbox)
	if !ok {
		// Unqualified mailbox, nothing to convert.
		return nil
	}
	intl, err := localToIntl(user, domain)
	if err != nil {
		return err
	}
	a.Mailbox = intl
	a.intl = true
	a.intlChecked = true
	return nil
}

// ToLocal converts the mailbox to its decoded local form in place. An
// irreversible decode is rejected and leaves the address unchanged.
func (a *Address) ToLocal() error {
	if a.Mailbox == "" || a.Group {
		return nil
	}
	if a.intlChecked && !a.intl {
		return nil
	}
	user, domain, ok := splitMailbox(a.Mailbox)
	if !ok {
		return nil
	}
	local, err := intlToLocal(user, domain, false)
	if err != nil {
		return err
	}
	a.Mailbox = local
	a.intl = false
	a.intlChecked = true
	return nil
}

// ForDisplay returns the mailbox decoded for human display without mutating
// the address. Irreversible decodes are allowed; on any failure the stored
// form is returned as-is.
func (a *Address) ForDisplay() string {
	if a.Mailbox == "" || a.Group {
		return a.Mailbox
	}
	if a.intlChecked && !a.intl {
		return a.Mailbox
	}
	user, domain, ok := splitMailbox(a.Mailbox)
	if !ok {
		return a.Mailbox
	}
	local, err := intlToLocal(user, domain, true)
	if err != nil {
		return a.Mailbox
	}
	return local
}

// ToIntl converts every mailbox in the list, stopping at the first failure.
func (l List) ToIntl() error {
	for _, a := range l {
		if err := a.ToIntl(); err != nil {
			return err
		}
	}
	return nil
}

// ToLocal converts every mailbox in the list. Failures are skipped so one
// bad domain does not block the rest.
func (l List) ToLocal() {
	for _, a := range l {
		_ = a.ToLocal()
	}
}
