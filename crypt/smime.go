package crypt

import (
	"strings"

	"github.com/tidemail/go-mailcore/address"
)

var smimePassphrase passphraseCache

// SetSMIMEPassphrase caches the S/MIME key passphrase for
// PassphraseTimeout.
func SetSMIMEPassphrase(secret string) {
	smimePassphrase.set(secret)
}

// smimeFindKeys maps recipients to certificate identifiers. The classic
// backend keys its certificate index by lowercased mailbox.
func smimeFindKeys(recipients address.List, oppenc bool) (string, error) {
	var ids []string
	for _, a := range recipients {
		if a.Group || a.Mailbox == "" {
			continue
		}
		ids = append(ids, strings.ToLower(a.Mailbox))
	}
	if len(ids) == 0 {
		if oppenc {
			return "", nil
		}
		return "", ErrNotSupported
	}
	return strings.Join(ids, " "), nil
}

// smimeVerifySender checks that the envelope names the expected sender:
// Sender wins over From, matching certificate mailboxes case-insensitively.
func smimeVerifySender(env *address.Envelope, signerMailbox string) bool {
	if env == nil || signerMailbox == "" {
		return false
	}
	sender := env.Sender
	if len(sender) == 0 {
		sender = env.From
	}
	for _, a := range sender {
		if a.Group || a.Mailbox == "" {
			continue
		}
		if strings.EqualFold(a.Mailbox, signerMailbox) {
			return true
		}
	}
	return false
}

// newClassicSMIME builds the command-line S/MIME module. Certificate
// operations requiring an external openssl are left unimplemented.
func newClassicSMIME() *Module {
	return &Module{
		Protocol: ProtocolSMIME,
		Name:     "smime classic",
		Functions: Functions{
			VoidPassphrase:    smimePassphrase.void,
			ValidPassphrase:   smimePassphrase.valid,
			FindKeys:          smimeFindKeys,
			SMIMEVerifySender: smimeVerifySender,
		},
	}
}
