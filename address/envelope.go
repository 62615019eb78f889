package address

import (
	"fmt"
	"time"
)

// Envelope carries the address-bearing headers of a message together with
// the few scalar headers the header cache keeps.
type Envelope struct {
	Return         List // Return-Path
	From           List
	Sender         List
	ReplyTo        List
	To             List
	Cc             List
	Bcc            List
	MailFollowupTo List

	Subject   string
	MessageID string
	InReplyTo string
	Date      time.Time
}

// EnvelopeIDNError reports the header field and mailbox that failed IDN
// conversion.
type EnvelopeIDNError struct {
	Field   string
	Mailbox string
}

func (e *EnvelopeIDNError) Error() string {
	return fmt.Sprintf("address: bad IDN %q in %s", e.Mailbox, e.Field)
}

// fields returns the address lists in canonical header order.
func (e *Envelope) fields() []struct {
	name string
	list *List
} {
	return []struct {
		name string
		list *List
	}{
		{"Return-Path", &e.Return},
		{"From", &e.From},
		{"Sender", &e.Sender},
		{"Reply-To", &e.ReplyTo},
		{"To", &e.To},
		{"Cc", &e.Cc},
		{"Bcc", &e.Bcc},
		{"Mail-Followup-To", &e.MailFollowupTo},
	}
}

// ToIntl converts every address field to wire form, stopping at the first
// field that fails. Fields already converted stay converted.
func (e *Envelope) ToIntl() error {
	for _, f := range e.fields() {
		if err := f.list.ToIntl(); err != nil {
			var idnErr *IDNError
			if ie, ok := err.(*IDNError); ok {
				idnErr = ie
			}
			mailbox := ""
			if idnErr != nil {
				mailbox = idnErr.Mailbox
			}
			return &EnvelopeIDNError{Field: f.name, Mailbox: mailbox}
		}
	}
	return nil
}

// ToLocal converts every address field to display form. Undecodable
// mailboxes are left in wire form.
func (e *Envelope) ToLocal() {
	for _, f := range e.fields() {
		f.list.ToLocal()
	}
}

// Recipients returns the total number of To, Cc and Bcc recipients.
func (e *Envelope) Recipients() int {
	return e.To.CountRecipients() + e.Cc.CountRecipients() + e.Bcc.CountRecipients()
}
