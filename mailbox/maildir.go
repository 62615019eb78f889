package mailbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-maildir"
)

// MaildirDelimiter separates a message's unique key from its flag suffix
// in filenames. Only change it on filesystems that forbid ':'.
var MaildirDelimiter = ":"

// MessageFlags are the per-message flags the maildir backend tracks in the
// filename suffix.
type MessageFlags struct {
	Seen    bool
	Flagged bool
	Replied bool
	Trashed bool
}

func (f MessageFlags) suffix() string {
	// Flag letters are kept in ASCII order.
	var sb strings.Builder
	if f.Flagged {
		sb.WriteByte('F')
	}
	if f.Replied {
		sb.WriteByte('R')
	}
	if f.Seen {
		sb.WriteByte('S')
	}
	if f.Trashed {
		sb.WriteByte('T')
	}
	return sb.String()
}

func parseFlagSuffix(s string) MessageFlags {
	var f MessageFlags
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'F':
			f.Flagged = true
		case 'R':
			f.Replied = true
		case 'S':
			f.Seen = true
		case 'T':
			f.Trashed = true
		}
	}
	return f
}

// Maildir wraps one maildir tree (cur/new/tmp).
type Maildir struct {
	path string
	dir  maildir.Dir
}

// OpenMaildir returns a handle on the maildir rooted at path, creating
// cur/new/tmp if missing.
func OpenMaildir(path string) (*Maildir, error) {
	d := maildir.Dir(path)
	if err := d.Init(); err != nil {
		return nil, fmt.Errorf("mailbox: maildir %s: %w", path, err)
	}
	return &Maildir{path: path, dir: d}, nil
}

// Deliver writes a new message: it is staged in tmp/ and renamed into new/
// only once fully written, so readers never observe partial messages. The
// message becomes visible through Unseen.
func (m *Maildir) Deliver(r io.Reader) error {
	del, err := maildir.NewDelivery(m.path)
	if err != nil {
		return fmt.Errorf("mailbox: deliver: %w", err)
	}
	if _, err := io.Copy(del, r); err != nil {
		del.Abort()
		return fmt.Errorf("mailbox: deliver: %w", err)
	}
	if err := del.Close(); err != nil {
		return fmt.Errorf("mailbox: deliver: %w", err)
	}
	return nil
}

// Unseen moves newly arrived messages from new/ to cur/ and returns their
// keys.
func (m *Maildir) Unseen() ([]string, error) {
	return m.dir.Unseen()
}

// Keys lists the messages in cur/.
func (m *Maildir) Keys() ([]string, error) {
	return m.dir.Keys()
}

// Filename maps a key to its current path. The name changes when flags
// change.
func (m *Maildir) Filename(key string) (string, error) {
	return m.dir.Filename(key)
}

// Open opens the message for reading.
func (m *Maildir) Open(key string) (io.ReadCloser, error) {
	name, err := m.dir.Filename(key)
	if err != nil {
		return nil, err
	}
	return os.Open(name)
}

// Remove deletes the message.
func (m *Maildir) Remove(key string) error {
	name, err := m.dir.Filename(key)
	if err != nil {
		return err
	}
	return os.Remove(name)
}

// Flags reads the message's flags from its filename suffix.
func (m *Maildir) Flags(key string) (MessageFlags, error) {
	name, err := m.dir.Filename(key)
	if err != nil {
		return MessageFlags{}, err
	}
	base := filepath.Base(name)
	_, info, ok := strings.Cut(base, MaildirDelimiter)
	if !ok || !strings.HasPrefix(info, "2,") {
		return MessageFlags{}, nil
	}
	return parseFlagSuffix(info[2:]), nil
}

// SetFlags rewrites the message's flag suffix, renaming the file in place.
func (m *Maildir) SetFlags(key string, f MessageFlags) error {
	name, err := m.dir.Filename(key)
	if err != nil {
		return err
	}
	target := filepath.Join(filepath.Dir(name),
		key+MaildirDelimiter+"2,"+f.suffix())
	if target == name {
		return nil
	}
	if err := os.Rename(name, target); err != nil {
		return fmt.Errorf("mailbox: set flags: %w", err)
	}
	return nil
}
