// Package mailbox locates mailboxes. A Path tags a user-supplied string
// with a concrete mailbox type (local formats and remote URL schemes) and
// normalizes it in stages: resolve shortcuts, tidy syntax, canonicalize
// against the filesystem or URL defaults.
package mailbox

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Type classifies a mailbox path.
type Type int

const (
	TypeUnknown Type = iota
	TypeMbox
	TypeMMDF
	TypeMaildir
	TypeMH
	TypeCompressed
	TypeIMAP
	TypePOP
	TypeNNTP
	TypeNotmuch
)

func (t Type) String() string {
	switch t {
	case TypeMbox:
		return "mbox"
	case TypeMMDF:
		return "mmdf"
	case TypeMaildir:
		return "maildir"
	case TypeMH:
		return "mh"
	case TypeCompressed:
		return "compressed"
	case TypeIMAP:
		return "imap"
	case TypePOP:
		return "pop"
	case TypeNNTP:
		return "nntp"
	case TypeNotmuch:
		return "notmuch"
	default:
		return "unknown"
	}
}

// remote reports whether the type is URL-addressed.
func (t Type) remote() bool {
	switch t {
	case TypeIMAP, TypePOP, TypeNNTP, TypeNotmuch:
		return true
	default:
		return false
	}
}

// Flags witness which normalizations have been performed on a Path. They
// are monotone: once set, never cleared.
type Flags uint8

const (
	// FlagResolved means shortcuts have been expanded.
	FlagResolved Flags = 1 << iota
	// FlagTidy means the syntactic form has been normalized. Implies
	// FlagResolved.
	FlagTidy
	// FlagCanonical means Canon holds the canonical form. Implies FlagTidy.
	FlagCanonical
)

var (
	// ErrNoParent is returned by Parent at the top of a hierarchy.
	ErrNoParent = errors.New("mailbox: no parent")
	// ErrUnknownType is returned when a path cannot be classified.
	ErrUnknownType = errors.New("mailbox: cannot determine mailbox type")
)

// Path is a polymorphic mailbox locator.
type Path struct {
	// Type may only transition from TypeUnknown to a concrete type, via
	// Probe.
	Type Type
	// Orig is the path string. Resolve and Tidy rewrite it in place.
	Orig string
	// Canon is the canonical form, set by Canonicalize.
	Canon string
	// Pretty is the short display form, set by PrettyPath.
	Pretty string
	// Flags records which normalizations have run.
	Flags Flags
}

// NewPath wraps a user-supplied mailbox string.
func NewPath(s string) *Path {
	return &Path{Orig: s}
}

// ResolveConfig supplies the expansion targets for mailbox shortcuts and
// the defaults applied during canonicalization.
type ResolveConfig struct {
	// Folder is the mailbox directory '+' and '=' expand to.
	Folder string
	// SpoolFile is the incoming mailbox '!' expands to.
	SpoolFile string
	// Record is the sent-mail mailbox '<' expands to.
	Record string
	// Mbox is the archive mailbox '>' expands to.
	Mbox string
	// LastFolder is the previously open mailbox, for '-' and '!!'.
	LastFolder string
	// CurrentFolder is the currently open mailbox, for '^'.
	CurrentFolder string
	// HomeDir overrides the home directory used for '~' expansion.
	HomeDir string
	// DefaultUser fills a missing username in remote canonical forms.
	DefaultUser string
	// DefaultPort fills a missing port in remote canonical forms,
	// overriding the scheme's well-known port.
	DefaultPort string
}

func (cfg *ResolveConfig) home() (string, error) {
	if cfg != nil && cfg.HomeDir != "" {
		return cfg.HomeDir, nil
	}
	return os.UserHomeDir()
}

// Resolve expands a leading mailbox shortcut in Orig and sets FlagResolved.
// A shortcut whose expansion target is unset in cfg is an error.
func (p *Path) Resolve(cfg *ResolveConfig) error {
	if cfg == nil {
		cfg = &ResolveConfig{}
	}

	expand := func(target, name, rest string) error {
		if target == "" {
			return fmt.Errorf("mailbox: shortcut %q: %s is not set", p.Orig, name)
		}
		p.Orig = target + rest
		return nil
	}

	s := p.Orig
	var err error
	switch {
	case s == "":
		err = errors.New("mailbox: empty path")
	case s[0] == '+' || s[0] == '=':
		err = expand(joinFolder(cfg.Folder), "folder", s[1:])
	case strings.HasPrefix(s, "!!"):
		err = expand(cfg.LastFolder, "last folder", s[2:])
	case s[0] == '!':
		err = expand(cfg.SpoolFile, "spool file", s[1:])
	case s[0] == '-':
		err = expand(cfg.LastFolder, "last folder", s[1:])
	case s[0] == '<':
		err = expand(cfg.Record, "record", s[1:])
	case s[0] == '>':
		err = expand(cfg.Mbox, "mbox", s[1:])
	case s[0] == '^':
		err = expand(cfg.CurrentFolder, "current folder", s[1:])
	}
	if err != nil {
		return err
	}
	p.Flags |= FlagResolved
	return nil
}

// joinFolder appends a separator so "+sub" becomes "folder/sub".
func joinFolder(folder string) string {
	if folder == "" {
		return ""
	}
	if strings.HasSuffix(folder, "/") {
		return folder
	}
	return folder + "/"
}

// Probe classifies a path of unknown type. URL paths are classified by
// scheme, local paths by filesystem inspection. Probing an already typed
// path is a no-op.
func (p *Path) Probe() error {
	if p.Type != TypeUnknown {
		return nil
	}
	t, err := probe(p.Orig)
	if err != nil {
		return err
	}
	p.Type = t
	return nil
}

// probe classifies a raw path string.
func probe(s string) (Type, error) {
	if t, ok := schemeType(s); ok {
		return t, nil
	}
	if strings.Contains(s, "://") {
		return TypeUnknown, ErrUnknownType
	}
	return probeLocal(s)
}

// Tidy normalizes the syntactic form of Orig in place and sets FlagTidy.
// Local paths get slash and dot-segment collapsing; URL paths get scheme
// lowercasing, INBOX defaulting and query canonicalization, and lose any
// password.
func (p *Path) Tidy() error {
	if err := p.Probe(); err != nil {
		return err
	}
	if p.Type.remote() {
		u, err := parseURL(p.Orig)
		if err != nil {
			return err
		}
		tidyURL(p.Type, u)
		p.Orig = u.format(false)
	} else {
		p.Orig = tidyLocal(p.Orig)
	}
	p.Flags |= FlagResolved | FlagTidy
	return nil
}

// Canonicalize populates Canon and sets FlagCanonical. Local paths are made
// absolute with symlinks resolved; failure to resolve is an error. Remote
// paths get missing user and port defaulted; the password is never part of
// the canonical form.
func (p *Path) Canonicalize(cfg *ResolveConfig) error {
	if err := p.Probe(); err != nil {
		return err
	}
	if p.Type.remote() {
		u, err := parseURL(p.Orig)
		if err != nil {
			return err
		}
		tidyURL(p.Type, u)
		canonURL(p.Type, u, cfg)
		p.Canon = u.format(false)
	} else {
		canon, err := canonLocal(p.Orig, cfg)
		if err != nil {
			return err
		}
		p.Canon = canon
	}
	p.Flags |= FlagResolved | FlagTidy | FlagCanonical
	return nil
}

// effective returns the most normalized string form available.
func (p *Path) effective() string {
	if p.Flags&FlagCanonical != 0 && p.Canon != "" {
		return p.Canon
	}
	return p.Orig
}

// Compare orders two paths. Remote paths order by scheme, user, host,
// port, then mailbox, with INBOX sorting first within a host and passwords
// ignored; a missing user or port matches any. Local paths compare by
// canonical string.
func Compare(a, b *Path) int {
	ra, rb := a.Type.remote(), b.Type.remote()
	if ra != rb {
		// Local sorts before remote.
		if !ra {
			return -1
		}
		return 1
	}
	if !ra {
		return strings.Compare(a.effective(), b.effective())
	}

	ua, errA := parseURL(a.effective())
	ub, errB := parseURL(b.effective())
	if errA != nil || errB != nil {
		return strings.Compare(a.effective(), b.effective())
	}
	tidyURL(a.Type, ua)
	tidyURL(b.Type, ub)
	return compareURL(a.Type, b.Type, ua, ub)
}

// Parent derives the containing mailbox. Only hierarchical remote paths
// have parents; the hierarchy root and all local mailboxes return
// ErrNoParent.
func (p *Path) Parent() (*Path, error) {
	if err := p.Probe(); err != nil {
		return nil, err
	}
	if !p.Type.remote() {
		return nil, ErrNoParent
	}

	u, err := parseURL(p.effective())
	if err != nil {
		return nil, err
	}
	i := strings.LastIndexByte(u.path, '/')
	if u.path == "" || i < 0 {
		return nil, ErrNoParent
	}
	u.path = u.path[:i]
	u.query = nil

	parent := &Path{Type: p.Type, Orig: u.format(false)}
	parent.Flags = p.Flags & (FlagResolved | FlagTidy)
	return parent, nil
}

// PrettyResult reports what PrettyPath did.
type PrettyResult int

const (
	// PrettyApplied means Pretty was set to an abbreviated form.
	PrettyApplied PrettyResult = iota
	// PrettyUnchanged means no abbreviation applied; Pretty equals the
	// path itself.
	PrettyUnchanged
	// PrettyNotApplicable means the path kind has no pretty form.
	PrettyNotApplicable
)

// PrettyPath sets Pretty to a short display form: a prefix equal to folder
// becomes "+", otherwise (for local paths) the home directory becomes "~".
// IMAP mailbox names are additionally decoded from modified UTF-7 for
// display. The folder abbreviation wins when both apply.
func (p *Path) PrettyPath(folder string, cfg *ResolveConfig) PrettyResult {
	s := p.effective()
	display := s
	if p.Type == TypeIMAP {
		display = prettyIMAP(s)
	}

	if folder != "" && len(display) > len(joinFolder(folder)) &&
		strings.HasPrefix(display, joinFolder(folder)) {
		p.Pretty = "+" + display[len(joinFolder(folder)):]
		return PrettyApplied
	}

	if !p.Type.remote() {
		if home, err := cfg.home(); err == nil && home != "" {
			if display == home {
				p.Pretty = "~"
				return PrettyApplied
			}
			prefix := strings.TrimSuffix(home, "/") + "/"
			if strings.HasPrefix(display, prefix) {
				p.Pretty = "~/" + display[len(prefix):]
				return PrettyApplied
			}
		}
	}

	p.Pretty = display
	if display != s {
		return PrettyApplied
	}
	if p.Type.remote() {
		// Remote paths have no home abbreviation; the pretty form is the
		// path itself.
		return PrettyUnchanged
	}
	return PrettyNotApplicable
}
