package mailbox

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/tidemail/go-mailcore/mailbox/internal/utf7"
)

// schemeTypes maps URL schemes to mailbox types.
var schemeTypes = map[string]Type{
	"imap":    TypeIMAP,
	"imaps":   TypeIMAP,
	"pop":     TypePOP,
	"pops":    TypePOP,
	"nntp":    TypeNNTP,
	"news":    TypeNNTP,
	"snews":   TypeNNTP,
	"notmuch": TypeNotmuch,
}

// defaultPorts are filled in during canonicalization when the URL has none.
var defaultPorts = map[string]string{
	"imap":  "143",
	"imaps": "993",
	"pop":   "110",
	"pops":  "995",
	"nntp":  "119",
	"news":  "119",
	"snews": "563",
}

// schemeType classifies a string by URL scheme prefix.
func schemeType(s string) (Type, bool) {
	i := strings.Index(s, "://")
	if i <= 0 {
		return TypeUnknown, false
	}
	t, ok := schemeTypes[strings.ToLower(s[:i])]
	return t, ok
}

// queryPair is one key=value parameter; order and duplicates are
// significant until canonicalization.
type queryPair struct {
	key   string
	value string
}

// mailboxURL is the decomposed form of a remote mailbox locator.
type mailboxURL struct {
	scheme   string
	user     string
	password string
	hasUser  bool
	hasPass  bool
	host     string
	port     string
	path     string // mailbox name, no leading slash
	query    []queryPair
}

func parseURL(s string) (*mailboxURL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("mailbox: parse %s: %w", s, err)
	}
	if u.Scheme == "" || u.Host == "" && u.Scheme != "notmuch" {
		return nil, fmt.Errorf("mailbox: malformed url %q", s)
	}

	m := &mailboxURL{
		scheme: u.Scheme,
		host:   u.Hostname(),
		port:   u.Port(),
		path:   strings.TrimPrefix(u.Path, "/"),
	}
	if u.User != nil {
		m.user = u.User.Username()
		m.hasUser = true
		m.password, m.hasPass = u.User.Password()
	}
	if u.RawQuery != "" {
		for _, kv := range strings.Split(u.RawQuery, "&") {
			if kv == "" {
				continue
			}
			k, v, _ := strings.Cut(kv, "=")
			ku, err := url.QueryUnescape(k)
			if err != nil {
				return nil, fmt.Errorf("mailbox: query %q: %w", kv, err)
			}
			vu, err := url.QueryUnescape(v)
			if err != nil {
				return nil, fmt.Errorf("mailbox: query %q: %w", kv, err)
			}
			m.query = append(m.query, queryPair{key: ku, value: vu})
		}
	}
	return m, nil
}

// format renders the URL. The password appears only when asked for, and
// never in tidy or canonical forms.
func (m *mailboxURL) format(includePassword bool) string {
	var sb strings.Builder
	sb.WriteString(m.scheme)
	sb.WriteString("://")
	if m.hasUser {
		sb.WriteString(m.user)
		if includePassword && m.hasPass {
			sb.WriteByte(':')
			sb.WriteString(m.password)
		}
		sb.WriteByte('@')
	}
	sb.WriteString(m.host)
	if m.port != "" {
		sb.WriteByte(':')
		sb.WriteString(m.port)
	}
	if m.path != "" {
		sb.WriteByte('/')
		sb.WriteString(m.path)
	}
	if len(m.query) > 0 {
		sb.WriteByte('?')
		for i, q := range m.query {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(q.key))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(q.value))
		}
	}
	return sb.String()
}

// tidyURL normalizes a parsed URL in place: lowercased scheme, INBOX
// defaulting, canonical INBOX capitalization, sorted notmuch query, no
// password.
func tidyURL(t Type, m *mailboxURL) {
	m.scheme = strings.ToLower(m.scheme)
	m.password = ""
	m.hasPass = false

	switch t {
	case TypeIMAP:
		if m.path == "" || strings.EqualFold(m.path, "INBOX") {
			m.path = "INBOX"
		}
	case TypePOP:
		if m.path == "" {
			m.path = "INBOX"
		}
	case TypeNotmuch:
		canonQuery(m)
	}
}

// canonQuery sorts query parameters by (key, value) and drops exact
// duplicates. Duplicate keys with different values are all retained.
func canonQuery(m *mailboxURL) {
	sort.SliceStable(m.query, func(i, j int) bool {
		if m.query[i].key != m.query[j].key {
			return m.query[i].key < m.query[j].key
		}
		return m.query[i].value < m.query[j].value
	})
	out := m.query[:0]
	for i, q := range m.query {
		if i > 0 && q == m.query[i-1] {
			continue
		}
		out = append(out, q)
	}
	m.query = out
}

// canonURL fills in the missing user and port.
func canonURL(t Type, m *mailboxURL, cfg *ResolveConfig) {
	if !m.hasUser && cfg != nil && cfg.DefaultUser != "" {
		m.user = cfg.DefaultUser
		m.hasUser = true
	}
	if m.port == "" {
		if cfg != nil && cfg.DefaultPort != "" {
			m.port = cfg.DefaultPort
		} else {
			m.port = defaultPorts[m.scheme]
		}
	}
}

// compareWild is a three-way string compare where an empty side matches
// anything.
func compareWild(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return strings.Compare(a, b)
}

// compareURL orders two remote locators: scheme, user, host, port, then
// mailbox. INBOX sorts first among IMAP mailboxes. Notmuch locators with
// equal query multisets compare equal.
func compareURL(ta, tb Type, a, b *mailboxURL) int {
	if ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	// Same type does not mean same scheme: imap and imaps share a type but
	// order apart.
	if c := strings.Compare(a.scheme, b.scheme); c != 0 {
		return c
	}
	if c := compareWild(a.userOrEmpty(), b.userOrEmpty()); c != 0 {
		return c
	}
	if c := strings.Compare(a.host, b.host); c != 0 {
		return c
	}
	if c := compareWild(a.port, b.port); c != 0 {
		return c
	}

	if ta == TypeIMAP {
		ai, bi := a.path == "INBOX", b.path == "INBOX"
		if ai != bi {
			if ai {
				return -1
			}
			return 1
		}
	}
	if c := strings.Compare(a.path, b.path); c != 0 {
		return c
	}

	if ta == TypeNotmuch {
		return compareQuery(a.query, b.query)
	}
	return 0
}

func (m *mailboxURL) userOrEmpty() string {
	if !m.hasUser {
		return ""
	}
	return m.user
}

// compareQuery orders two already canonicalized query pair lists.
func compareQuery(a, b []queryPair) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].key != b[i].key {
			return strings.Compare(a[i].key, b[i].key)
		}
		if a[i].value != b[i].value {
			return strings.Compare(a[i].value, b[i].value)
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// prettyIMAP decodes the mailbox component from modified UTF-7 for
// display. Undecodable names are shown as-is.
func prettyIMAP(s string) string {
	m, err := parseURL(s)
	if err != nil {
		return s
	}
	decoded, err := utf7.Decode(m.path)
	if err != nil || decoded == m.path {
		return s
	}
	m.path = decoded
	return m.format(false)
}
