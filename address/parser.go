package address

import (
	"strings"
)

// ParseErrorKind classifies address parse failures.
type ParseErrorKind int

const (
	ParseErrorMismatchParen ParseErrorKind = iota + 1
	ParseErrorMismatchQuote
	ParseErrorBadRoute
	ParseErrorBadRouteAddr
	ParseErrorBadAddrSpec
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParseErrorMismatchParen:
		return "mismatched parentheses"
	case ParseErrorMismatchQuote:
		return "mismatched quotes"
	case ParseErrorBadRoute:
		return "bad route"
	case ParseErrorBadRouteAddr:
		return "bad address in route"
	case ParseErrorBadAddrSpec:
		return "bad address"
	default:
		return "unknown error"
	}
}

// ParseError is returned when an address list cannot be parsed.
type ParseError struct {
	Kind ParseErrorKind
}

func (e *ParseError) Error() string {
	return "address: " + e.Kind.String()
}

// Character subsets special to each parsing context. Sub-parsers stop at
// their context's specials and treat the rest as atom text.
const (
	userSpecials   = "),:;<>@[]"   // Specials except " ( . \
	domainSpecials = "\"),:;<>@"   // Specials except ( . [ \ ]
	routeSpecials  = "\"):;<>@"    // Specials except ( , . [ \ ]
)

func isEmailWSP(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func skipEmailWSP(s string, i int) int {
	for i < len(s) && isEmailWSP(s[i]) {
		i++
	}
	return i
}

func isSpecial(c byte, set string) bool {
	return strings.IndexByte(set, c) >= 0
}

// parseComment consumes a parenthesised comment. i points just after the
// opening parenthesis. Nested comments are allowed; backslash escapes the
// next byte.
func parseComment(s string, i int, b *strings.Builder) (int, *ParseError) {
	level := 1
	for i < len(s) {
		c := s[i]
		switch c {
		case '(':
			level++
		case ')':
			level--
			if level == 0 {
				return i + 1, nil
			}
		case '\\':
			i++
			if i >= len(s) {
				return 0, &ParseError{Kind: ParseErrorMismatchParen}
			}
			c = s[i]
		}
		b.WriteByte(c)
		i++
	}
	return 0, &ParseError{Kind: ParseErrorMismatchParen}
}

// parseQuote consumes a quoted string. i points just after the opening
// quote mark. Escapes are resolved into the output.
func parseQuote(s string, i int, b *strings.Builder) (int, *ParseError) {
	for i < len(s) {
		c := s[i]
		switch c {
		case '"':
			return i + 1, nil
		case '\\':
			i++
			if i >= len(s) {
				return 0, &ParseError{Kind: ParseErrorMismatchQuote}
			}
			c = s[i]
		}
		b.WriteByte(c)
		i++
	}
	return 0, &ParseError{Kind: ParseErrorMismatchQuote}
}

// nextToken consumes the next word, quoted string or comment into b.
// A special character is consumed on its own.
func nextToken(s string, i int, b *strings.Builder) (int, *ParseError) {
	if i < len(s) && s[i] == '(' {
		return parseComment(s, i+1, b)
	}
	if i < len(s) && s[i] == '"' {
		return parseQuote(s, i+1, b)
	}
	if i < len(s) && isSpecial(s[i], Specials) {
		b.WriteByte(s[i])
		return i + 1, nil
	}
	for i < len(s) {
		if isEmailWSP(s[i]) || isSpecial(s[i], Specials) {
			break
		}
		b.WriteByte(s[i])
		i++
	}
	return i, nil
}

// parseMailboxDomain extracts one side of an addr-spec. It is called twice,
// first for the local part, then for the domain; each side may carry a
// parenthesised comment before or after it.
func parseMailboxDomain(s string, i int, specials string, mailbox, comment *strings.Builder) (int, *ParseError) {
	for i < len(s) {
		i = skipEmailWSP(s, i)
		if i >= len(s) {
			return i, nil
		}
		if isSpecial(s[i], specials) {
			return i, nil
		}

		var err *ParseError
		if s[i] == '(' {
			if comment.Len() > 0 {
				comment.WriteByte(' ')
			}
			i, err = nextToken(s, i, comment)
		} else {
			i, err = nextToken(s, i, mailbox)
		}
		if err != nil {
			return 0, err
		}
	}
	return i, nil
}

// parseAddress extracts an addr-spec: local-part, optionally followed by
// "@" domain. A pending comment is promoted to the personal name if the
// address has none.
func parseAddress(s string, i int, token, comment *strings.Builder, a *Address) (int, *ParseError) {
	i, err := parseMailboxDomain(s, i, userSpecials, token, comment)
	if err != nil {
		return 0, err
	}

	if i < len(s) && s[i] == '@' {
		token.WriteByte('@')
		i, err = parseMailboxDomain(s, i+1, domainSpecials, token, comment)
		if err != nil {
			return 0, err
		}
	}

	a.Mailbox = token.String()

	if comment.Len() > 0 && a.Personal == "" {
		a.Personal = comment.String()
	}

	return i, nil
}

// parseRouteAddr parses the contents of an angle-addr. i points just after
// the opening '<'. A leading "@host,@host2:" route is tolerated and
// retained up through the ':'.
func parseRouteAddr(s string, i int, comment *strings.Builder, a *Address) (int, *ParseError) {
	var token strings.Builder

	i = skipEmailWSP(s, i)

	if i < len(s) && s[i] == '@' {
		for i < len(s) && s[i] == '@' {
			token.WriteByte('@')
			var err *ParseError
			i, err = parseMailboxDomain(s, i+1, routeSpecials, &token, comment)
			if err != nil {
				return 0, &ParseError{Kind: ParseErrorBadRoute}
			}
		}
		if i >= len(s) || s[i] != ':' {
			return 0, &ParseError{Kind: ParseErrorBadRoute}
		}
		token.WriteByte(':')
		i++
	}

	i, err := parseAddress(s, i, &token, comment, a)
	if err != nil {
		return 0, err
	}

	if i >= len(s) || s[i] != '>' {
		return 0, &ParseError{Kind: ParseErrorBadRouteAddr}
	}

	if a.Mailbox == "" {
		a.Mailbox = "@"
	}

	return i + 1, nil
}

// parseAddrSpec parses a bare addr-spec. Anything other than a list
// separator after the address is an error.
func parseAddrSpec(s string, comment *strings.Builder, a *Address) *ParseError {
	var token strings.Builder

	i, err := parseAddress(s, 0, &token, comment, a)
	if err != nil {
		return err
	}
	if i < len(s) && s[i] != ',' && s[i] != ';' {
		return &ParseError{Kind: ParseErrorBadAddrSpec}
	}
	return nil
}

// ParseList parses a list of RFC 822 addresses. Group headers become
// entries with Group set; each group's closing ';' becomes an empty
// terminator entry.
func ParseList(s string) (List, error) {
	var al List
	var phrase, comment strings.Builder

	wsPending := len(s) > 0 && isEmailWSP(s[0])
	i := skipEmailWSP(s, 0)

	for i < len(s) {
		var err *ParseError

		switch s[i] {
		case ';', ',':
			if phrase.Len() > 0 {
				a := &Address{}
				if err := parseAddrSpec(phrase.String(), &comment, a); err != nil {
					return nil, err
				}
				al.Append(a)
			} else if comment.Len() > 0 {
				// Attach an orphan comment to the previous entry.
				if last := al.last(); last != nil && last.Personal == "" && last.Mailbox != "" {
					last.Personal = comment.String()
				}
			}

			if s[i] == ';' {
				// Group terminator.
				al.Append(&Address{})
			}

			phrase.Reset()
			comment.Reset()
			i++

		case '(':
			if comment.Len() > 0 {
				comment.WriteByte(' ')
			}
			i, err = nextToken(s, i, &comment)
			if err != nil {
				return nil, err
			}

		case '"':
			if phrase.Len() > 0 {
				phrase.WriteByte(' ')
			}
			i, err = parseQuote(s, i+1, &phrase)
			if err != nil {
				return nil, err
			}

		case ':':
			al.Append(&Address{Mailbox: phrase.String(), Group: true})
			phrase.Reset()
			comment.Reset()
			i++

		case '<':
			a := &Address{Personal: phrase.String()}
			i, err = parseRouteAddr(s, i+1, &comment, a)
			if err != nil {
				return nil, err
			}
			al.Append(a)
			phrase.Reset()
			comment.Reset()

		default:
			if phrase.Len() > 0 && wsPending {
				phrase.WriteByte(' ')
			}
			if s[i] == '\\' {
				i++
				if i < len(s) {
					phrase.WriteByte(s[i])
					i++
				}
			}
			i, err = nextToken(s, i, &phrase)
			if err != nil {
				return nil, err
			}
		}

		wsPending = i < len(s) && isEmailWSP(s[i])
		i = skipEmailWSP(s, i)
	}

	if phrase.Len() > 0 {
		a := &Address{}
		if err := parseAddrSpec(phrase.String(), &comment, a); err != nil {
			return nil, err
		}
		al.Append(a)
	} else if comment.Len() > 0 {
		if last := al.last(); last != nil && last.Personal == "" && last.Mailbox != "" {
			last.Personal = comment.String()
		}
	}

	return al, nil
}

// ParseList2 is the lenient variant: simple addresses without personal
// names or grouping may be separated by whitespace or commas. It falls back
// to the strict parser when any syntax character appears.
func ParseList2(s string) (List, error) {
	if s == "" {
		return nil, nil
	}

	if !strings.ContainsAny(s, "\"<>():;,\\") {
		var al List
		for _, word := range strings.FieldsFunc(s, func(r rune) bool {
			return r == ' ' || r == '\t'
		}) {
			sub, err := ParseList(word)
			if err != nil {
				return nil, err
			}
			al = append(al, sub...)
		}
		return al, nil
	}

	return ParseList(s)
}

func (l List) last() *Address {
	if len(l) == 0 {
		return nil
	}
	return l[len(l)-1]
}
