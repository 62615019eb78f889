package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// mmdfMagic separates messages in MMDF mailboxes.
var mmdfMagic = []byte{1, 1, 1, 1, '\n'}

// probeLocal classifies a filesystem path. Directories are inspected for
// maildir and MH markers; files are sniffed by content.
func probeLocal(path string) (Type, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return TypeUnknown, fmt.Errorf("mailbox: probe %s: %w", path, err)
	}

	if fi.IsDir() {
		for _, sub := range []string{"cur", "new", "tmp"} {
			if sfi, err := os.Stat(filepath.Join(path, sub)); err == nil && sfi.IsDir() {
				return TypeMaildir, nil
			}
		}
		if _, err := os.Stat(filepath.Join(path, mhSequencesFile)); err == nil {
			return TypeMH, nil
		}
		return TypeUnknown, ErrUnknownType
	}

	if !fi.Mode().IsRegular() {
		return TypeUnknown, ErrUnknownType
	}

	if IsCompressed(path) {
		return TypeCompressed, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return TypeUnknown, fmt.Errorf("mailbox: probe %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return TypeUnknown, fmt.Errorf("mailbox: probe %s: %w", path, err)
	}
	buf = buf[:n]

	if n == 0 {
		// An empty file is a valid, empty mbox.
		return TypeMbox, nil
	}
	if bytes.HasPrefix(buf, mmdfMagic) {
		return TypeMMDF, nil
	}
	line := buf
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		line = buf[:i]
	}
	if isMboxFrom(string(line)) {
		return TypeMbox, nil
	}
	return TypeUnknown, ErrUnknownType
}

// mboxDateLayouts cover the asctime-style timestamps found on mbox "From "
// separator lines.
var mboxDateLayouts = []string{
	"Mon Jan _2 15:04:05 2006",
	"Mon Jan _2 15:04:05 MST 2006",
	"Mon Jan _2 15:04:05 -0700 2006",
	"Mon Jan _2 15:04 2006",
}

// isMboxFrom reports whether line is an mbox message separator: "From ",
// an address-like token, and a date.
func isMboxFrom(line string) bool {
	rest, ok := strings.CutPrefix(line, "From ")
	if !ok {
		return false
	}
	rest = strings.TrimLeft(rest, " \t")
	i := strings.IndexAny(rest, " \t")
	if i <= 0 {
		return false
	}
	// rest[:i] is the return path token.
	date := strings.TrimSpace(rest[i:])
	for _, layout := range mboxDateLayouts {
		if _, err := time.Parse(layout, date); err == nil {
			return true
		}
	}
	return false
}

// tidySlash collapses duplicate slashes and "." segments: "a//b", "a/./b"
// and a trailing "/." all reduce. A trailing slash is dropped except on the
// root itself.
func tidySlash(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			// Swallow the run of slashes and any "./" segments after it.
			j := i
			for j < len(s) {
				if s[j] == '/' {
					j++
				} else if s[j] == '.' && (j+1 == len(s) || s[j+1] == '/') {
					j++
				} else {
					break
				}
			}
			i = j - 1
			b.WriteByte('/')
			continue
		}
		b.WriteByte(c)
	}
	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	if out == "" {
		out = "."
	}
	return out
}

// tidyDotdot resolves ".." segments textually. Leading ".." on a relative
// path is preserved; on an absolute path it cannot go above the root.
func tidyDotdot(s string) string {
	abs := strings.HasPrefix(s, "/")
	segs := strings.Split(s, "/")
	var out []string
	for _, seg := range segs {
		if seg == "" || seg == "." {
			continue
		}
		if seg == ".." {
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
				continue
			}
			if abs {
				continue
			}
		}
		out = append(out, seg)
	}
	joined := strings.Join(out, "/")
	if abs {
		return "/" + joined
	}
	if joined == "" {
		return "."
	}
	return joined
}

// tidyLocal applies the purely syntactic normalizations.
func tidyLocal(s string) string {
	if s == "" {
		return s
	}
	return tidyDotdot(tidySlash(s))
}

// canonLocal produces the canonical absolute form: home expansion, absolute
// path, symlinks resolved. The target must exist.
func canonLocal(s string, cfg *ResolveConfig) (string, error) {
	if s == "" {
		return "", errors.New("mailbox: empty path")
	}

	if s[0] == '~' {
		rest, ok := strings.CutPrefix(s, "~/")
		if !ok && s != "~" {
			// ~user expansion is not supported.
			return "", fmt.Errorf("mailbox: cannot expand %q", s)
		}
		home, err := cfg.home()
		if err != nil {
			return "", fmt.Errorf("mailbox: expand %q: %w", s, err)
		}
		if s == "~" {
			s = home
		} else {
			s = filepath.Join(home, rest)
		}
	}

	abs, err := filepath.Abs(s)
	if err != nil {
		return "", fmt.Errorf("mailbox: canon %s: %w", s, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("mailbox: canon %s: %w", s, err)
	}
	return tidyLocal(resolved), nil
}
