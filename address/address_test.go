package address_test

import (
	"strings"
	"testing"

	"github.com/tidemail/go-mailcore/address"
)

func mustParse(t *testing.T, s string) address.List {
	t.Helper()
	l, err := address.ParseList(s)
	if err != nil {
		t.Fatalf("ParseList(%q): %v", s, err)
	}
	return l
}

func TestQualify(t *testing.T) {
	l := mustParse(t, "john, jane@already.example, Team: bob;")
	l.Qualify("host.example")

	checkList(t, l, []want{
		{"", "john@host.example", false},
		{"", "jane@already.example", false},
		{"", "Team", true},
		{"", "bob@host.example", false},
		{"", "", false},
	})
}

func TestDedupe(t *testing.T) {
	l := mustParse(t, "a@x.example, b@y.example, A@X.EXAMPLE, b@y.example")
	l.Dedupe()
	checkList(t, l, []want{
		{"", "a@x.example", false},
		{"", "b@y.example", false},
	})
}

func TestRemove(t *testing.T) {
	l := mustParse(t, "a@x.example, b@y.example, A@X.EXAMPLE")
	if !l.Remove("a@x.example") {
		t.Fatal("Remove reported nothing removed")
	}
	checkList(t, l, []want{{"", "b@y.example", false}})
	if l.Remove("nobody@z.example") {
		t.Error("Remove of absent mailbox reported a removal")
	}
}

func TestRemoveXrefs(t *testing.T) {
	l := mustParse(t, "a@x.example, b@y.example, c@z.example")
	ref := mustParse(t, "B@Y.EXAMPLE")
	l.RemoveXrefs(ref)
	checkList(t, l, []want{
		{"", "a@x.example", false},
		{"", "c@z.example", false},
	})
}

func TestCopyPrune(t *testing.T) {
	src := mustParse(t, "Empty:;, a@x.example, Full: b@y.example;")

	var pruned address.List
	pruned.Copy(src, true)
	checkList(t, pruned, []want{
		{"", "", false}, // terminator of the pruned empty group
		{"", "a@x.example", false},
		{"", "Full", true},
		{"", "b@y.example", false},
		{"", "", false},
	})

	// Deep copy: mutating the copy must not touch the source.
	pruned[1].Mailbox = "changed@x.example"
	if src[1].Mailbox != "a@x.example" {
		t.Error("copy aliases source")
	}
}

func TestSearchAndCmp(t *testing.T) {
	l := mustParse(t, "a@x.example, b@y.example")
	if !l.Search(address.New("", "A@X.EXAMPLE")) {
		t.Error("case-insensitive search failed")
	}
	if l.Search(address.New("", "z@z.example")) {
		t.Error("found absent mailbox")
	}
	if l.Search(&address.Address{}) {
		t.Error("empty needle should never match")
	}
}

func TestCountRecipients(t *testing.T) {
	l := mustParse(t, "Team: a@x.example, b@y.example;, c@z.example")
	if n := l.CountRecipients(); n != 3 {
		t.Errorf("got %d recipients, want 3", n)
	}
}

func TestWriteQuoting(t *testing.T) {
	a := address.New("Doe, John", "john@example.com")
	if got, want := a.String(), `"Doe, John" <john@example.com>`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	a = address.New(`He said "hi"`, "x@y.example")
	if got, want := a.String(), `"He said \"hi\"" <x@y.example>`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	a = address.New("Plain Name", "p@q.example")
	if got, want := a.String(), "Plain Name <p@q.example>"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteTerminator(t *testing.T) {
	// A lone terminator still renders, even without its group opener.
	if got := (address.List{{}}).String(); got != ";" {
		t.Errorf("terminator renders as %q, want %q", got, ";")
	}

	l := mustParse(t, "Team: bob@work.example;")
	if got, want := l.String(), "Team: bob@work.example;"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Slicing past the opener keeps the terminator on the wire.
	tail := l[1:]
	if got, want := tail.String(), "bob@work.example;"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteWrap(t *testing.T) {
	var l address.List
	for _, a := range []string{
		"alpha@one.example", "bravo@two.example", "charlie@three.example",
		"delta@four.example", "echo@five.example", "foxtrot@six.example",
	} {
		sub := mustParse(t, a)
		l = append(l, sub...)
	}

	out := l.WriteWrap("To")
	if !strings.HasPrefix(out, "To: ") {
		t.Fatalf("missing header prefix: %q", out)
	}
	if !strings.Contains(out, "\n\t") {
		t.Fatalf("expected folded output, got %q", out)
	}
	for _, line := range strings.Split(out, "\n") {
		// Folding happens after an entry overflows, so allow one entry of
		// slack past the limit.
		if len(line) > 74+len("charlie@three.example, ") {
			t.Errorf("line too long (%d): %q", len(line), line)
		}
	}

	// Unfolding must yield the same list.
	reparsed, err := address.ParseList(strings.TrimPrefix(strings.ReplaceAll(out, "\n\t", " "), "To: "))
	if err != nil {
		t.Fatal(err)
	}
	if !l.Equal(reparsed) {
		t.Errorf("unfolded reparse differs: %v", reparsed)
	}
}

func TestUsesUnicode(t *testing.T) {
	ascii := mustParse(t, "john@example.com")
	if ascii.UsesUnicode() {
		t.Error("pure ASCII list reported as unicode")
	}
	uni := address.List{address.New("", "john@bücher.example")}
	if !uni.UsesUnicode() {
		t.Error("unicode mailbox not detected")
	}
}

func TestValidMsgID(t *testing.T) {
	tests := []struct {
		id string
		ok bool
	}{
		{"<a@b>", true},
		{"<abc.123@mail.example.com>", true},
		{"", false},
		{"<a@>", false}, // too short
		{"a@b", false},
		{"<ab.cd>", false},
		{"<aé@b>", false},
	}
	for _, tc := range tests {
		if got := address.ValidMsgID(tc.id); got != tc.ok {
			t.Errorf("ValidMsgID(%q) = %v, want %v", tc.id, got, tc.ok)
		}
	}
}
