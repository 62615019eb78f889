package mailbox

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// mhSequencesFile is the per-folder MH state file.
const mhSequencesFile = ".mh_sequences"

// Names of the sequences the MH backend maintains.
const (
	MHSeqUnseen  = "unseen"
	MHSeqFlagged = "flagged"
	MHSeqReplied = "replied"
)

// MHSequences holds the message-number sequences of one MH folder. Unknown
// sequence lines read from disk are preserved verbatim on rewrite.
type MHSequences struct {
	Unseen  []int
	Flagged []int
	Replied []int

	unknown []string
}

// ReadMHSequences parses dir's sequence file. A missing file yields empty
// sequences.
func ReadMHSequences(dir string) (*MHSequences, error) {
	s := &MHSequences{}

	f, err := os.Open(filepath.Join(dir, mhSequencesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("mailbox: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			s.unknown = append(s.unknown, line)
			continue
		}
		nums, err := parseMHRanges(rest)
		if err != nil {
			s.unknown = append(s.unknown, line)
			continue
		}
		switch name {
		case MHSeqUnseen:
			s.Unseen = nums
		case MHSeqFlagged:
			s.Flagged = nums
		case MHSeqReplied:
			s.Replied = nums
		default:
			s.unknown = append(s.unknown, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("mailbox: %w", err)
	}
	return s, nil
}

// Write rewrites dir's sequence file atomically: the new content goes to a
// temp file in the same directory which is then renamed over the original.
// A failed rename removes the temp file.
func (s *MHSequences) Write(dir string) error {
	tmp, err := os.CreateTemp(dir, mhSequencesFile+".tmp")
	if err != nil {
		return fmt.Errorf("mailbox: %w", err)
	}

	w := bufio.NewWriter(tmp)
	writeSeq := func(name string, nums []int) {
		if len(nums) == 0 {
			return
		}
		fmt.Fprintf(w, "%s: %s\n", name, formatMHRanges(nums))
	}
	writeSeq(MHSeqUnseen, s.Unseen)
	writeSeq(MHSeqFlagged, s.Flagged)
	writeSeq(MHSeqReplied, s.Replied)
	for _, line := range s.unknown {
		fmt.Fprintln(w, line)
	}

	if err := w.Flush(); err == nil {
		err = tmp.Close()
		if err == nil {
			err = os.Rename(tmp.Name(), filepath.Join(dir, mhSequencesFile))
		}
		if err == nil {
			return nil
		}
	} else {
		tmp.Close()
	}
	os.Remove(tmp.Name())
	return fmt.Errorf("mailbox: write sequences: %w", err)
}

// parseMHRanges parses a range list such as "1-5 7 12-14".
func parseMHRanges(s string) ([]int, error) {
	var nums []int
	for _, field := range strings.Fields(s) {
		lo, hi, isRange := strings.Cut(field, "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(hi)
			if err != nil {
				return nil, err
			}
		}
		if last < first {
			return nil, fmt.Errorf("backwards range %q", field)
		}
		for n := first; n <= last; n++ {
			nums = append(nums, n)
		}
	}
	return nums, nil
}

// formatMHRanges packs sorted message numbers into "N-M" ranges.
// Duplicates collapse.
func formatMHRanges(nums []int) string {
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)

	var sb strings.Builder
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] <= sorted[j]+1 {
			j++
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		if sorted[i] == sorted[j] {
			sb.WriteString(strconv.Itoa(sorted[i]))
		} else {
			fmt.Fprintf(&sb, "%d-%d", sorted[i], sorted[j])
		}
		i = j + 1
	}
	return sb.String()
}
