package mailbox

import "strings"

// CompressSuffixes are the filename suffixes probed as compressed
// mailboxes. Applications append their own before probing.
var CompressSuffixes = []string{".gz", ".bz2", ".xz", ".zst"}

// IsCompressed reports whether the path carries a known compression
// suffix.
func IsCompressed(path string) bool {
	for _, suffix := range CompressSuffixes {
		if strings.HasSuffix(path, suffix) && len(path) > len(suffix) {
			return true
		}
	}
	return false
}
