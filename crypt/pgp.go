package crypt

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"
)

// PassphraseTimeout is how long a cached passphrase stays valid. Zero
// disables caching entirely.
var PassphraseTimeout = 5 * time.Minute

// passphraseCache holds one secret with an expiry. Interactive prompting
// belongs to the application; it stores the answer here.
type passphraseCache struct {
	mu     sync.Mutex
	secret string
	expire time.Time
}

func (c *passphraseCache) set(secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secret = secret
	c.expire = time.Now().Add(PassphraseTimeout)
}

func (c *passphraseCache) valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secret == "" {
		return false
	}
	if time.Now().After(c.expire) {
		c.secret = ""
		return false
	}
	return true
}

func (c *passphraseCache) void() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secret = ""
	c.expire = time.Time{}
}

var pgpPassphrase passphraseCache

// SetPGPPassphrase caches the PGP passphrase for PassphraseTimeout.
func SetPGPPassphrase(secret string) {
	pgpPassphrase.set(secret)
}

// Armor markers for inline PGP detection.
const (
	pgpMessageMarker = "-----BEGIN PGP MESSAGE-----"
	pgpSignedMarker  = "-----BEGIN PGP SIGNED MESSAGE-----"
	pgpPublicMarker  = "-----BEGIN PGP PUBLIC KEY BLOCK-----"
)

// pgpCheckTraditional scans the body for armor markers. With justContent
// set, key blocks do not count: only an encrypted or clearsigned message
// qualifies.
func pgpCheckTraditional(in io.Reader, justContent bool) bool {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "-----BEGIN PGP ") {
			continue
		}
		switch line {
		case pgpMessageMarker, pgpSignedMarker:
			return true
		case pgpPublicMarker:
			if !justContent {
				return true
			}
		}
	}
	return false
}

// newClassicPGP builds the command-line PGP module. Operations that shell
// out to an external gpg are left unimplemented here; callers observe their
// absence through Has.
func newClassicPGP() *Module {
	return &Module{
		Protocol: ProtocolPGP,
		Name:     "pgp classic",
		Functions: Functions{
			VoidPassphrase:      pgpPassphrase.void,
			ValidPassphrase:     pgpPassphrase.valid,
			PGPCheckTraditional: pgpCheckTraditional,
		},
	}
}
