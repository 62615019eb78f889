package crypt

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tidemail/go-mailcore/address"
)

type logRecorder struct {
	lines []string
}

func (r *logRecorder) Printf(format string, args ...interface{}) {
	r.lines = append(r.lines, format)
}

func TestInitClassic(t *testing.T) {
	resetForTest()
	rec := &logRecorder{}
	Init(false, rec)

	if !Registered(ProtocolPGP) || !Registered(ProtocolSMIME) {
		t.Fatal("classic modules not registered")
	}
	if len(rec.lines) != 0 {
		t.Errorf("unexpected diagnostics: %v", rec.lines)
	}
}

func TestInitGPGMEFallback(t *testing.T) {
	resetForTest()
	NewGPGMEModules = nil
	rec := &logRecorder{}
	Init(true, rec)

	if len(rec.lines) != 1 {
		t.Fatalf("want one warning, got %v", rec.lines)
	}
	if !Registered(ProtocolPGP) {
		t.Error("fallback should register the classic PGP module")
	}
}

func TestInitGPGME(t *testing.T) {
	resetForTest()
	inited := false
	NewGPGMEModules = func() (*Module, *Module) {
		pgp := &Module{
			Protocol: ProtocolPGP,
			Name:     "pgp gpgme",
			Init:     func() error { inited = true; return nil },
		}
		smime := &Module{Protocol: ProtocolSMIME, Name: "smime gpgme"}
		return pgp, smime
	}
	defer func() { NewGPGMEModules = nil }()

	rec := &logRecorder{}
	Init(true, rec)

	if !inited {
		t.Error("module Init not invoked")
	}
	if m := lookup(ProtocolPGP); m == nil || m.Name != "pgp gpgme" {
		t.Errorf("wrong PGP module selected: %v", m)
	}
	if len(rec.lines) != 0 {
		t.Errorf("unexpected diagnostics: %v", rec.lines)
	}
}

func TestRegisterOverrides(t *testing.T) {
	resetForTest()
	Register(&Module{Protocol: ProtocolPGP, Name: "first"})
	Register(&Module{Protocol: ProtocolPGP, Name: "second"})

	if m := lookup(ProtocolPGP); m.Name != "second" {
		t.Errorf("lookup returned %q, want the most recent registration", m.Name)
	}
}

func TestHas(t *testing.T) {
	resetForTest()
	Register(&Module{
		Protocol: ProtocolPGP,
		Functions: Functions{
			ValidPassphrase: func() bool { return true },
		},
	})

	if !Has(ProtocolPGP, SlotValidPassphrase) {
		t.Error("implemented slot reported missing")
	}
	if Has(ProtocolPGP, SlotDecryptMIME) {
		t.Error("nil slot reported present")
	}
	if Has(ProtocolSMIME, SlotValidPassphrase) {
		t.Error("unregistered protocol reported present")
	}
}

func TestDispatchUnsupported(t *testing.T) {
	resetForTest()
	Register(&Module{Protocol: ProtocolPGP})

	var out bytes.Buffer
	if err := DecryptMIME(ProtocolPGP, strings.NewReader(""), &out); err != ErrNotSupported {
		t.Errorf("got %v, want ErrNotSupported", err)
	}
	if err := VerifyOne(ProtocolSMIME, nil, nil); err != ErrNotSupported {
		t.Errorf("got %v, want ErrNotSupported", err)
	}
	if ValidPassphrase(ProtocolPGP) {
		t.Error("nil ValidPassphrase slot should report false")
	}

	for name, err := range map[string]error{
		"ApplicationHandler":    ApplicationHandler(ProtocolPGP, nil, &out),
		"EncryptedHandler":      EncryptedHandler(ProtocolPGP, nil, &out),
		"PGPEncryptMessage":     PGPEncryptMessage(nil, &out, "key", false, nil),
		"PGPTraditionalEncSign": PGPTraditionalEncSign(nil, &out, "key", SecSign),
		"PGPInvokeGetkeys":      PGPInvokeGetkeys(nil),
		"PGPInvokeImport":       PGPInvokeImport(nil),
		"PGPExtractKeys":        PGPExtractKeys(nil),
		"SMIMEGetKeys":          SMIMEGetKeys(nil),
		"SMIMEBuildEntity":      SMIMEBuildEntity(nil, &out, "cert"),
		"SMIMEInvokeImport":     SMIMEInvokeImport(nil),
	} {
		if err != ErrNotSupported {
			t.Errorf("%s: got %v, want ErrNotSupported", name, err)
		}
	}
	if _, err := PGPMakeKeyAttachment(); err != ErrNotSupported {
		t.Errorf("PGPMakeKeyAttachment: got %v, want ErrNotSupported", err)
	}
	if SMIMEVerifySender(nil, "x@y.example") {
		t.Error("nil SMIMEVerifySender slot should report false")
	}
	if got := SendMenu(ProtocolPGP, SecSign); got != SecSign {
		t.Errorf("nil SendMenu slot should pass flags through, got %v", got)
	}
}

// Every slot a module implements must be reachable through its dispatcher.
func TestDispatchRegistered(t *testing.T) {
	resetForTest()
	var calls []string
	note := func(name string) { calls = append(calls, name) }
	Register(&Module{
		Protocol: ProtocolPGP,
		Functions: Functions{
			ApplicationHandler: func(in io.Reader, out io.Writer) error {
				note("ApplicationHandler")
				return nil
			},
			EncryptedHandler: func(in io.Reader, out io.Writer) error {
				note("EncryptedHandler")
				return nil
			},
			SendMenu: func(current SecurityFlags) SecurityFlags {
				note("SendMenu")
				return current | SecEncrypt
			},
			PGPEncryptMessage: func(in io.Reader, out io.Writer, keylist string, sign bool, from *address.Address) error {
				note("PGPEncryptMessage")
				return nil
			},
			PGPMakeKeyAttachment: func() (string, error) {
				note("PGPMakeKeyAttachment")
				return "key.asc", nil
			},
			PGPTraditionalEncSign: func(in io.Reader, out io.Writer, keylist string, flags SecurityFlags) error {
				note("PGPTraditionalEncSign")
				return nil
			},
			PGPInvokeGetkeys: func(recipients address.List) error {
				note("PGPInvokeGetkeys")
				return nil
			},
			PGPInvokeImport: func(in io.Reader) error {
				note("PGPInvokeImport")
				return nil
			},
			PGPExtractKeys: func(in io.Reader) error {
				note("PGPExtractKeys")
				return nil
			},
		},
	})
	Register(&Module{
		Protocol: ProtocolSMIME,
		Functions: Functions{
			SMIMEGetKeys: func(env *address.Envelope) error {
				note("SMIMEGetKeys")
				return nil
			},
			SMIMEBuildEntity: func(in io.Reader, out io.Writer, certlist string) error {
				note("SMIMEBuildEntity")
				return nil
			},
			SMIMEInvokeImport: func(in io.Reader) error {
				note("SMIMEInvokeImport")
				return nil
			},
		},
	})

	var out bytes.Buffer
	if err := ApplicationHandler(ProtocolPGP, nil, &out); err != nil {
		t.Error(err)
	}
	if err := EncryptedHandler(ProtocolPGP, nil, &out); err != nil {
		t.Error(err)
	}
	if got := SendMenu(ProtocolPGP, SecSign); got != SecSign|SecEncrypt {
		t.Errorf("SendMenu = %v", got)
	}
	if err := PGPEncryptMessage(nil, &out, "key", true, nil); err != nil {
		t.Error(err)
	}
	if name, err := PGPMakeKeyAttachment(); err != nil || name != "key.asc" {
		t.Errorf("PGPMakeKeyAttachment = %q, %v", name, err)
	}
	if err := PGPTraditionalEncSign(nil, &out, "key", SecSign); err != nil {
		t.Error(err)
	}
	if err := PGPInvokeGetkeys(nil); err != nil {
		t.Error(err)
	}
	if err := PGPInvokeImport(nil); err != nil {
		t.Error(err)
	}
	if err := PGPExtractKeys(nil); err != nil {
		t.Error(err)
	}
	if err := SMIMEGetKeys(nil); err != nil {
		t.Error(err)
	}
	if err := SMIMEBuildEntity(nil, &out, "cert"); err != nil {
		t.Error(err)
	}
	if err := SMIMEInvokeImport(nil); err != nil {
		t.Error(err)
	}

	want := []string{
		"ApplicationHandler", "EncryptedHandler", "SendMenu",
		"PGPEncryptMessage", "PGPMakeKeyAttachment", "PGPTraditionalEncSign",
		"PGPInvokeGetkeys", "PGPInvokeImport", "PGPExtractKeys",
		"SMIMEGetKeys", "SMIMEBuildEntity", "SMIMEInvokeImport",
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestPassphraseCache(t *testing.T) {
	resetForTest()
	Init(false, &logRecorder{})

	if ValidPassphrase(ProtocolPGP) {
		t.Fatal("passphrase valid before being set")
	}
	SetPGPPassphrase("hunter2")
	if !ValidPassphrase(ProtocolPGP) {
		t.Fatal("passphrase invalid after being set")
	}

	VoidPassphrase(ProtocolPGP)
	if ValidPassphrase(ProtocolPGP) {
		t.Error("passphrase survives VoidPassphrase")
	}

	SetPGPPassphrase("hunter2")
	SetSMIMEPassphrase("swordfish")
	VoidAllPassphrases()
	if ValidPassphrase(ProtocolPGP) || ValidPassphrase(ProtocolSMIME) {
		t.Error("passphrase survives VoidAllPassphrases")
	}
}

func TestPassphraseExpiry(t *testing.T) {
	old := PassphraseTimeout
	PassphraseTimeout = time.Millisecond
	defer func() { PassphraseTimeout = old }()

	var cache passphraseCache
	cache.set("secret")
	time.Sleep(5 * time.Millisecond)
	if cache.valid() {
		t.Error("expired passphrase still valid")
	}
}

func TestCheckTraditional(t *testing.T) {
	resetForTest()
	Init(false, &logRecorder{})

	tests := []struct {
		name        string
		body        string
		justContent bool
		want        bool
	}{
		{"plain", "hello world\n", false, false},
		{"encrypted", "noise\n-----BEGIN PGP MESSAGE-----\n...\n", false, true},
		{"clearsigned", "-----BEGIN PGP SIGNED MESSAGE-----\nHash: SHA256\n", true, true},
		{"key_block", "-----BEGIN PGP PUBLIC KEY BLOCK-----\n", true, false},
		{"key_block_any", "-----BEGIN PGP PUBLIC KEY BLOCK-----\n", false, true},
		{"indented_marker", "  -----BEGIN PGP MESSAGE-----\n", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckTraditional(strings.NewReader(tc.body), tc.justContent)
			if got != tc.want {
				t.Errorf("CheckTraditional(%q, %v) = %v, want %v", tc.body, tc.justContent, got, tc.want)
			}
		})
	}
}

func TestSMIMEFindKeys(t *testing.T) {
	resetForTest()
	Init(false, &logRecorder{})

	recipients, err := address.ParseList("Jane <Jane@Example.COM>, Team: bob@work.example;")
	if err != nil {
		t.Fatal(err)
	}

	keys, err := FindKeys(ProtocolSMIME, recipients, false)
	if err != nil {
		t.Fatal(err)
	}
	if keys != "jane@example.com bob@work.example" {
		t.Errorf("got %q", keys)
	}

	// No usable recipients: hard failure normally, soft skip under oppenc.
	if _, err := FindKeys(ProtocolSMIME, nil, false); err == nil {
		t.Error("empty recipients should fail without oppenc")
	}
	keys, err = FindKeys(ProtocolSMIME, nil, true)
	if err != nil || keys != "" {
		t.Errorf("oppenc should return empty key list, got %q, %v", keys, err)
	}
}

func TestSMIMEVerifySender(t *testing.T) {
	resetForTest()
	Init(false, &logRecorder{})

	if !Has(ProtocolSMIME, SlotSMIMEVerifySender) {
		t.Fatal("classic module should implement sender verification")
	}

	env := &address.Envelope{
		From:   address.List{address.New("", "from@example.com")},
		Sender: address.List{address.New("", "sender@example.com")},
	}
	if !SMIMEVerifySender(env, "SENDER@example.com") {
		t.Error("Sender should match case-insensitively")
	}
	if SMIMEVerifySender(env, "from@example.com") {
		t.Error("Sender takes precedence over From when present")
	}

	env.Sender = nil
	if !SMIMEVerifySender(env, "from@example.com") {
		t.Error("From should match when Sender is absent")
	}
	if SMIMEVerifySender(nil, "x@y.example") {
		t.Error("nil envelope should never verify")
	}
}
