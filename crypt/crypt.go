// Package crypt routes cryptographic operations to pluggable backends.
//
// A backend registers a Module holding a table of optional functions for one
// protocol (PGP or S/MIME). Callers check Has before invoking an operation;
// invoking an unimplemented slot returns ErrNotSupported rather than
// panicking. The registry is populated during Init and read-only afterwards.
package crypt

import (
	"errors"
	"io"
	"log"

	"github.com/tidemail/go-mailcore/address"
)

// Protocol identifies a cryptographic protocol family.
type Protocol int

const (
	ProtocolPGP Protocol = 1 << iota
	ProtocolSMIME
)

func (p Protocol) String() string {
	switch p {
	case ProtocolPGP:
		return "PGP"
	case ProtocolSMIME:
		return "S/MIME"
	default:
		return "unknown"
	}
}

// ErrNotSupported is returned when no registered module implements the
// requested operation. Absent capability is not a failure; callers decide
// the fallback.
var ErrNotSupported = errors.New("crypt: operation not supported")

// SecurityFlags describe the requested protections on an outgoing message.
type SecurityFlags int

const (
	SecEncrypt SecurityFlags = 1 << iota
	SecSign
	SecOppEncrypt
	SecInline
)

// Functions is a module's operation table. Any slot may be nil.
type Functions struct {
	// Passphrase lifecycle.
	VoidPassphrase  func()
	ValidPassphrase func() bool

	// MIME handling.
	DecryptMIME        func(in io.Reader, out io.Writer) error
	ApplicationHandler func(in io.Reader, out io.Writer) error
	EncryptedHandler   func(in io.Reader, out io.Writer) error

	// Key discovery. Returns a space-separated key list for the given
	// recipients; with oppenc set, missing keys are not an error and
	// disable opportunistic encryption instead.
	FindKeys func(recipients address.List, oppenc bool) (string, error)

	// Signing and verification.
	SignMessage func(in io.Reader, out io.Writer, from *address.Address) error
	VerifyOne   func(signature, data io.Reader) error

	// Composition menu.
	SendMenu func(current SecurityFlags) SecurityFlags

	// PGP-specific.
	PGPEncryptMessage     func(in io.Reader, out io.Writer, keylist string, sign bool, from *address.Address) error
	PGPMakeKeyAttachment  func() (string, error)
	PGPCheckTraditional   func(in io.Reader, justContent bool) bool
	PGPTraditionalEncSign func(in io.Reader, out io.Writer, keylist string, flags SecurityFlags) error
	PGPInvokeGetkeys      func(recipients address.List) error
	PGPInvokeImport       func(in io.Reader) error
	PGPExtractKeys        func(in io.Reader) error

	// S/MIME-specific.
	SMIMEGetKeys      func(env *address.Envelope) error
	SMIMEVerifySender func(env *address.Envelope, signerMailbox string) bool
	SMIMEBuildEntity  func(in io.Reader, out io.Writer, certlist string) error
	SMIMEInvokeImport func(in io.Reader) error
}

// Module binds a protocol to an implementation.
type Module struct {
	Protocol Protocol
	Name     string
	// Init is invoked once when the module is selected at startup.
	Init func() error
	Functions
}

// Slot names an operation for capability checks.
type Slot int

const (
	SlotVoidPassphrase Slot = iota
	SlotValidPassphrase
	SlotDecryptMIME
	SlotApplicationHandler
	SlotEncryptedHandler
	SlotFindKeys
	SlotSignMessage
	SlotVerifyOne
	SlotSendMenu
	SlotPGPEncryptMessage
	SlotPGPMakeKeyAttachment
	SlotPGPCheckTraditional
	SlotPGPTraditionalEncSign
	SlotPGPInvokeGetkeys
	SlotPGPInvokeImport
	SlotPGPExtractKeys
	SlotSMIMEGetKeys
	SlotSMIMEVerifySender
	SlotSMIMEBuildEntity
	SlotSMIMEInvokeImport
)

// modules is kept in registration order with the newest first, so a later
// Register overrides an earlier module for the same protocol.
var modules []*Module

// Register prepends a module to the registry.
func Register(m *Module) {
	if m != nil {
		modules = append([]*Module{m}, modules...)
	}
}

// lookup returns the first module for the protocol, or nil.
func lookup(p Protocol) *Module {
	for _, m := range modules {
		if m.Protocol == p {
			return m
		}
	}
	return nil
}

// Registered reports whether any module serves the protocol.
func Registered(p Protocol) bool {
	return lookup(p) != nil
}

func (f *Functions) slot(s Slot) bool {
	switch s {
	case SlotVoidPassphrase:
		return f.VoidPassphrase != nil
	case SlotValidPassphrase:
		return f.ValidPassphrase != nil
	case SlotDecryptMIME:
		return f.DecryptMIME != nil
	case SlotApplicationHandler:
		return f.ApplicationHandler != nil
	case SlotEncryptedHandler:
		return f.EncryptedHandler != nil
	case SlotFindKeys:
		return f.FindKeys != nil
	case SlotSignMessage:
		return f.SignMessage != nil
	case SlotVerifyOne:
		return f.VerifyOne != nil
	case SlotSendMenu:
		return f.SendMenu != nil
	case SlotPGPEncryptMessage:
		return f.PGPEncryptMessage != nil
	case SlotPGPMakeKeyAttachment:
		return f.PGPMakeKeyAttachment != nil
	case SlotPGPCheckTraditional:
		return f.PGPCheckTraditional != nil
	case SlotPGPTraditionalEncSign:
		return f.PGPTraditionalEncSign != nil
	case SlotPGPInvokeGetkeys:
		return f.PGPInvokeGetkeys != nil
	case SlotPGPInvokeImport:
		return f.PGPInvokeImport != nil
	case SlotPGPExtractKeys:
		return f.PGPExtractKeys != nil
	case SlotSMIMEGetKeys:
		return f.SMIMEGetKeys != nil
	case SlotSMIMEVerifySender:
		return f.SMIMEVerifySender != nil
	case SlotSMIMEBuildEntity:
		return f.SMIMEBuildEntity != nil
	case SlotSMIMEInvokeImport:
		return f.SMIMEInvokeImport != nil
	default:
		return false
	}
}

// Has reports whether a module exists for the protocol and implements the
// slot.
func Has(p Protocol, s Slot) bool {
	m := lookup(p)
	return m != nil && m.Functions.slot(s)
}

// Logger is the destination for startup diagnostics.
type Logger interface {
	Printf(format string, args ...interface{})
}

// NewGPGMEModules, when non-nil, builds the GPGME-backed PGP and S/MIME
// modules. It is installed by an optional build of the gpgme bindings.
var NewGPGMEModules func() (pgp, smime *Module)

// Init populates the registry. With useGPGME set and GPGME available, the
// GPGME modules are registered and initialized; otherwise the classic
// command-line backends are used, with a warning when GPGME was requested.
func Init(useGPGME bool, logger Logger) {
	if logger == nil {
		logger = log.Default()
	}

	if useGPGME {
		if NewGPGMEModules != nil {
			pgp, smime := NewGPGMEModules()
			for _, m := range []*Module{pgp, smime} {
				if m == nil {
					continue
				}
				Register(m)
				if m.Init != nil {
					if err := m.Init(); err != nil {
						logger.Printf("crypt: %s init: %v", m.Name, err)
					}
				}
			}
			return
		}
		logger.Printf("crypt: GPGME support not available, using classic backends")
	}

	Register(newClassicPGP())
	Register(newClassicSMIME())
}

// VoidPassphrase forgets the cached passphrase for the protocol.
func VoidPassphrase(p Protocol) {
	if m := lookup(p); m != nil && m.Functions.VoidPassphrase != nil {
		m.Functions.VoidPassphrase()
	}
}

// VoidAllPassphrases forgets every cached passphrase.
func VoidAllPassphrases() {
	for _, m := range modules {
		if m.Functions.VoidPassphrase != nil {
			m.Functions.VoidPassphrase()
		}
	}
}

// ValidPassphrase reports whether a usable passphrase is cached (or can be
// obtained) for the protocol.
func ValidPassphrase(p Protocol) bool {
	if m := lookup(p); m != nil && m.Functions.ValidPassphrase != nil {
		return m.Functions.ValidPassphrase()
	}
	return false
}

// DecryptMIME decrypts a MIME part.
func DecryptMIME(p Protocol, in io.Reader, out io.Writer) error {
	if m := lookup(p); m != nil && m.Functions.DecryptMIME != nil {
		return m.Functions.DecryptMIME(in, out)
	}
	return ErrNotSupported
}

// FindKeys resolves recipient addresses to a key list.
func FindKeys(p Protocol, recipients address.List, oppenc bool) (string, error) {
	if m := lookup(p); m != nil && m.Functions.FindKeys != nil {
		return m.Functions.FindKeys(recipients, oppenc)
	}
	return "", ErrNotSupported
}

// SignMessage signs a message body.
func SignMessage(p Protocol, in io.Reader, out io.Writer, from *address.Address) error {
	if m := lookup(p); m != nil && m.Functions.SignMessage != nil {
		return m.Functions.SignMessage(in, out, from)
	}
	return ErrNotSupported
}

// VerifyOne verifies a single detached signature.
func VerifyOne(p Protocol, signature, data io.Reader) error {
	if m := lookup(p); m != nil && m.Functions.VerifyOne != nil {
		return m.Functions.VerifyOne(signature, data)
	}
	return ErrNotSupported
}

// CheckTraditional reports whether the body is an inline (non-MIME) PGP
// message.
func CheckTraditional(in io.Reader, justContent bool) bool {
	if m := lookup(ProtocolPGP); m != nil && m.Functions.PGPCheckTraditional != nil {
		return m.Functions.PGPCheckTraditional(in, justContent)
	}
	return false
}

// ApplicationHandler renders an application/pgp or application/pkcs7 part.
func ApplicationHandler(p Protocol, in io.Reader, out io.Writer) error {
	if m := lookup(p); m != nil && m.Functions.ApplicationHandler != nil {
		return m.Functions.ApplicationHandler(in, out)
	}
	return ErrNotSupported
}

// EncryptedHandler renders a multipart/encrypted part.
func EncryptedHandler(p Protocol, in io.Reader, out io.Writer) error {
	if m := lookup(p); m != nil && m.Functions.EncryptedHandler != nil {
		return m.Functions.EncryptedHandler(in, out)
	}
	return ErrNotSupported
}

// SendMenu lets the module adjust the security flags of an outgoing message.
// Without a module the flags pass through unchanged.
func SendMenu(p Protocol, current SecurityFlags) SecurityFlags {
	if m := lookup(p); m != nil && m.Functions.SendMenu != nil {
		return m.Functions.SendMenu(current)
	}
	return current
}

// PGPEncryptMessage encrypts a message body to the keys in keylist.
func PGPEncryptMessage(in io.Reader, out io.Writer, keylist string, sign bool, from *address.Address) error {
	if m := lookup(ProtocolPGP); m != nil && m.Functions.PGPEncryptMessage != nil {
		return m.Functions.PGPEncryptMessage(in, out, keylist, sign, from)
	}
	return ErrNotSupported
}

// PGPMakeKeyAttachment exports the user's public key as an attachable file.
func PGPMakeKeyAttachment() (string, error) {
	if m := lookup(ProtocolPGP); m != nil && m.Functions.PGPMakeKeyAttachment != nil {
		return m.Functions.PGPMakeKeyAttachment()
	}
	return "", ErrNotSupported
}

// PGPTraditionalEncSign encrypts or signs a message inline (non-MIME).
func PGPTraditionalEncSign(in io.Reader, out io.Writer, keylist string, flags SecurityFlags) error {
	if m := lookup(ProtocolPGP); m != nil && m.Functions.PGPTraditionalEncSign != nil {
		return m.Functions.PGPTraditionalEncSign(in, out, keylist, flags)
	}
	return ErrNotSupported
}

// PGPInvokeGetkeys fetches missing public keys for the recipients.
func PGPInvokeGetkeys(recipients address.List) error {
	if m := lookup(ProtocolPGP); m != nil && m.Functions.PGPInvokeGetkeys != nil {
		return m.Functions.PGPInvokeGetkeys(recipients)
	}
	return ErrNotSupported
}

// PGPInvokeImport imports keys from a message body into the keyring.
func PGPInvokeImport(in io.Reader) error {
	if m := lookup(ProtocolPGP); m != nil && m.Functions.PGPInvokeImport != nil {
		return m.Functions.PGPInvokeImport(in)
	}
	return ErrNotSupported
}

// PGPExtractKeys extracts key material attached to a message.
func PGPExtractKeys(in io.Reader) error {
	if m := lookup(ProtocolPGP); m != nil && m.Functions.PGPExtractKeys != nil {
		return m.Functions.PGPExtractKeys(in)
	}
	return ErrNotSupported
}

// SMIMEGetKeys fetches certificates for the envelope's recipients.
func SMIMEGetKeys(env *address.Envelope) error {
	if m := lookup(ProtocolSMIME); m != nil && m.Functions.SMIMEGetKeys != nil {
		return m.Functions.SMIMEGetKeys(env)
	}
	return ErrNotSupported
}

// SMIMEVerifySender reports whether signerMailbox matches the message
// sender. Without a module nothing verifies.
func SMIMEVerifySender(env *address.Envelope, signerMailbox string) bool {
	if m := lookup(ProtocolSMIME); m != nil && m.Functions.SMIMEVerifySender != nil {
		return m.Functions.SMIMEVerifySender(env, signerMailbox)
	}
	return false
}

// SMIMEBuildEntity wraps a message body in a pkcs7 envelope for certlist.
func SMIMEBuildEntity(in io.Reader, out io.Writer, certlist string) error {
	if m := lookup(ProtocolSMIME); m != nil && m.Functions.SMIMEBuildEntity != nil {
		return m.Functions.SMIMEBuildEntity(in, out, certlist)
	}
	return ErrNotSupported
}

// SMIMEInvokeImport imports a certificate from a message body.
func SMIMEInvokeImport(in io.Reader) error {
	if m := lookup(ProtocolSMIME); m != nil && m.Functions.SMIMEInvokeImport != nil {
		return m.Functions.SMIMEInvokeImport(in)
	}
	return ErrNotSupported
}

// resetForTest empties the registry.
func resetForTest() {
	modules = nil
}
