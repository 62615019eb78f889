// Package hcache caches parsed message headers in a key/value store so a
// mailbox can be reopened without re-reading every message.
//
// Entries are namespaced by folder and carry a schema version; entries
// written by an incompatible version read back as cache misses, never as
// corrupt data.
package hcache

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/textproto"

	"github.com/tidemail/go-mailcore/address"
	"github.com/tidemail/go-mailcore/store"
)

// schemaVersion is bumped whenever the serialized Entry layout changes.
const schemaVersion uint32 = 1

// ErrNotFound reports a cache miss: no entry, or an entry written by an
// incompatible schema version.
var ErrNotFound = store.ErrNotFound

// Entry is one cached header.
type Entry struct {
	Envelope    address.Envelope
	Size        int64
	Received    time.Time
	Uidvalidity uint32
}

// Cache is an open header cache for one folder.
type Cache struct {
	kv     store.Store
	folder string
}

// Open opens (or creates) a header cache at path using the named store
// backend; an empty backend name selects the default. The folder string
// namespaces keys so several folders can share one database.
func Open(backend, path, folder string) (*Cache, error) {
	kv, err := store.Open(backend, path, true)
	if err != nil {
		return nil, fmt.Errorf("hcache: %w", err)
	}
	return &Cache{kv: kv, folder: folder}, nil
}

func (c *Cache) key(name string) []byte {
	return []byte(c.folder + "/" + name)
}

// Fetch returns the cached entry for name, or ErrNotFound.
func (c *Cache) Fetch(name string) (*Entry, error) {
	raw, err := c.kv.Fetch(c.key(name))
	if err != nil {
		return nil, err
	}
	if len(raw) < 4 || binary.BigEndian.Uint32(raw) != schemaVersion {
		// Stale schema reads as a miss.
		return nil, ErrNotFound
	}
	var e Entry
	dec := gob.NewDecoder(bytes.NewReader(raw[4:]))
	if err := dec.Decode(&e); err != nil {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Store writes the entry under name, overwriting any previous entry.
func (c *Cache) Store(name string, e *Entry) error {
	var buf bytes.Buffer
	var ver [4]byte
	binary.BigEndian.PutUint32(ver[:], schemaVersion)
	buf.Write(ver[:])
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("hcache: encode: %w", err)
	}
	return c.kv.Store(c.key(name), buf.Bytes())
}

// Delete removes the entry for name. Deleting a missing entry is not an
// error.
func (c *Cache) Delete(name string) error {
	return c.kv.Delete(c.key(name))
}

// Close flushes and releases the underlying store.
func (c *Cache) Close() error {
	return c.kv.Close()
}

// StoreMessage parses the header section read from r and caches the
// resulting envelope under name.
func (c *Cache) StoreMessage(name string, r io.Reader, size int64, uidvalidity uint32) (*Entry, error) {
	env, err := ReadEnvelope(r)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Envelope:    *env,
		Size:        size,
		Received:    time.Now(),
		Uidvalidity: uidvalidity,
	}
	if err := c.Store(name, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ReadEnvelope parses the header section of a message into an Envelope.
// Individual malformed address fields are dropped rather than failing the
// whole header.
func ReadEnvelope(r io.Reader) (*address.Envelope, error) {
	br := bufio.NewReader(r)
	hdr, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("hcache: read header: %w", err)
	}

	env := &address.Envelope{}
	for _, f := range []struct {
		name string
		list *address.List
	}{
		{"Return-Path", &env.Return},
		{"From", &env.From},
		{"Sender", &env.Sender},
		{"Reply-To", &env.ReplyTo},
		{"To", &env.To},
		{"Cc", &env.Cc},
		{"Bcc", &env.Bcc},
		{"Mail-Followup-To", &env.MailFollowupTo},
	} {
		v := hdr.Get(f.name)
		if v == "" {
			continue
		}
		if l, err := address.ParseList(v); err == nil {
			*f.list = l
		}
	}

	env.Subject = hdr.Get("Subject")
	env.MessageID = hdr.Get("Message-Id")
	env.InReplyTo = hdr.Get("In-Reply-To")
	if v := hdr.Get("Date"); v != "" {
		if t, err := address.ParseDate(v); err == nil {
			env.Date = t
		}
	}

	return env, nil
}
