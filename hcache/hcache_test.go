package hcache_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemail/go-mailcore/address"
	"github.com/tidemail/go-mailcore/hcache"
)

func openCache(t *testing.T) *hcache.Cache {
	t.Helper()
	c, err := hcache.Open("", filepath.Join(t.TempDir(), "hcache"), "INBOX")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleEntry(t *testing.T) *hcache.Entry {
	t.Helper()
	from, err := address.ParseList("John Doe <john@example.com>")
	require.NoError(t, err)
	to, err := address.ParseList("jane@example.com, Team: bob@work.example;")
	require.NoError(t, err)
	return &hcache.Entry{
		Envelope: address.Envelope{
			From:      from,
			To:        to,
			Subject:   "quarterly numbers",
			MessageID: "<abc123@example.com>",
			Date:      time.Date(2023, 9, 25, 15, 4, 5, 0, time.UTC),
		},
		Size:        4096,
		Received:    time.Date(2023, 9, 25, 15, 5, 0, 0, time.UTC),
		Uidvalidity: 42,
	}
}

func TestFetchMiss(t *testing.T) {
	c := openCache(t)
	_, err := c.Fetch("1695654245.001")
	assert.True(t, errors.Is(err, hcache.ErrNotFound))
}

func TestStoreFetch(t *testing.T) {
	c := openCache(t)
	want := sampleEntry(t)

	require.NoError(t, c.Store("1695654245.001", want))

	got, err := c.Fetch("1695654245.001")
	require.NoError(t, err)

	assert.True(t, got.Envelope.From.Equal(want.Envelope.From))
	assert.True(t, got.Envelope.To.Equal(want.Envelope.To))
	assert.Equal(t, want.Envelope.Subject, got.Envelope.Subject)
	assert.Equal(t, want.Envelope.MessageID, got.Envelope.MessageID)
	assert.True(t, got.Envelope.Date.Equal(want.Envelope.Date))
	assert.Equal(t, want.Size, got.Size)
	assert.Equal(t, want.Uidvalidity, got.Uidvalidity)

	// Group structure survives serialization.
	assert.True(t, got.Envelope.To[1].Group)
}

func TestDelete(t *testing.T) {
	c := openCache(t)
	require.NoError(t, c.Store("msg", sampleEntry(t)))
	require.NoError(t, c.Delete("msg"))
	_, err := c.Fetch("msg")
	assert.True(t, errors.Is(err, hcache.ErrNotFound))

	// Deleting again is fine.
	assert.NoError(t, c.Delete("msg"))
}

func TestFolderNamespacing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hcache")

	inbox, err := hcache.Open("", path, "INBOX")
	require.NoError(t, err)
	require.NoError(t, inbox.Store("msg", sampleEntry(t)))
	require.NoError(t, inbox.Close())

	archive, err := hcache.Open("", path, "Archive")
	require.NoError(t, err)
	defer archive.Close()
	_, err = archive.Fetch("msg")
	assert.True(t, errors.Is(err, hcache.ErrNotFound), "folders must not share entries")
}

func TestStoreMessage(t *testing.T) {
	c := openCache(t)
	msg := "From: john@example.com\r\nSubject: hi\r\n\r\nbody\r\n"

	stored, err := c.StoreMessage("msg", strings.NewReader(msg), int64(len(msg)), 7)
	require.NoError(t, err)
	assert.Equal(t, "hi", stored.Envelope.Subject)

	got, err := c.Fetch("msg")
	require.NoError(t, err)
	require.Len(t, got.Envelope.From, 1)
	assert.Equal(t, "john@example.com", got.Envelope.From[0].Mailbox)
	assert.Equal(t, int64(len(msg)), got.Size)
	assert.Equal(t, uint32(7), got.Uidvalidity)
}

func TestReadEnvelope(t *testing.T) {
	msg := strings.Join([]string{
		"Return-Path: <bounce@lists.example>",
		"From: John Doe <john@example.com>",
		"To: jane@example.com,",
		"\tTeam: bob@work.example;",
		"Cc: not an address <<<",
		"Subject: hello",
		"Message-Id: <abc@example.com>",
		"In-Reply-To: <prev@example.com>",
		"Date: Mon, 25 Sep 2023 15:04:05 +0200",
		"",
		"body text",
		"",
	}, "\r\n")

	env, err := hcache.ReadEnvelope(strings.NewReader(msg))
	require.NoError(t, err)

	require.Len(t, env.From, 1)
	assert.Equal(t, "john@example.com", env.From[0].Mailbox)
	assert.Equal(t, "John Doe", env.From[0].Personal)

	// Folded To header: plain address plus a group.
	require.Len(t, env.To, 4)
	assert.True(t, env.To[1].Group)

	// The malformed Cc is dropped, not fatal.
	assert.Empty(t, env.Cc)

	assert.Equal(t, "hello", env.Subject)
	assert.Equal(t, "<abc@example.com>", env.MessageID)
	assert.Equal(t, "<prev@example.com>", env.InReplyTo)
	assert.Equal(t, 2023, env.Date.Year())
}
