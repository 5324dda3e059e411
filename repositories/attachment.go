// Package repositories holds the session-scoped data stores backing the
// engine. Nothing here outlives the process: state must not persist
// beyond the active session, so badger runs in memory.
package repositories

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/gabriel-vasile/mimetype"
)

// AttachmentCache stores attachment bytes keyed by their reference name.
// The engine itself only carries references; the cache is the collaborator
// the presentation layer asks when it actually needs the content.
type AttachmentCache struct {
	db  *badger.DB
	log *slog.Logger
}

func NewAttachmentCache(log *slog.Logger) (*AttachmentCache, error) {
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("attachment cache: %w", err)
	}
	return &AttachmentCache{db: db, log: log}, nil
}

// Store records attachment bytes along with their sniffed MIME type.
// The key is "att:{name}"; the detected type lives under "mime:{name}".
func (c *AttachmentCache) Store(fileName string, data []byte) error {
	mime := mimetype.Detect(data).String()
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("att:"+fileName), data); err != nil {
			return err
		}
		return txn.Set([]byte("mime:"+fileName), []byte(mime))
	})
}

// Get returns the cached bytes and MIME type, or badger.ErrKeyNotFound
// when the attachment was never cached this session.
func (c *AttachmentCache) Get(fileName string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("att:" + fileName))
		if err != nil {
			return err
		}
		if data, err = item.ValueCopy(nil); err != nil {
			return err
		}
		mimeItem, err := txn.Get([]byte("mime:" + fileName))
		if err != nil {
			return err
		}
		raw, err := mimeItem.ValueCopy(nil)
		if err != nil {
			return err
		}
		mime = string(raw)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

func (c *AttachmentCache) Close() error {
	c.log.Debug("Closing attachment cache")
	return c.db.Close()
}
