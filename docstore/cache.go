package docstore

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/hashicorp/golang-lru/v2/expirable"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

const phoneKeyPrefix = "phone:"

var (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

// Cached is a read-through LRU cache in front of a DocumentStore. Records
// are cached by id and by phone number; every write refreshes both entries.
// Callers always receive copies.
type Cached struct {
	inner auth.DocumentStore
	cache *expirable.LRU[string, *auth.UserRecord]
}

var (
	_ auth.DocumentStore = (*Cached)(nil)
	_ auth.UserWriter    = (*Cached)(nil)
)

// NewCached wraps inner. Non positive size or ttl fall back to the defaults.
func NewCached(inner auth.DocumentStore, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		inner: inner,
		cache: expirable.NewLRU[string, *auth.UserRecord](size, nil, ttl),
	}
}

// GetUserByID implements auth.DocumentStore.
func (c *Cached) GetUserByID(ctx context.Context, id string) (*auth.UserRecord, error) {
	if record, ok := c.cache.Get(id); ok {
		return record.Clone(), nil
	}
	record, err := c.inner.GetUserByID(ctx, id)
	if err != nil || record == nil {
		return record, err
	}
	c.store(record)
	return record.Clone(), nil
}

// FindUserByPhone implements auth.DocumentStore.
func (c *Cached) FindUserByPhone(ctx context.Context, phone string) (*auth.UserRecord, error) {
	if record, ok := c.cache.Get(phoneKeyPrefix + phone); ok {
		return record.Clone(), nil
	}
	record, err := c.inner.FindUserByPhone(ctx, phone)
	if err != nil || record == nil {
		return record, err
	}
	c.store(record)
	return record.Clone(), nil
}

// CreateUser implements auth.DocumentStore.
func (c *Cached) CreateUser(ctx context.Context, id, phone string) (*auth.UserRecord, error) {
	c.Invalidate(id, phone)
	record, err := c.inner.CreateUser(ctx, id, phone)
	if err != nil || record == nil {
		return record, err
	}
	c.store(record)
	return record.Clone(), nil
}

// UpdateUser implements auth.UserWriter. It fails when the wrapped store
// does not accept writes.
func (c *Cached) UpdateUser(ctx context.Context, record *auth.UserRecord) error {
	writer, ok := c.inner.(auth.UserWriter)
	if !ok {
		return goerrors.New("document store is read only", goerrors.CategoryOperation).
			WithTextCode("DOCUMENT_STORE_READ_ONLY").
			WithCode(goerrors.CodeInternal)
	}
	if record == nil {
		return writer.UpdateUser(ctx, record)
	}

	c.Invalidate(record.UserID, record.PhoneNumber)
	if err := writer.UpdateUser(ctx, record); err != nil {
		return err
	}
	c.store(record)
	return nil
}

// Invalidate drops the cached entries for id and phone.
func (c *Cached) Invalidate(id, phone string) {
	if id != "" {
		if old, ok := c.cache.Peek(id); ok && old.PhoneNumber != "" {
			c.cache.Remove(phoneKeyPrefix + old.PhoneNumber)
		}
		c.cache.Remove(id)
	}
	if phone != "" {
		c.cache.Remove(phoneKeyPrefix + phone)
	}
}

// Len returns the number of cache entries.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func (c *Cached) store(record *auth.UserRecord) {
	cp := record.Clone()
	c.cache.Add(cp.UserID, cp)
	if cp.PhoneNumber != "" {
		c.cache.Add(phoneKeyPrefix+cp.PhoneNumber, cp)
	}
}
