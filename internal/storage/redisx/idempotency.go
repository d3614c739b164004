// Package redisx keeps Idempotency-Key claims for order creation in Redis.
package redisx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// Values are "pending:<fingerprint>" while the order is being created and
// "<order id>:<fingerprint>" once it exists.
const (
	keyOrderCreate = "idem:order:create:%d:%s"
	pendingValue   = "pending"
)

var (
	// ErrInProgress is returned when another request holds the same key.
	ErrInProgress = errors.New("request with this idempotency key is in progress")
	// ErrKeyReused is returned when a key comes back with a different body.
	ErrKeyReused = errors.New("idempotency key was already used for a different request")
)

// NewClient returns a Redis client for addr.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Request identifies one idempotent order creation. Keys are private to
// the customer that sent them.
type Request struct {
	CustomerID  int64
	Key         string
	Fingerprint string
}

func (r Request) redisKey() string {
	return fmt.Sprintf(keyOrderCreate, r.CustomerID, r.Key)
}

// Idempotency maps client keys to the order they created.
type Idempotency struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewIdempotency returns a store whose entries expire after ttl.
func NewIdempotency(rdb redis.Cmdable, ttl time.Duration) *Idempotency {
	return &Idempotency{rdb: rdb, ttl: ttl}
}

// Claim reserves req for the caller. When the key already resolved to an
// order, Claim returns its id and claimed is false. A key seen with another
// fingerprint yields ErrKeyReused.
func (s *Idempotency) Claim(ctx context.Context, req Request) (orderID int64, claimed bool, err error) {
	k := req.redisKey()
	ok, err := s.rdb.SetNX(ctx, k, pendingValue+":"+req.Fingerprint, s.ttl).Result()
	if err != nil {
		return 0, false, errors.Wrap(err, "claim idempotency key")
	}
	if ok {
		return 0, true, nil
	}

	v, err := s.rdb.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired or released between SETNX and GET.
		return s.Claim(ctx, req)
	case err != nil:
		return 0, false, errors.Wrap(err, "read idempotency key")
	}

	state, fp, _ := strings.Cut(v, ":")
	if fp != req.Fingerprint {
		return 0, false, ErrKeyReused
	}
	if state == pendingValue {
		return 0, false, ErrInProgress
	}
	id, err := strconv.ParseInt(state, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "parse idempotency value %q", v)
	}
	return id, false, nil
}

// Complete binds req to orderID.
func (s *Idempotency) Complete(ctx context.Context, req Request, orderID int64) error {
	v := strconv.FormatInt(orderID, 10) + ":" + req.Fingerprint
	if err := s.rdb.Set(ctx, req.redisKey(), v, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "complete idempotency key")
	}
	return nil
}

// Release drops a claim so the client can retry with the same key.
func (s *Idempotency) Release(ctx context.Context, req Request) error {
	if err := s.rdb.Del(ctx, req.redisKey()).Err(); err != nil {
		return errors.Wrap(err, "release idempotency key")
	}
	return nil
}

// Ping checks connectivity.
func (s *Idempotency) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
