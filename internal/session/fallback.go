package session

import (
	"context"
	"errors"
	"time"

	"lead_intake_backend/platform/logger"
)

// DegradationRecorder counts operations absorbed by the fallback store.
type DegradationRecorder interface {
	RecordCacheFallback(operation string)
}

// FallbackKV routes every call to primary and serves it from fallback when
// primary errors. A nil primary means the cache is disabled and only the
// fallback is used. Cache failures are logged and never returned.
type FallbackKV struct {
	primary  KV
	fallback KV
	log      *logger.Logger
	recorder DegradationRecorder
}

var _ KV = (*FallbackKV)(nil)

// ErrCacheDisabled is reported by Ping when no primary backend is configured.
var ErrCacheDisabled = errors.New("session cache disabled; serving from memory")

func NewFallbackKV(primary, fallback KV, log *logger.Logger, recorder DegradationRecorder) *FallbackKV {
	if fallback == nil {
		fallback = NewMemoryKV()
	}
	return &FallbackKV{
		primary:  primary,
		fallback: fallback,
		log:      log,
		recorder: recorder,
	}
}

// Degraded reports whether the store runs without its primary backend.
func (f *FallbackKV) Degraded() bool {
	return f.primary == nil
}

func (f *FallbackKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.primary != nil {
		val, ok, err := f.primary.Get(ctx, key)
		if err == nil && ok {
			return val, true, nil
		}
		if err != nil {
			f.degrade("get", err)
		}
		// a primary miss may still be covered by a write made during an outage
	}
	return f.fallback.Get(ctx, key)
}

func (f *FallbackKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.primary != nil {
		err := f.primary.Set(ctx, key, value, ttl)
		if err == nil {
			// an outage-era copy must not resurface if primary later loses the key
			_ = f.fallback.Delete(ctx, key)
			return nil
		}
		f.degrade("set", err)
	}
	return f.fallback.Set(ctx, key, value, ttl)
}

func (f *FallbackKV) Delete(ctx context.Context, key string) error {
	// the key may live in either backend after an outage
	fbErr := f.fallback.Delete(ctx, key)
	if f.primary != nil {
		if err := f.primary.Delete(ctx, key); err != nil {
			f.degrade("delete", err)
		}
	}
	return fbErr
}

// Ping reports the primary's health for readiness checks. Session operations
// keep working through the fallback either way.
func (f *FallbackKV) Ping(ctx context.Context) error {
	if f.Degraded() {
		return ErrCacheDisabled
	}
	return f.primary.Ping(ctx)
}

func (f *FallbackKV) degrade(op string, err error) {
	if f.log != nil {
		f.log.CacheDegraded(op, err)
	}
	if f.recorder != nil {
		f.recorder.RecordCacheFallback(op)
	}
}
