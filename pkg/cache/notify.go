package cache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/execgate/internal/logger"
	"github.com/marmos91/execgate/internal/telemetry"
	"github.com/marmos91/execgate/pkg/types"
)

// request tracks one NotifyReadInputObjects call: the keys still
// unresolved and the channel closed when the last one resolves.
//
// All fields are guarded by the cache mutex. done is closed exactly once,
// by whichever path removes the final pending key.
type request struct {
	epoch   types.EpochID
	pending map[types.InputKey]struct{}
	done    chan struct{}
}

// wildcardReg is one receiving-key registration in the by-id index. The
// key carries the threshold version: any write to the id at or above it
// resolves the registration.
type wildcardReg struct {
	req *request
	key types.InputKey
}

// waiterRegistry indexes pending requests two ways: by exact input key,
// and by object id alone for receiving keys (the "any future version of
// this id" class). The write path consults both indexes on every write
// instead of re-scanning all waiters.
//
// Not self-locking: every method must be called with the cache mutex held.
type waiterRegistry struct {
	exact    map[types.InputKey]map[*request]struct{}
	wildcard map[types.ObjectID][]wildcardReg
}

func newWaiterRegistry() waiterRegistry {
	return waiterRegistry{
		exact:    make(map[types.InputKey]map[*request]struct{}),
		wildcard: make(map[types.ObjectID][]wildcardReg),
	}
}

// requestCount returns the number of distinct requests with at least one
// pending key.
func (w *waiterRegistry) requestCount() int {
	seen := make(map[*request]struct{})
	for _, reqs := range w.exact {
		for req := range reqs {
			seen[req] = struct{}{}
		}
	}
	return len(seen)
}

// keyCount returns the number of (request, key) registrations.
func (w *waiterRegistry) keyCount() int {
	n := 0
	for _, reqs := range w.exact {
		n += len(reqs)
	}
	return n
}

// registerLocked adds req as a waiter on key. Receiving keys are
// additionally indexed by id so later versions can resolve them.
func (w *waiterRegistry) registerLocked(req *request, key types.InputKey, receiving bool) {
	reqs, ok := w.exact[key]
	if !ok {
		reqs = make(map[*request]struct{})
		w.exact[key] = reqs
	}
	reqs[req] = struct{}{}

	if receiving {
		w.wildcard[key.ID] = append(w.wildcard[key.ID], wildcardReg{req: req, key: key})
	}
}

// completeKeyLocked resolves key for req: removes the registration from
// both indexes, drops the key from the pending set, and closes done when
// the set empties. Idempotent per (req, key).
func (w *waiterRegistry) completeKeyLocked(req *request, key types.InputKey) {
	if _, ok := req.pending[key]; !ok {
		return
	}
	delete(req.pending, key)
	w.dropRegistrationLocked(req, key)
	if len(req.pending) == 0 {
		close(req.done)
	}
}

// deregisterLocked releases every remaining registration of req without
// resolving it. Called on caller cancellation so partial registrations
// never accumulate.
func (w *waiterRegistry) deregisterLocked(req *request) {
	for key := range req.pending {
		w.dropRegistrationLocked(req, key)
		delete(req.pending, key)
	}
}

func (w *waiterRegistry) dropRegistrationLocked(req *request, key types.InputKey) {
	if reqs, ok := w.exact[key]; ok {
		delete(reqs, req)
		if len(reqs) == 0 {
			delete(w.exact, key)
		}
	}

	regs := w.wildcard[key.ID]
	for i := 0; i < len(regs); {
		if regs[i].req == req && regs[i].key == key {
			regs[i] = regs[len(regs)-1]
			regs = regs[:len(regs)-1]
			continue
		}
		i++
	}
	if len(regs) == 0 {
		delete(w.wildcard, key.ID)
	} else {
		w.wildcard[key.ID] = regs
	}
}

// wakeExactLocked resolves key for every waiter registered on it that
// passes the filter. A nil filter matches all waiters.
func (w *waiterRegistry) wakeExactLocked(key types.InputKey, filter func(*request) bool) {
	reqs, ok := w.exact[key]
	if !ok {
		return
	}
	// Collect first: completeKeyLocked mutates the index being iterated.
	matched := make([]*request, 0, len(reqs))
	for req := range reqs {
		if filter == nil || filter(req) {
			matched = append(matched, req)
		}
	}
	for _, req := range matched {
		w.completeKeyLocked(req, key)
	}
}

// wakeWildcardLocked resolves every receiving-key registration on id whose
// threshold version is at or below the written version.
func (w *waiterRegistry) wakeWildcardLocked(id types.ObjectID, version types.Version) {
	regs := w.wildcard[id]
	if len(regs) == 0 {
		return
	}
	matched := make([]wildcardReg, 0, len(regs))
	for _, reg := range regs {
		if reg.key.Version <= version {
			matched = append(matched, reg)
		}
	}
	for _, reg := range matched {
		w.completeKeyLocked(reg.req, reg.key)
	}
}

// NotifyReadInputObjects suspends until every key in keys is available
// within epoch.
//
// Keys in the receiving set are satisfied by the requested version or any
// later version of the same id: a receive is addressed by the version at
// send time, and any later mutation proves the sent version existed and
// has since been superseded.
//
// The only error returned is ctx.Err() when the caller is cancelled (or a
// storage fault from the durable read-through). Cancellation deregisters
// every partial registration before returning.
//
// A caller released because a ConsensusStreamEnded marker covered one of
// its keys must treat "no object found" on the subsequent read as a
// terminal absent-input outcome, not as success.
func (c *AvailabilityCache) NotifyReadInputObjects(ctx context.Context, keys []types.InputKey, receiving map[types.InputKey]struct{}, epoch types.EpochID) error {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNotifyRead)
	defer span.End()
	telemetry.SetAttributes(ctx,
		telemetry.NumKeys(len(keys)),
		telemetry.Epoch(uint64(epoch)),
	)

	req := &request{
		epoch:   epoch,
		pending: make(map[types.InputKey]struct{}),
		done:    make(chan struct{}),
	}
	isReceiving := func(key types.InputKey) bool {
		_, ok := receiving[key]
		return ok
	}

	// Check-and-register, one atomic section. A write arriving after this
	// section finds the registration in place.
	c.mu.Lock()
	for _, key := range keys {
		if _, dup := req.pending[key]; dup {
			continue
		}
		if c.satisfiedLocked(key, isReceiving(key), epoch) {
			continue
		}
		req.pending[key] = struct{}{}
		c.waiters.registerLocked(req, key, isReceiving(key))
	}
	unresolved := make([]types.InputKey, 0, len(req.pending))
	for key := range req.pending {
		unresolved = append(unresolved, key)
	}
	waiters := c.waiters.requestCount()
	c.mu.Unlock()

	if len(unresolved) == 0 {
		if c.metrics != nil {
			c.metrics.ObserveNotifyRead(len(keys), true, time.Since(start))
		}
		return nil
	}

	if c.metrics != nil {
		c.metrics.RecordWaiters(waiters)
	}

	// Durable read-through happens after registration, so data that was
	// committed and evicted between the check above and this point still
	// resolves: either we find it in the store here, or the write that
	// produced it fired our registration.
	for _, key := range unresolved {
		satisfied, err := c.storeSatisfied(ctx, key, isReceiving(key), epoch)
		if err != nil {
			c.mu.Lock()
			c.waiters.deregisterLocked(req)
			remaining := c.waiters.requestCount()
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.RecordWaiters(remaining)
			}
			telemetry.RecordError(ctx, err)
			return err
		}
		if satisfied {
			c.mu.Lock()
			c.waiters.completeKeyLocked(req, key)
			c.mu.Unlock()
		}
	}

	// Correlation id for the suspend/release pair in the logs.
	waitID := uuid.NewString()
	telemetry.AddEvent(ctx, telemetry.EventSuspended, telemetry.NumKeys(len(unresolved)))
	logger.Debug("Waiting for input objects",
		logger.KeyWaitID, waitID,
		logger.KeyTraceID, telemetry.TraceID(ctx),
		logger.Epoch(uint64(epoch)),
		logger.KeyPendingKeys, len(unresolved),
	)

	select {
	case <-req.done:
		logger.Debug("Input objects available",
			logger.KeyWaitID, waitID,
			logger.KeyDurationMs, logger.Duration(start),
		)
		if c.metrics != nil {
			c.metrics.ObserveNotifyRead(len(keys), false, time.Since(start))
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		c.waiters.deregisterLocked(req)
		remaining := c.waiters.requestCount()
		c.mu.Unlock()
		logger.Debug("Wait cancelled",
			logger.KeyWaitID, waitID,
			logger.KeyDurationMs, logger.Duration(start),
		)
		if c.metrics != nil {
			c.metrics.RecordWaiters(remaining)
		}
		telemetry.RecordError(ctx, ctx.Err())
		return ctx.Err()
	}
}

// satisfiedLocked evaluates one key against in-memory state only.
func (c *AvailabilityCache) satisfiedLocked(key types.InputKey, receiving bool, epoch types.EpochID) bool {
	switch key.Kind {
	case types.KeyPackage:
		return c.packageVisibleLocked(key.ID) || types.IsSystemPackage(key.ID)

	default:
		// A sentinel version encodes a scheduling decision, not a write
		// that will ever occur: it is satisfied by definition.
		if key.Version.IsSentinel() {
			return true
		}
		if _, ok := c.entryLocked(objectKey{key.ID, key.Version}); ok {
			return true
		}
		if _, ok := c.markers[markerKey{epoch, key.ID, key.Version}]; ok {
			return true
		}
		if receiving {
			if latest, ok := c.latest[key.ID]; ok && latest >= key.Version {
				return true
			}
		}
		return false
	}
}

// storeSatisfied evaluates one key against the durable store.
func (c *AvailabilityCache) storeSatisfied(ctx context.Context, key types.InputKey, receiving bool, epoch types.EpochID) (bool, error) {
	switch key.Kind {
	case types.KeyPackage:
		return c.store.HasPackage(ctx, key.ID)

	default:
		if _, found, err := c.store.GetObject(ctx, key.ID, key.Version); err != nil {
			return false, err
		} else if found {
			return true, nil
		}
		if _, found, err := c.store.GetMarker(ctx, epoch, key.ID, key.Version); err != nil {
			return false, err
		} else if found {
			return true, nil
		}
		if receiving {
			latest, found, err := c.store.GetLatestObject(ctx, key.ID)
			if err != nil {
				return false, err
			}
			if found && latest.Version >= key.Version {
				return true, nil
			}
		}
		return false, nil
	}
}
