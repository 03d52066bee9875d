package syncengine

import (
	"context"
	"fmt"

	"github.com/Awaneesh03/digital-life-dashboard/internal/outbox"
	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
	"github.com/Awaneesh03/digital-life-dashboard/internal/remote"
)

// CreateWithOffline creates a record durably regardless of connectivity.
//
// The record is written to the local store immediately under a temp id.
// When online, the real remote insert is attempted synchronously: on
// success the temp copy is replaced by the remote-confirmed record
// (carrying the issued id), which is returned. On failure, or when
// offline, a create entry is enqueued and the temp-id record is
// returned; the drain's success path later substitutes the issued id.
//
// A missing user is a silent no-op returning (nil, nil).
func (e *Engine) CreateWithOffline(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	user, err := e.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	local := rec.Clone()
	local.SetID(record.NewTempID())
	local["user_id"] = user.ID
	local.Touch()

	// Optimistic write first. A storage failure here must reach the UI;
	// we cannot claim the record exists anywhere.
	if err := e.store.PutContext(ctx, collection, local); err != nil {
		return nil, err
	}

	if e.monitor.IsOnline() {
		payload := local.Clone()
		delete(payload, "id")

		confirmed, err := e.remote.Insert(ctx, collection, payload)
		if err == nil {
			if err := e.adoptConfirmed(ctx, collection, local.ID(), confirmed); err != nil {
				return nil, err
			}
			e.publishState(ctx)
			return confirmed, nil
		}
		e.config.Logger.Printf("Direct insert into %s failed, queueing: %v", collection, err)
	}

	if err := e.enqueue(ctx, outbox.OpCreate, collection, local); err != nil {
		return nil, err
	}
	return local, nil
}

// UpdateWithOffline updates a record durably regardless of connectivity.
//
// The updated record is written to the local store immediately
// (optimistic) and returned in both paths; the caller never blocks on
// remote confirmation. When the synchronous remote update fails, or when
// offline, an update entry is enqueued.
func (e *Engine) UpdateWithOffline(ctx context.Context, collection, id string, updates record.Record) (record.Record, error) {
	user, err := e.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	updated := updates.Clone()
	updated.SetID(id)
	updated.Touch()

	if err := e.store.PutContext(ctx, collection, updated); err != nil {
		return nil, err
	}

	if e.monitor.IsOnline() {
		err := e.remote.Update(ctx, collection, id, updated)
		if err == nil || remote.IsNotFound(err) {
			e.publishState(ctx)
			return updated, nil
		}
		e.config.Logger.Printf("Direct update of %s/%s failed, queueing: %v", collection, id, err)
	}

	if err := e.enqueue(ctx, outbox.OpUpdate, collection, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteWithOffline removes a record locally and propagates the delete
// to the remote store, queueing it when offline or on failure. Deleting
// a record the remote store no longer has is treated as done.
func (e *Engine) DeleteWithOffline(ctx context.Context, collection, id string) error {
	user, err := e.identity.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil {
		return nil
	}

	if err := e.store.DeleteContext(ctx, collection, id); err != nil {
		return err
	}

	// A record that only ever existed locally has nothing to delete
	// remotely.
	if record.IsTempID(id) {
		return nil
	}

	if e.monitor.IsOnline() {
		err := e.remote.Delete(ctx, collection, id)
		if err == nil || remote.IsNotFound(err) {
			e.publishState(ctx)
			return nil
		}
		e.config.Logger.Printf("Direct delete of %s/%s failed, queueing: %v", collection, id, err)
	}

	return e.enqueue(ctx, outbox.OpDelete, collection, record.Record{"id": id})
}

// enqueue appends an outbox entry and, when online, kicks off a
// best-effort drain without blocking the caller.
func (e *Engine) enqueue(ctx context.Context, op outbox.Op, collection string, rec record.Record) error {
	if _, err := e.queue.Enqueue(ctx, op, collection, rec); err != nil {
		return err
	}
	e.publishState(ctx)

	if e.monitor.IsOnline() {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.Drain(e.ctx); err != nil {
				e.config.Logger.Printf("Triggered drain failed: %v", err)
			}
		}()
	}
	return nil
}
