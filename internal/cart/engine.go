package cart

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/mylagoscommunity/cart-service/pkg/enums"
	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
	"github.com/mylagoscommunity/cart-service/pkg/logger"
)

const (
	defaultLookupConcurrency = 4

	SkipReasonInvalidProductRef  = "invalid_product_ref"
	SkipReasonProductUnavailable = "product_unavailable"
	SkipReasonInvalidQuantity    = "invalid_quantity"
	SkipReasonInvalidGuestEntry  = "invalid_guest_entry"

	MigrationOutcomeMigrated = "migrated"
	MigrationOutcomePartial  = "partial"
	MigrationOutcomeEmpty    = "empty"
	MigrationOutcomeSkipped  = "skipped"

	RemoteOpList   = "list"
	RemoteOpAdd    = "add"
	RemoteOpUpdate = "update"
	RemoteOpDelete = "delete"
)

// EngineParams groups the collaborators of a session's cart engine.
type EngineParams struct {
	SessionID         string
	Catalog           ProductCatalog
	Remote            RemoteCartStore
	Guest             GuestCartRepository
	Guard             MigrationGuard
	Recorder          Recorder
	Logger            *logger.Logger
	LookupConcurrency int
}

// Engine presents one cart view per browser session and routes every
// mutation to guest storage or the remote store. Operations are serialized;
// Snapshot and IsLoading may be read concurrently.
type Engine struct {
	sessionID   string
	catalog     ProductCatalog
	remote      RemoteCartStore
	guest       GuestCartRepository
	guard       MigrationGuard
	recorder    Recorder
	logg        *logger.Logger
	lookupLimit int

	ops sync.Mutex

	mu               sync.RWMutex
	lines            []CartLine
	identity         Identity
	mounted          bool
	migrationState   enums.MigrationState
	pendingMigration bool
	lastLoadRemote   bool

	loading atomic.Bool
}

// NewEngine validates the collaborators and builds an unmounted engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.SessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if params.Remote == nil {
		return nil, fmt.Errorf("remote cart store required")
	}
	if params.Guest == nil {
		return nil, fmt.Errorf("guest cart repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("migration guard required")
	}
	recorder := params.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	limit := params.LookupConcurrency
	if limit <= 0 {
		limit = defaultLookupConcurrency
	}
	return &Engine{
		sessionID:      params.SessionID,
		catalog:        params.Catalog,
		remote:         params.Remote,
		guest:          params.Guest,
		guard:          params.Guard,
		recorder:       recorder,
		logg:           logg,
		lookupLimit:    limit,
		migrationState: enums.MigrationStateNotMigrated,
	}, nil
}

// SessionID returns the browser session owning the engine.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// SetIdentity applies the externally supplied authentication state. The
// first call mounts the cart; later calls only act when the identity changed.
// The first transition into an authenticated state arms the guest to remote
// migration, which runs after the next successful remote load.
func (e *Engine) SetIdentity(ctx context.Context, identity Identity) {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mu.Lock()
	prev := e.identity
	changed := !e.mounted || prev != identity
	e.identity = identity
	e.mounted = true
	if identity.Authenticated && !prev.Authenticated {
		e.pendingMigration = true
	}
	e.mu.Unlock()

	if !changed {
		return
	}
	e.load(ctx)
	e.maybeMigrate(ctx)
}

// Identity returns the identity the engine currently routes with.
func (e *Engine) Identity() Identity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.identity
}

// Load refreshes the in-memory cart from its backing store.
func (e *Engine) Load(ctx context.Context) {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.load(ctx)
	e.maybeMigrate(ctx)
}

// Migrate moves the guest cart into the remote store for an authenticated
// session. The guard makes it a one-shot: later calls are no-ops.
func (e *Engine) Migrate(ctx context.Context) {
	e.ops.Lock()
	defer e.ops.Unlock()

	identity := e.Identity()
	if !identity.Authenticated {
		return
	}
	e.migrate(e.logContext(ctx), identity)
}

// AddItem writes through to guest storage and, when authenticated, to the
// remote store. It never fails; guest storage is the fallback of record.
// While a login migration is pending a remote success skips the guest write
// so the migration does not replay the same item.
func (e *Engine) AddItem(ctx context.Context, product Product, quantity int) {
	e.ops.Lock()
	defer e.ops.Unlock()

	ctx = e.logContext(ctx)
	if product.ID <= 0 {
		e.logg.Warn(e.logg.WithField(ctx, "product_id", product.ID), "cart.add.invalid_product")
		return
	}
	if quantity < 1 {
		quantity = 1
	}

	entries := e.readGuest(ctx)
	entries = mergeGuestEntry(entries, product, quantity)

	identity := e.Identity()
	if identity.Authenticated {
		_, err := e.remote.AddCartItem(ctx, AddCartItemInput{
			UserID:    identity.UserID,
			ProductID: product.ID,
			Quantity:  quantity,
		})
		if err == nil {
			// A pending migration replays guest storage; the item is already remote.
			if !e.migrationPending() {
				e.writeGuest(ctx, entries)
			}
			e.load(ctx)
			return
		}
		e.remoteFailed(ctx, RemoteOpAdd, err)
	}

	e.writeGuest(ctx, entries)
	e.setLines(linesFromGuest(ctx, e.logg, e.recorder, entries), false)
}

// RemoveItem deletes the addressed line from its backing store.
func (e *Engine) RemoveItem(ctx context.Context, ref LineRef) {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.removeItem(e.logContext(ctx), ref)
}

// UpdateQuantity sets a line quantity; anything below one removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, ref LineRef, quantity int) {
	e.ops.Lock()
	defer e.ops.Unlock()

	ctx = e.logContext(ctx)
	if quantity < 1 {
		e.removeItem(ctx, ref)
		return
	}

	switch r := ref.(type) {
	case RemoteLine:
		if !e.Identity().Authenticated {
			e.rejectRemoteRef(ctx, r)
			return
		}
		if _, err := e.remote.UpdateCartItem(ctx, r.RecordID, quantity); err != nil {
			e.remoteFailed(ctx, RemoteOpUpdate, err)
		}
		e.load(ctx)
	case LocalLine:
		entries := e.readGuest(ctx)
		if r.Index < 0 || r.Index >= len(entries) {
			e.logg.Warn(e.logg.WithField(ctx, "line_id", r.LineID()), "cart.update.unknown_guest_line")
		} else {
			entries[r.Index].Quantity = quantity
			e.writeGuest(ctx, entries)
		}
		e.reloadGuest(ctx)
	default:
		e.logg.Warn(ctx, "cart.update.missing_line_ref")
	}
}

// ClearCart empties the in-memory cart immediately. Guest storage is erased
// only for unauthenticated sessions.
func (e *Engine) ClearCart(ctx context.Context) {
	e.ops.Lock()
	defer e.ops.Unlock()

	ctx = e.logContext(ctx)
	if !e.Identity().Authenticated {
		if err := e.guest.Clear(ctx, e.sessionID); err != nil {
			e.logg.WarnErr(ctx, "cart.clear.guest_failed", err)
		}
	}
	e.setLines(nil, e.lastLoadWasRemote())
}

// Snapshot returns a consistent copy of the cart state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	lines := make([]CartLine, len(e.lines))
	copy(lines, e.lines)
	return Snapshot{
		Lines:          lines,
		IsLoading:      e.loading.Load(),
		CartCount:      CartCount(lines),
		Total:          Total(lines),
		Identity:       e.identity,
		MigrationState: e.migrationState,
	}
}

// Lines returns a copy of the current lines.
func (e *Engine) Lines() []CartLine {
	return e.Snapshot().Lines
}

// CartCount is the sum of all line quantities.
func (e *Engine) CartCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return CartCount(e.lines)
}

// Total is the sum of price * quantity over all lines.
func (e *Engine) Total() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Total(e.lines)
}

// IsLoading reports whether a load is in flight.
func (e *Engine) IsLoading() bool {
	return e.loading.Load()
}

// MigrationState returns the last migration state observed by the engine.
func (e *Engine) MigrationState() enums.MigrationState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.migrationState
}

func (e *Engine) load(ctx context.Context) {
	e.loading.Store(true)
	defer e.loading.Store(false)

	ctx = e.logContext(ctx)
	start := time.Now()
	identity := e.Identity()

	if !identity.Authenticated {
		e.setLines(e.guestLines(ctx), false)
		e.recorder.ObserveLoad(enums.LineSourceLocal, time.Since(start).Seconds())
		return
	}

	lines, err := e.remoteLines(ctx, identity.UserID)
	if err != nil {
		e.remoteFailed(ctx, RemoteOpList, err)
		e.recorder.IncLoadFallback()
		e.setLines(e.guestLines(ctx), false)
		e.recorder.ObserveLoad(enums.LineSourceLocal, time.Since(start).Seconds())
		return
	}
	e.setLines(lines, true)
	e.recorder.ObserveLoad(enums.LineSourceRemote, time.Since(start).Seconds())
}

func (e *Engine) reloadGuest(ctx context.Context) {
	e.loading.Store(true)
	defer e.loading.Store(false)

	e.setLines(e.guestLines(ctx), false)
}

func (e *Engine) remoteLines(ctx context.Context, userID int64) ([]CartLine, error) {
	items, err := e.remote.ListCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	resolved := make([]*CartLine, len(items))
	var g errgroup.Group
	g.SetLimit(e.lookupLimit)
	for i, item := range items {
		itemCtx := e.logg.WithFields(ctx, map[string]any{
			"line_id":    item.ID,
			"product_id": item.ProductID,
		})
		if item.ProductID <= 0 {
			e.logg.Warn(itemCtx, "cart.load.invalid_product_ref")
			e.recorder.IncLineSkipped(SkipReasonInvalidProductRef)
			continue
		}
		if item.ID <= 0 || item.Quantity < 1 {
			e.logg.Warn(itemCtx, "cart.load.invalid_remote_record")
			e.recorder.IncLineSkipped(SkipReasonInvalidQuantity)
			continue
		}
		i, item := i, item
		g.Go(func() error {
			product, err := e.catalog.GetProduct(ctx, item.ProductID)
			if err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					e.logg.Debug(itemCtx, "cart.load.product_missing")
				} else {
					e.logg.WarnErr(itemCtx, "cart.load.product_lookup_failed", err)
				}
				e.recorder.IncLineSkipped(SkipReasonProductUnavailable)
				return nil
			}
			resolved[i] = &CartLine{
				Ref:      RemoteLine{RecordID: item.ID},
				Product:  product,
				Quantity: item.Quantity,
			}
			return nil
		})
	}
	_ = g.Wait()

	lines := make([]CartLine, 0, len(items))
	for _, line := range resolved {
		if line != nil {
			lines = append(lines, *line)
		}
	}
	return lines, nil
}

func (e *Engine) removeItem(ctx context.Context, ref LineRef) {
	switch r := ref.(type) {
	case RemoteLine:
		if !e.Identity().Authenticated {
			e.rejectRemoteRef(ctx, r)
			return
		}
		if err := e.remote.DeleteCartItem(ctx, r.RecordID); err != nil {
			e.remoteFailed(ctx, RemoteOpDelete, err)
		}
		e.load(ctx)
	case LocalLine:
		entries := e.readGuest(ctx)
		if r.Index < 0 || r.Index >= len(entries) {
			e.logg.Warn(e.logg.WithField(ctx, "line_id", r.LineID()), "cart.remove.unknown_guest_line")
		} else {
			entries = append(entries[:r.Index], entries[r.Index+1:]...)
			e.writeGuest(ctx, entries)
		}
		e.reloadGuest(ctx)
	default:
		e.logg.Warn(ctx, "cart.remove.missing_line_ref")
	}
}

// rejectRemoteRef handles a remote line addressed by an unauthenticated
// session: guest storage is never touched for a remote id.
func (e *Engine) rejectRemoteRef(ctx context.Context, ref RemoteLine) {
	e.logg.Warn(e.logg.WithField(ctx, "line_id", ref.RecordID), "cart.remote_line.unauthenticated")
	e.load(ctx)
}

func (e *Engine) maybeMigrate(ctx context.Context) {
	e.mu.RLock()
	pending := e.pendingMigration
	remoteOK := e.lastLoadRemote
	identity := e.identity
	e.mu.RUnlock()

	if !pending || !remoteOK || !identity.Authenticated {
		return
	}
	e.migrate(e.logContext(ctx), identity)
}

func (e *Engine) migrate(ctx context.Context, identity Identity) {
	began, err := e.guard.Begin(ctx, e.sessionID)
	if err != nil {
		e.logg.WarnErr(ctx, "cart.migration.guard_unavailable", err)
		return
	}
	if !began {
		state, err := e.guard.State(ctx, e.sessionID)
		if err != nil {
			e.logg.WarnErr(ctx, "cart.migration.guard_state_failed", err)
			state = enums.MigrationStateMigrated
		}
		e.mu.Lock()
		e.pendingMigration = false
		e.migrationState = state
		e.mu.Unlock()
		e.recorder.IncMigration(MigrationOutcomeSkipped)
		return
	}

	e.mu.Lock()
	e.pendingMigration = false
	e.migrationState = enums.MigrationStateMigrating
	e.mu.Unlock()

	entries := e.readGuest(ctx)
	var errs error
	attempted := 0
	for _, entry := range entries {
		if entry.ProductID <= 0 || entry.Quantity < 1 {
			continue
		}
		attempted++
		_, err := e.remote.AddCartItem(ctx, AddCartItemInput{
			UserID:    identity.UserID,
			ProductID: entry.ProductID,
			Quantity:  entry.Quantity,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %d: %w", entry.ProductID, err))
		}
	}

	outcome := MigrationOutcomeMigrated
	switch {
	case attempted == 0:
		outcome = MigrationOutcomeEmpty
	case errs != nil:
		outcome = MigrationOutcomePartial
		failed := len(multierr.Errors(errs))
		e.logg.WarnErr(e.logg.WithFields(ctx, map[string]any{
			"attempted": attempted,
			"failed":    failed,
		}), "cart.migration.partial", errs)
	}

	if len(entries) > 0 {
		if err := e.guest.Clear(ctx, e.sessionID); err != nil {
			e.logg.WarnErr(ctx, "cart.migration.guest_clear_failed", err)
		}
		e.load(ctx)
	}

	if err := e.guard.Complete(ctx, e.sessionID); err != nil {
		e.logg.WarnErr(ctx, "cart.migration.guard_complete_failed", err)
	}
	e.mu.Lock()
	e.migrationState = enums.MigrationStateMigrated
	e.mu.Unlock()

	e.recorder.IncMigration(outcome)
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"outcome":   outcome,
		"attempted": attempted,
	}), "cart.migration.done")
}

func (e *Engine) guestLines(ctx context.Context) []CartLine {
	return linesFromGuest(ctx, e.logg, e.recorder, e.readGuest(ctx))
}

func (e *Engine) readGuest(ctx context.Context) []GuestEntry {
	entries, err := e.guest.Load(ctx, e.sessionID)
	if err != nil {
		e.logg.WarnErr(ctx, "cart.guest.load_failed", err)
		return nil
	}
	return entries
}

func (e *Engine) writeGuest(ctx context.Context, entries []GuestEntry) {
	if err := e.guest.Save(ctx, e.sessionID, entries); err != nil {
		e.logg.WarnErr(ctx, "cart.guest.save_failed", err)
	}
}

func (e *Engine) remoteFailed(ctx context.Context, op string, err error) {
	e.recorder.IncRemoteFailure(op)
	e.logg.WarnErr(e.logg.WithField(ctx, "op", op), "cart.remote.failed", err)
}

func (e *Engine) setLines(lines []CartLine, fromRemote bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = lines
	e.lastLoadRemote = fromRemote
}

func (e *Engine) migrationPending() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pendingMigration
}

func (e *Engine) lastLoadWasRemote() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastLoadRemote
}

func (e *Engine) logContext(ctx context.Context) context.Context {
	return e.logg.WithSessionID(ctx, e.sessionID)
}

// mergeGuestEntry adds quantity to an existing entry for the product or
// appends a new one, keeping at most one entry per product id.
func mergeGuestEntry(entries []GuestEntry, product Product, quantity int) []GuestEntry {
	for i := range entries {
		if entries[i].ProductID == product.ID {
			entries[i].Quantity += quantity
			entries[i].Product = product
			return entries
		}
	}
	return append(entries, GuestEntry{
		ProductID: product.ID,
		Product:   product,
		Quantity:  quantity,
	})
}

// linesFromGuest maps guest entries to lines addressed by storage position.
func linesFromGuest(ctx context.Context, logg *logger.Logger, recorder Recorder, entries []GuestEntry) []CartLine {
	lines := make([]CartLine, 0, len(entries))
	for i, entry := range entries {
		if entry.ProductID <= 0 || entry.Quantity < 1 {
			logg.Warn(logg.WithFields(ctx, map[string]any{
				"position":   i,
				"product_id": entry.ProductID,
			}), "cart.guest.invalid_entry")
			recorder.IncLineSkipped(SkipReasonInvalidGuestEntry)
			continue
		}
		product := entry.Product
		if product.ID == 0 {
			product.ID = entry.ProductID
		}
		lines = append(lines, CartLine{
			Ref:      LocalLine{Index: i},
			Product:  product,
			Quantity: entry.Quantity,
		})
	}
	return lines
}
