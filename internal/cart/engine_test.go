package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mylagoscommunity/cart-service/pkg/enums"
	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[int64]Product
	calls    int
}

func newStubCatalog(products ...Product) *stubCatalog {
	c := &stubCatalog{products: map[int64]Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *stubCatalog) GetProduct(_ context.Context, id int64) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	p, ok := c.products[id]
	if !ok {
		return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

func (c *stubCatalog) ListProducts(context.Context) ([]Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	return out, nil
}

type stubRemote struct {
	mu      sync.Mutex
	nextID  int64
	items   []RemoteCartItem
	listErr error
	addErr  error
	updErr  error
	delErr  error

	adds    []AddCartItemInput
	updates []int64
	deletes []int64
}

func newStubRemote(items ...RemoteCartItem) *stubRemote {
	r := &stubRemote{nextID: 100}
	r.items = append(r.items, items...)
	return r
}

func (r *stubRemote) ListCartItems(_ context.Context, _ int64) ([]RemoteCartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]RemoteCartItem, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (r *stubRemote) AddCartItem(_ context.Context, input AddCartItemInput) (RemoteCartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adds = append(r.adds, input)
	if r.addErr != nil {
		return RemoteCartItem{}, r.addErr
	}
	for i := range r.items {
		if r.items[i].ProductID == input.ProductID {
			r.items[i].Quantity += input.Quantity
			return r.items[i], nil
		}
	}
	r.nextID++
	item := RemoteCartItem{ID: r.nextID, ProductID: input.ProductID, Quantity: input.Quantity}
	r.items = append(r.items, item)
	return item, nil
}

func (r *stubRemote) UpdateCartItem(_ context.Context, lineID int64, quantity int) (RemoteCartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, lineID)
	if r.updErr != nil {
		return RemoteCartItem{}, r.updErr
	}
	for i := range r.items {
		if r.items[i].ID == lineID {
			r.items[i].Quantity = quantity
			return r.items[i], nil
		}
	}
	return RemoteCartItem{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

func (r *stubRemote) DeleteCartItem(_ context.Context, lineID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, lineID)
	if r.delErr != nil {
		return r.delErr
	}
	for i := range r.items {
		if r.items[i].ID == lineID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *stubRemote) remoteCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.adds) + len(r.updates) + len(r.deletes)
}

type countingRecorder struct {
	mu         sync.Mutex
	loads      map[enums.LineSource]int
	fallbacks  int
	skipped    map[string]int
	failures   map[string]int
	migrations map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		loads:      map[enums.LineSource]int{},
		skipped:    map[string]int{},
		failures:   map[string]int{},
		migrations: map[string]int{},
	}
}

func (r *countingRecorder) ObserveLoad(source enums.LineSource, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads[source]++
}

func (r *countingRecorder) IncLoadFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

func (r *countingRecorder) IncLineSkipped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[reason]++
}

func (r *countingRecorder) IncRemoteFailure(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op]++
}

func (r *countingRecorder) IncMigration(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrations[outcome]++
}

type engineFixture struct {
	engine   *Engine
	catalog  *stubCatalog
	remote   *stubRemote
	guest    *MemoryGuestRepository
	guard    *MemoryMigrationGuard
	recorder *countingRecorder
}

var (
	tote   = Product{ID: 7, Name: "Ankara Tote", Price: 1000, Category: "Fashion"}
	butter = Product{ID: 9, Name: "Shea Butter", Price: 250, Category: "Beauty"}
	garri  = Product{ID: 11, Name: "Ijebu Garri", Price: 400, Category: "Groceries"}
)

const testSession = "sess-1"

func newEngineFixture(t *testing.T, remote *stubRemote) *engineFixture {
	t.Helper()
	if remote == nil {
		remote = newStubRemote()
	}
	f := &engineFixture{
		catalog:  newStubCatalog(tote, butter, garri),
		remote:   remote,
		guest:    NewMemoryGuestRepository(),
		guard:    NewMemoryMigrationGuard(),
		recorder: newCountingRecorder(),
	}
	engine, err := NewEngine(EngineParams{
		SessionID: testSession,
		Catalog:   f.catalog,
		Remote:    f.remote,
		Guest:     f.guest,
		Guard:     f.guard,
		Recorder:  f.recorder,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f.engine = engine
	return f
}

func (f *engineFixture) guestEntries(t *testing.T) []GuestEntry {
	t.Helper()
	entries, err := f.guest.Load(context.Background(), testSession)
	if err != nil {
		t.Fatalf("load guest: %v", err)
	}
	return entries
}

func (f *engineFixture) seedGuest(t *testing.T, entries ...GuestEntry) {
	t.Helper()
	if err := f.guest.Save(context.Background(), testSession, entries); err != nil {
		t.Fatalf("seed guest: %v", err)
	}
}

func assertTotals(t *testing.T, e *Engine) {
	t.Helper()
	snap := e.Snapshot()
	count, total := 0, int64(0)
	for _, line := range snap.Lines {
		count += line.Quantity
		total += line.Product.Price * int64(line.Quantity)
	}
	if snap.CartCount != count || e.CartCount() != count {
		t.Fatalf("cart count mismatch: snapshot %d engine %d want %d", snap.CartCount, e.CartCount(), count)
	}
	if snap.Total != total || e.Total() != total {
		t.Fatalf("total mismatch: snapshot %d engine %d want %d", snap.Total, e.Total(), total)
	}
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	t.Parallel()

	base := EngineParams{
		SessionID: "s",
		Catalog:   newStubCatalog(),
		Remote:    newStubRemote(),
		Guest:     NewMemoryGuestRepository(),
		Guard:     NewMemoryMigrationGuard(),
	}
	if _, err := NewEngine(base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]func(p *EngineParams){
		"session": func(p *EngineParams) { p.SessionID = "" },
		"catalog": func(p *EngineParams) { p.Catalog = nil },
		"remote":  func(p *EngineParams) { p.Remote = nil },
		"guest":   func(p *EngineParams) { p.Guest = nil },
		"guard":   func(p *EngineParams) { p.Guard = nil },
	}
	for name, mutate := range cases {
		params := base
		mutate(&params)
		if _, err := NewEngine(params); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestGuestAddMergesByProduct(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Guest())

	f.engine.AddItem(ctx, tote, 2)
	f.engine.AddItem(ctx, tote, 3)

	lines := f.engine.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	if lines[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", lines[0].Quantity)
	}
	if f.engine.Total() != 5000 {
		t.Fatalf("expected total 5000, got %d", f.engine.Total())
	}
	if lines[0].LineID() != -1 {
		t.Fatalf("expected local line id -1, got %d", lines[0].LineID())
	}
	if f.remote.remoteCalls() != 0 {
		t.Fatal("guest add must not touch the remote store")
	}
	entries := f.guestEntries(t)
	if len(entries) != 1 || entries[0].Quantity != 5 {
		t.Fatalf("unexpected guest entries %+v", entries)
	}
	assertTotals(t, f.engine)
}

func TestAddItemDefaultsQuantityAndIgnoresInvalidProduct(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Guest())

	f.engine.AddItem(ctx, butter, 0)
	f.engine.AddItem(ctx, butter, -4)
	f.engine.AddItem(ctx, Product{ID: 0, Name: "ghost"}, 3)

	lines := f.engine.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("expected one butter line with quantity 2, got %+v", lines)
	}
}

func TestGuestRemoveLastLine(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Guest())
	f.engine.AddItem(ctx, tote, 1)

	ref, err := ParseLineID(-1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f.engine.RemoveItem(ctx, ref)

	if len(f.engine.Lines()) != 0 {
		t.Fatal("expected empty cart")
	}
	if len(f.guestEntries(t)) != 0 {
		t.Fatal("expected empty guest storage")
	}
	assertTotals(t, f.engine)
}

func TestGuestUpdateQuantity(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Guest())
	f.engine.AddItem(ctx, tote, 1)
	f.engine.AddItem(ctx, butter, 1)

	f.engine.UpdateQuantity(ctx, LocalLine{Index: 1}, 6)
	lines := f.engine.Lines()
	if len(lines) != 2 || lines[1].Quantity != 6 || lines[1].Product.ID != butter.ID {
		t.Fatalf("unexpected lines %+v", lines)
	}

	f.engine.UpdateQuantity(ctx, LocalLine{Index: 0}, 0)
	lines = f.engine.Lines()
	if len(lines) != 1 || lines[0].Product.ID != butter.ID {
		t.Fatalf("expected only butter after zero update, got %+v", lines)
	}
	if lines[0].LineID() != -1 {
		t.Fatalf("expected positions to compact, got line id %d", lines[0].LineID())
	}

	f.engine.UpdateQuantity(ctx, LocalLine{Index: 0}, -3)
	if len(f.engine.Lines()) != 0 {
		t.Fatal("expected negative update to remove the line")
	}
	if f.remote.remoteCalls() != 0 {
		t.Fatal("local lines must never reach the remote store")
	}
}

func TestGuestUpdateUnknownIndexLeavesCart(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Guest())
	f.engine.AddItem(ctx, tote, 2)

	f.engine.UpdateQuantity(ctx, LocalLine{Index: 5}, 3)
	f.engine.RemoveItem(ctx, LocalLine{Index: 5})

	lines := f.engine.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}

func TestRemoteLineWhileGuestIsIgnored(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Guest())
	f.engine.AddItem(ctx, tote, 2)

	f.engine.RemoveItem(ctx, RemoteLine{RecordID: 1})
	f.engine.UpdateQuantity(ctx, RemoteLine{RecordID: 1}, 9)

	if f.remote.remoteCalls() != 0 {
		t.Fatal("unauthenticated session must not reach the remote store")
	}
	entries := f.guestEntries(t)
	if len(entries) != 1 || entries[0].Quantity != 2 {
		t.Fatalf("guest storage must be untouched, got %+v", entries)
	}
}

func TestAuthenticatedLoadSkipsCorruptAndMissingProducts(t *testing.T) {
	t.Parallel()

	remote := newStubRemote(
		RemoteCartItem{ID: 1, ProductID: tote.ID, Quantity: 2},
		RemoteCartItem{ID: 2, ProductID: 0, Quantity: 1},
		RemoteCartItem{ID: 3, ProductID: 404, Quantity: 1},
		RemoteCartItem{ID: 4, ProductID: butter.ID, Quantity: 4},
		RemoteCartItem{ID: 5, ProductID: -2, Quantity: 1},
	)
	f := newEngineFixture(t, remote)
	f.engine.SetIdentity(context.Background(), Authenticated(42))

	lines := f.engine.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %+v", lines)
	}
	if lines[0].LineID() != 1 || lines[1].LineID() != 4 {
		t.Fatalf("expected remote order preserved, got %d,%d", lines[0].LineID(), lines[1].LineID())
	}
	for _, line := range lines {
		if line.LineID() <= 0 || line.Ref.Source() != enums.LineSourceRemote {
			t.Fatalf("remote line must carry a positive id, got %+v", line)
		}
	}
	if f.recorder.skipped[SkipReasonInvalidProductRef] != 2 {
		t.Fatalf("expected two corrupt records skipped, got %v", f.recorder.skipped)
	}
	if f.recorder.skipped[SkipReasonProductUnavailable] != 1 {
		t.Fatalf("expected one unavailable product skipped, got %v", f.recorder.skipped)
	}
	if f.engine.IsLoading() {
		t.Fatal("loading flag must be reset")
	}
	assertTotals(t, f.engine)
}

func TestAuthenticatedLoadFallsBackToGuest(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.listErr = pkgerrors.New(pkgerrors.CodeDependency, "network down")
	f := newEngineFixture(t, remote)
	f.seedGuest(t, GuestEntry{ProductID: tote.ID, Product: tote, Quantity: 3})

	f.engine.SetIdentity(context.Background(), Authenticated(42))

	lines := f.engine.Lines()
	if len(lines) != 1 || lines[0].Quantity != 3 || lines[0].LineID() != -1 {
		t.Fatalf("expected stale guest data, got %+v", lines)
	}
	if f.engine.IsLoading() {
		t.Fatal("loading flag must be reset after fallback")
	}
	if f.recorder.fallbacks != 1 {
		t.Fatalf("expected one fallback, got %d", f.recorder.fallbacks)
	}
	if len(remote.adds) != 0 {
		t.Fatal("migration must wait for a successful remote load")
	}
	if f.engine.MigrationState() != enums.MigrationStateNotMigrated {
		t.Fatalf("unexpected migration state %s", f.engine.MigrationState())
	}

	remote.mu.Lock()
	remote.listErr = nil
	remote.mu.Unlock()
	f.engine.Load(context.Background())

	if len(remote.adds) != 1 {
		t.Fatalf("expected deferred migration after recovery, got %d adds", len(remote.adds))
	}
	if f.engine.MigrationState() != enums.MigrationStateMigrated {
		t.Fatalf("unexpected migration state %s", f.engine.MigrationState())
	}
}

func TestMigrationOnLogin(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Guest())
	f.engine.AddItem(ctx, tote, 2)
	f.engine.AddItem(ctx, butter, 1)

	f.engine.SetIdentity(ctx, Authenticated(42))

	if len(f.remote.items) != 2 {
		t.Fatalf("expected two remote records, got %+v", f.remote.items)
	}
	for _, add := range f.remote.adds {
		if add.UserID != 42 {
			t.Fatalf("unexpected user id %d", add.UserID)
		}
	}
	if len(f.guestEntries(t)) != 0 {
		t.Fatal("guest storage must be cleared after migration")
	}
	lines := f.engine.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %+v", lines)
	}
	for _, line := range lines {
		if line.Ref.Source() != enums.LineSourceRemote {
			t.Fatalf("expected remote lines after migration, got %+v", line)
		}
	}
	if f.engine.MigrationState() != enums.MigrationStateMigrated {
		t.Fatalf("unexpected migration state %s", f.engine.MigrationState())
	}
	if f.recorder.migrations[MigrationOutcomeMigrated] != 1 {
		t.Fatalf("unexpected migration outcomes %v", f.recorder.migrations)
	}
	assertTotals(t, f.engine)

	adds := len(f.remote.adds)
	f.engine.SetIdentity(ctx, Guest())
	f.engine.AddItem(ctx, garri, 1)
	f.engine.SetIdentity(ctx, Authenticated(42))
	f.engine.Migrate(ctx)

	if len(f.remote.adds) != adds {
		t.Fatalf("re-login must not migrate again: %d adds, want %d", len(f.remote.adds), adds)
	}
}

func TestMigrationSwallowsDuplicateFailures(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.addErr = pkgerrors.New(pkgerrors.CodeDependency, "duplicate cart item")
	f := newEngineFixture(t, remote)
	f.seedGuest(t,
		GuestEntry{ProductID: tote.ID, Product: tote, Quantity: 1},
		GuestEntry{ProductID: butter.ID, Product: butter, Quantity: 1},
	)

	f.engine.SetIdentity(context.Background(), Authenticated(42))

	if len(remote.adds) != 2 {
		t.Fatalf("expected every entry attempted, got %d", len(remote.adds))
	}
	if len(f.guestEntries(t)) != 0 {
		t.Fatal("guest storage must be cleared even after failed adds")
	}
	if f.recorder.migrations[MigrationOutcomePartial] != 1 {
		t.Fatalf("expected partial outcome, got %v", f.recorder.migrations)
	}
	if f.engine.MigrationState() != enums.MigrationStateMigrated {
		t.Fatalf("unexpected migration state %s", f.engine.MigrationState())
	}
}

func TestEmptyGuestCartConsumesGuard(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Authenticated(42))

	if f.recorder.migrations[MigrationOutcomeEmpty] != 1 {
		t.Fatalf("expected empty outcome, got %v", f.recorder.migrations)
	}
	state, _ := f.guard.State(ctx, testSession)
	if state != enums.MigrationStateMigrated {
		t.Fatalf("expected guard consumed, got %s", state)
	}
}

func TestAuthenticatedAddReloadsFromRemote(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Authenticated(42))

	f.engine.AddItem(ctx, tote, 2)

	lines := f.engine.Lines()
	if len(lines) != 1 || lines[0].LineID() <= 0 || lines[0].Quantity != 2 {
		t.Fatalf("expected canonical remote line, got %+v", lines)
	}
	if len(f.guestEntries(t)) != 1 {
		t.Fatal("add must write through to guest storage")
	}
}

func TestAddDuringPendingMigrationIsNotReplayed(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.listErr = pkgerrors.New(pkgerrors.CodeDependency, "network down")
	f := newEngineFixture(t, remote)
	ctx := context.Background()

	f.engine.SetIdentity(ctx, Authenticated(42))
	if f.engine.MigrationState() != enums.MigrationStateNotMigrated {
		t.Fatalf("migration must stay pending, got %s", f.engine.MigrationState())
	}

	remote.mu.Lock()
	remote.listErr = nil
	remote.mu.Unlock()
	f.engine.AddItem(ctx, tote, 2)
	f.engine.Load(ctx)

	if len(remote.adds) != 1 {
		t.Fatalf("expected a single remote add, got %+v", remote.adds)
	}
	if len(remote.items) != 1 || remote.items[0].Quantity != 2 {
		t.Fatalf("expected remote quantity 2, got %+v", remote.items)
	}
	lines := f.engine.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 || lines[0].Ref.Source() != enums.LineSourceRemote {
		t.Fatalf("expected one remote line of 2, got %+v", lines)
	}
	if f.engine.MigrationState() != enums.MigrationStateMigrated {
		t.Fatalf("unexpected migration state %s", f.engine.MigrationState())
	}
}

func TestAddDuringPendingMigrationFallsBackToGuest(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.listErr = pkgerrors.New(pkgerrors.CodeDependency, "network down")
	remote.addErr = pkgerrors.New(pkgerrors.CodeDependency, "network down")
	f := newEngineFixture(t, remote)
	ctx := context.Background()

	f.engine.SetIdentity(ctx, Authenticated(42))
	f.engine.AddItem(ctx, butter, 3)
	if entries := f.guestEntries(t); len(entries) != 1 || entries[0].Quantity != 3 {
		t.Fatalf("failed remote add must persist to guest storage, got %+v", entries)
	}

	remote.mu.Lock()
	remote.listErr = nil
	remote.addErr = nil
	remote.mu.Unlock()
	f.engine.Load(ctx)

	if len(remote.items) != 1 || remote.items[0].Quantity != 3 {
		t.Fatalf("expected migrated quantity 3, got %+v", remote.items)
	}
	if len(f.guestEntries(t)) != 0 {
		t.Fatal("guest storage must be cleared after migration")
	}
}

func TestAuthenticatedAddFailureShowsGuestState(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Authenticated(42))

	f.remote.mu.Lock()
	f.remote.addErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "token expired")
	f.remote.mu.Unlock()
	f.engine.AddItem(ctx, butter, 3)

	lines := f.engine.Lines()
	if len(lines) != 1 || lines[0].Quantity != 3 || lines[0].Ref.Source() != enums.LineSourceLocal {
		t.Fatalf("expected guest fallback line, got %+v", lines)
	}
	if f.recorder.failures[RemoteOpAdd] != 1 {
		t.Fatalf("expected counted add failure, got %v", f.recorder.failures)
	}
}

func TestAuthenticatedUpdateToZeroRemovesRemoteLine(t *testing.T) {
	t.Parallel()

	remote := newStubRemote(
		RemoteCartItem{ID: 1, ProductID: tote.ID, Quantity: 2},
		RemoteCartItem{ID: 2, ProductID: butter.ID, Quantity: 1},
	)
	f := newEngineFixture(t, remote)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Authenticated(42))
	before := len(f.engine.Lines())

	f.engine.UpdateQuantity(ctx, RemoteLine{RecordID: 1}, 0)

	if len(remote.deletes) != 1 || remote.deletes[0] != 1 {
		t.Fatalf("expected delete of record 1, got %v", remote.deletes)
	}
	if len(remote.updates) != 0 {
		t.Fatal("zero quantity must not issue an update")
	}
	if got := len(f.engine.Lines()); got != before-1 {
		t.Fatalf("expected %d lines, got %d", before-1, got)
	}
}

func TestAuthenticatedUpdateQuantity(t *testing.T) {
	t.Parallel()

	remote := newStubRemote(RemoteCartItem{ID: 1, ProductID: tote.ID, Quantity: 2})
	f := newEngineFixture(t, remote)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Authenticated(42))

	f.engine.UpdateQuantity(ctx, RemoteLine{RecordID: 1}, 7)

	lines := f.engine.Lines()
	if len(lines) != 1 || lines[0].Quantity != 7 {
		t.Fatalf("unexpected lines %+v", lines)
	}
	assertTotals(t, f.engine)
}

func TestRemoteMutationFailureStillReloads(t *testing.T) {
	t.Parallel()

	remote := newStubRemote(RemoteCartItem{ID: 1, ProductID: tote.ID, Quantity: 2})
	remote.delErr = pkgerrors.New(pkgerrors.CodeDependency, "timeout")
	remote.updErr = pkgerrors.New(pkgerrors.CodeDependency, "timeout")
	f := newEngineFixture(t, remote)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Authenticated(42))

	f.engine.RemoveItem(ctx, RemoteLine{RecordID: 1})
	f.engine.UpdateQuantity(ctx, RemoteLine{RecordID: 1}, 4)

	lines := f.engine.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("expected remote state unchanged, got %+v", lines)
	}
	if f.recorder.failures[RemoteOpDelete] != 1 || f.recorder.failures[RemoteOpUpdate] != 1 {
		t.Fatalf("unexpected failures %v", f.recorder.failures)
	}
}

func TestLocalLineWhileAuthenticatedStaysLocal(t *testing.T) {
	t.Parallel()

	remote := newStubRemote()
	remote.listErr = fmt.Errorf("offline")
	f := newEngineFixture(t, remote)
	f.seedGuest(t, GuestEntry{ProductID: tote.ID, Product: tote, Quantity: 1})
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Authenticated(42))

	f.engine.UpdateQuantity(ctx, LocalLine{Index: 0}, 5)

	if f.remote.remoteCalls() != 0 {
		t.Fatal("local line must never reach the remote store")
	}
	entries := f.guestEntries(t)
	if len(entries) != 1 || entries[0].Quantity != 5 {
		t.Fatalf("unexpected guest entries %+v", entries)
	}
}

func TestClearCart(t *testing.T) {
	t.Parallel()

	t.Run("guest erases storage", func(t *testing.T) {
		f := newEngineFixture(t, nil)
		ctx := context.Background()
		f.engine.SetIdentity(ctx, Guest())
		f.engine.AddItem(ctx, tote, 1)

		f.engine.ClearCart(ctx)

		if len(f.engine.Lines()) != 0 || f.engine.CartCount() != 0 {
			t.Fatal("expected empty cart")
		}
		if len(f.guestEntries(t)) != 0 {
			t.Fatal("expected guest storage erased")
		}
	})

	t.Run("authenticated keeps storage", func(t *testing.T) {
		remote := newStubRemote(RemoteCartItem{ID: 1, ProductID: tote.ID, Quantity: 1})
		f := newEngineFixture(t, remote)
		ctx := context.Background()
		f.engine.SetIdentity(ctx, Authenticated(42))
		f.seedGuest(t, GuestEntry{ProductID: butter.ID, Product: butter, Quantity: 1})

		f.engine.ClearCart(ctx)

		if len(f.engine.Lines()) != 0 {
			t.Fatal("expected empty in-memory cart")
		}
		if len(f.guestEntries(t)) != 1 {
			t.Fatal("authenticated clear must not erase guest storage")
		}
		if f.remote.remoteCalls() != 0 {
			t.Fatal("clear must not call the remote store")
		}
	})
}

func TestGuestLoadSkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	f.seedGuest(t,
		GuestEntry{ProductID: 0, Quantity: 1},
		GuestEntry{ProductID: tote.ID, Product: tote, Quantity: 2},
		GuestEntry{ProductID: butter.ID, Product: butter, Quantity: 0},
	)
	f.engine.SetIdentity(context.Background(), Guest())

	lines := f.engine.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected one valid line, got %+v", lines)
	}
	if lines[0].LineID() != -2 {
		t.Fatalf("expected storage position preserved in line id, got %d", lines[0].LineID())
	}
	if f.recorder.skipped[SkipReasonInvalidGuestEntry] != 2 {
		t.Fatalf("unexpected skipped %v", f.recorder.skipped)
	}
}

func TestSetIdentityUnchangedDoesNotReload(t *testing.T) {
	t.Parallel()

	remote := newStubRemote(RemoteCartItem{ID: 1, ProductID: tote.ID, Quantity: 1})
	f := newEngineFixture(t, remote)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Authenticated(42))
	calls := f.catalog.calls

	f.engine.SetIdentity(ctx, Authenticated(42))

	if f.catalog.calls != calls {
		t.Fatal("unchanged identity must not reload")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, nil)
	ctx := context.Background()
	f.engine.SetIdentity(ctx, Guest())
	f.engine.AddItem(ctx, tote, 1)

	snap := f.engine.Snapshot()
	snap.Lines[0].Quantity = 99

	if f.engine.Lines()[0].Quantity != 1 {
		t.Fatal("snapshot mutation leaked into engine state")
	}
}
