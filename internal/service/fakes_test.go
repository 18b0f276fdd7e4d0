package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"stock-ledger/internal/clock"
	"stock-ledger/internal/models"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

type memTxKey struct{}

// memStore is an in-memory Store. Transactions are serialized and roll back
// by restoring a snapshot, which is stricter than row locks but enough to
// exercise the services.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products     map[string]models.Product
	reservations map[string]models.Reservation
	customers    map[string]models.Customer
	order        map[string]int
	seq          int

	// hook, when set, runs before every write and can fail it.
	hook func(op, id string) error
}

type memSnapshot struct {
	products     map[string]models.Product
	reservations map[string]models.Reservation
	customers    map[string]models.Customer
}

func newMemStore() *memStore {
	return &memStore{
		products:     map[string]models.Product{},
		reservations: map[string]models.Reservation{},
		customers:    map[string]models.Customer{},
		order:        map[string]int{},
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memSnapshot{
		products:     make(map[string]models.Product, len(m.products)),
		reservations: make(map[string]models.Reservation, len(m.reservations)),
		customers:    make(map[string]models.Customer, len(m.customers)),
	}
	for k, v := range m.products {
		v.StockByPackage = v.StockByPackage.Clone()
		snap.products[k] = v
	}
	for k, v := range m.reservations {
		snap.reservations[k] = v
	}
	for k, v := range m.customers {
		snap.customers[k] = v
	}
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.products, m.reservations, m.customers = snap.products, snap.reservations, snap.customers
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) write(op, id string) error {
	if m.hook != nil {
		return m.hook(op, id)
	}
	return nil
}

func requireTx(ctx context.Context, op string) error {
	if ctx.Value(memTxKey{}) == nil {
		return fmt.Errorf("%s called outside a transaction", op)
	}
	return nil
}

func (m *memStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateProduct", p.ID); err != nil {
		return err
	}
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = testNow, testNow
	stored := *p
	stored.StockByPackage = p.StockByPackage.Clone()
	m.products[p.ID] = stored
	return nil
}

func (m *memStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	p.StockByPackage = p.StockByPackage.Clone()
	return &p, nil
}

func (m *memStore) GetProductForUpdate(ctx context.Context, id string) (*models.Product, error) {
	if err := requireTx(ctx, "GetProductForUpdate"); err != nil {
		return nil, err
	}
	return m.GetProduct(ctx, id)
}

func (m *memStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		p.StockByPackage = p.StockByPackage.Clone()
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) UpdateProductStock(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateProductStock", p.ID); err != nil {
		return err
	}
	cur, ok := m.products[p.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrProductNotFound, p.ID)
	}
	if cur.Version != p.Version {
		return models.ErrVersionConflict
	}
	cur.StockByPackage = p.StockByPackage.Clone()
	cur.LegacyQuantity250g = p.LegacyQuantity250g
	cur.Notes = p.Notes
	cur.Version++
	p.Version = cur.Version
	m.products[p.ID] = cur
	return nil
}

func (m *memStore) CreateReservation(ctx context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateReservation", r.ID); err != nil {
		return err
	}
	if _, ok := m.reservations[r.ID]; ok {
		return fmt.Errorf("duplicate reservation id %s", r.ID)
	}
	if _, ok := m.products[r.ProductID]; !ok {
		return fmt.Errorf("%w: %s", models.ErrProductNotFound, r.ProductID)
	}
	if _, ok := m.customers[r.CustomerID]; !ok {
		return fmt.Errorf("%w: %s", models.ErrCustomerNotFound, r.CustomerID)
	}
	r.Version = 1
	r.CreatedAt, r.UpdatedAt = testNow, testNow
	m.reservations[r.ID] = *r
	if _, ok := m.order[r.ID]; !ok {
		m.seq++
		m.order[r.ID] = m.seq
	}
	return nil
}

func (m *memStore) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrReservationNotFound, id)
	}
	return &r, nil
}

func (m *memStore) GetReservationForUpdate(ctx context.Context, id string) (*models.Reservation, error) {
	if err := requireTx(ctx, "GetReservationForUpdate"); err != nil {
		return nil, err
	}
	return m.GetReservation(ctx, id)
}

func (m *memStore) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateReservation", r.ID); err != nil {
		return err
	}
	cur, ok := m.reservations[r.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrReservationNotFound, r.ID)
	}
	if cur.Version != r.Version {
		return models.ErrVersionConflict
	}
	r.Version++
	r.CreatedAt = cur.CreatedAt
	m.reservations[r.ID] = *r
	return nil
}

func (m *memStore) DeleteReservation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteReservation", id); err != nil {
		return err
	}
	if _, ok := m.reservations[id]; !ok {
		return fmt.Errorf("%w: %s", models.ErrReservationNotFound, id)
	}
	delete(m.reservations, id)
	return nil
}

func (m *memStore) ListReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Reservation{}
	for _, r := range m.reservations {
		r := r
		if f.Matches(&r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReservationDate.Equal(out[j].ReservationDate) {
			return out[i].ReservationDate.After(out[j].ReservationDate)
		}
		return m.order[out[i].ID] < m.order[out[j].ID]
	})
	return out, nil
}

func (m *memStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = testNow
	m.customers[c.ID] = *c
	return nil
}

func (m *memStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	return &c, nil
}

func (m *memStore) GetCustomerForUpdate(ctx context.Context, id string) (*models.Customer, error) {
	if err := requireTx(ctx, "GetCustomerForUpdate"); err != nil {
		return nil, err
	}
	return m.GetCustomer(ctx, id)
}

func (m *memStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) DeleteCustomer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[id]; !ok {
		return fmt.Errorf("%w: %s", models.ErrCustomerNotFound, id)
	}
	delete(m.customers, id)
	for rid, r := range m.reservations {
		if r.CustomerID == id {
			delete(m.reservations, rid)
		}
	}
	return nil
}

// stockOf reads committed stock directly
func (m *memStore) stockOf(id, label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockByPackage[label]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, e models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Header().EventType)
	}
	return out
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]string{}}
}

func (f *fakeIdempotency) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.keys[key]; ok {
		return v, false, nil
	}
	f.keys[key] = ""
	return "", true, nil
}

func (f *fakeIdempotency) CompleteIdempotencyKey(ctx context.Context, key, result string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = result
	return nil
}

func (f *fakeIdempotency) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] == "" {
		delete(f.keys, key)
	}
	return nil
}

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]string
	count int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	f.count++
	token := fmt.Sprintf("t%d", f.count)
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	return nil
}

// fixture wires every service over one memStore
type fixture struct {
	store        *memStore
	publisher    *fakePublisher
	idempotency  *fakeIdempotency
	locker       *fakeLocker
	products     *ProductService
	reservations *ReservationService
	groups       *GroupService
	customers    *CustomerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:       newMemStore(),
		publisher:   &fakePublisher{},
		idempotency: newFakeIdempotency(),
		locker:      newFakeLocker(),
	}
	clk := clock.NewFixed(testNow)
	f.products = NewProductService(f.store, f.publisher, clk)
	f.reservations = NewReservationService(f.store, f.idempotency, f.publisher, clk, time.Hour)
	f.groups = NewGroupService(f.store, f.reservations, f.locker, time.Minute)
	f.customers = NewCustomerService(f.store)
	return f
}

func (f *fixture) product(t *testing.T, name string, stock models.StockByPackage) *models.Product {
	t.Helper()
	p, err := f.products.CreateProduct(context.Background(), &CreateProductRequest{
		Name:           name,
		Form:           models.FormWholeBean,
		StockByPackage: stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) customer(t *testing.T, name string) *models.Customer {
	t.Helper()
	c, err := f.customers.Create(context.Background(), &CreateCustomerRequest{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return c
}

func (f *fixture) reserve(t *testing.T, p *models.Product, c *models.Customer, label string, qty int) *models.Reservation {
	t.Helper()
	resp, err := f.reservations.Create(context.Background(), &CreateReservationRequest{
		ProductID:    p.ID,
		PackageLabel: label,
		Quantity:     qty,
		CustomerID:   c.ID,
	})
	require.NoError(t, err)
	return resp.Reservation
}
