package order_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/storefront-orders/internal/catalog"
	"github.com/vasiliy-maslov/storefront-orders/internal/customer"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
)

type memoryCatalog struct {
	products map[string]catalog.Product
	variants map[string]catalog.Variant
	err      error
}

func (m *memoryCatalog) GetProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]catalog.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memoryCatalog) GetVariants(ctx context.Context, ids []string) (map[string]catalog.Variant, error) {
	out := make(map[string]catalog.Variant)
	for _, id := range ids {
		if v, ok := m.variants[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func testCatalog() *memoryCatalog {
	return &memoryCatalog{
		products: map[string]catalog.Product{
			"tee":     {ID: "tee", Title: "Classic Tee", Sizes: []string{"S", "M", "L"}, Colors: []string{"Black", "White"}, FulfillmentPartner: strPtr("qikink")},
			"hoodie":  {ID: "hoodie", Title: "Heavy Hoodie", Sizes: []string{"M", "L", "XL"}, Colors: []string{"Grey"}, FulfillmentPartner: strPtr("qikink")},
			"mug":     {ID: "mug", Title: "Mug", Sizes: []string{"One Size"}, Colors: []string{"White"}, FulfillmentPartner: strPtr("printrove")},
			"sticker": {ID: "sticker", Title: "Sticker", Sizes: []string{"One Size"}, Colors: []string{"Multi"}},
		},
		variants: map[string]catalog.Variant{
			"tee-m-black": {ID: "tee-m-black", ProductID: "tee", Size: "M", Color: "Black"},
		},
	}
}

type memoryOrders struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*order.Order
	items    map[uuid.UUID][]order.Item
	payments map[uuid.UUID]*order.Payment
	legacy   map[uuid.UUID]*customer.Address
	history  []order.StatusChange

	insertItemsErr error
	deleteErr      error
	historyErr     error
	paymentErr     error
	deleted        []uuid.UUID
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{
		orders:   make(map[uuid.UUID]*order.Order),
		items:    make(map[uuid.UUID][]order.Item),
		payments: make(map[uuid.UUID]*order.Payment),
		legacy:   make(map[uuid.UUID]*customer.Address),
	}
}

func (m *memoryOrders) InsertOrder(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memoryOrders) InsertItems(ctx context.Context, orderID uuid.UUID, items []order.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertItemsErr != nil {
		return m.insertItemsErr
	}
	m.items[orderID] = append([]order.Item(nil), items...)
	return nil
}

func (m *memoryOrders) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.orders[id]; !ok {
		return order.ErrOrderNotFound
	}
	delete(m.orders, id)
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memoryOrders) byNumber(number string) *order.Order {
	for _, o := range m.orders {
		if o.Number == number {
			return o
		}
	}
	return nil
}

func (m *memoryOrders) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o := m.byNumber(number); o != nil {
		cp := *o
		return &cp, nil
	}
	return nil, order.ErrOrderNotFound
}

func (m *memoryOrders) GetItems(ctx context.Context, orderID uuid.UUID) ([]order.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]order.Item{}, m.items[orderID]...), nil
}

func (m *memoryOrders) GetPayment(ctx context.Context, orderID uuid.UUID) (*order.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paymentErr != nil {
		return nil, m.paymentErr
	}
	if p, ok := m.payments[orderID]; ok {
		return p, nil
	}
	return nil, order.ErrPaymentNotFound
}

func (m *memoryOrders) GetLegacyAddress(ctx context.Context, orderID uuid.UUID) (*customer.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.legacy[orderID]; ok {
		return a, nil
	}
	return nil, order.ErrAddressNotFound
}

func (m *memoryOrders) UpdateShipment(ctx context.Context, id uuid.UUID, upd order.ShipmentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = upd.Status
	if upd.ShippingPartner != nil {
		o.ShippingPartner = upd.ShippingPartner
	}
	if upd.TrackingNumber != nil {
		o.TrackingNumber = upd.TrackingNumber
	}
	if upd.TrackingURL != nil {
		o.TrackingURL = upd.TrackingURL
	}
	if upd.ShippedAt != nil {
		o.ShippedAt = upd.ShippedAt
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	return nil
}

func (m *memoryOrders) AppendStatusHistory(ctx context.Context, change order.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.history = append(m.history, change)
	return nil
}

func (m *memoryOrders) UpdateFulfillmentPartner(ctx context.Context, id uuid.UUID, partner *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.FulfillmentPartner = partner
	return nil
}

func (m *memoryOrders) UpdatePartnerOrderID(ctx context.Context, id uuid.UUID, partnerOrderID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PartnerOrderID = partnerOrderID
	return nil
}

type memoryCustomers struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*customer.Customer

	getErr error
	reads  int
}

func newMemoryCustomers(seed ...*customer.Customer) *memoryCustomers {
	m := &memoryCustomers{customers: make(map[uuid.UUID]*customer.Customer)}
	for _, c := range seed {
		m.customers[c.ID] = c
	}
	return m
}

func (m *memoryCustomers) find(match func(*customer.Customer) bool) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, customer.ErrCustomerNotFound
}

func (m *memoryCustomers) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	m.mu.Lock()
	m.reads++
	getErr := m.getErr
	m.mu.Unlock()
	if getErr != nil {
		return nil, getErr
	}
	return m.find(func(c *customer.Customer) bool { return c.ID == id })
}

func (m *memoryCustomers) GetByAuthID(ctx context.Context, authID string) (*customer.Customer, error) {
	return m.find(func(c *customer.Customer) bool { return c.AuthID != nil && *c.AuthID == authID })
}

func (m *memoryCustomers) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return m.find(func(c *customer.Customer) bool { return c.Email == email })
}

func (m *memoryCustomers) Create(ctx context.Context, c *customer.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.Must(uuid.NewV4())
	}
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *memoryCustomers) FillMissing(ctx context.Context, id uuid.UUID, patch customer.Patch) error {
	return nil
}

type sequenceNumbers struct {
	mu  sync.Mutex
	seq int64
	err error
}

func (s *sequenceNumbers) Next(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return order.FormatNumber("ORD", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), s.seq), nil
}

type recordingCache struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (r *recordingCache) Invalidate(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
	return r.err
}

type stubRenderer struct {
	got *order.InvoiceSource
}

func (s *stubRenderer) Render(src order.InvoiceSource) ([]byte, error) {
	s.got = &src
	return []byte(fmt.Sprintf("%%PDF invoice %s", src.Order.Number)), nil
}

var errStore = errors.New("connection reset by peer")
