package order

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vasiliy-maslov/storefront-orders/internal/cache"
	"github.com/vasiliy-maslov/storefront-orders/internal/catalog"
	"github.com/vasiliy-maslov/storefront-orders/internal/customer"
	"github.com/vasiliy-maslov/storefront-orders/internal/effect"
	"github.com/vasiliy-maslov/storefront-orders/internal/tax"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusConfirmed:  true,
		StatusShipped:    true,
		StatusCancelled:  true,
		StatusFailed:     true,
	},
	StatusProcessing: {
		StatusConfirmed: true,
		StatusShipped:   true,
		StatusCancelled: true,
		StatusFailed:    true,
	},
	StatusConfirmed: {
		StatusProcessing: true,
		StatusShipped:    true,
		StatusCancelled:  true,
		StatusFailed:     true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
		StatusFailed:    true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
	StatusFailed:    {},
}

const (
	MessageCOD     = "Order placed successfully. Pay on delivery when your order arrives."
	MessagePrepaid = "Order created. Please complete payment to confirm your order."
)

// CreateOrderInput is a checkout submission. Amounts other than line prices are the client's display
// values; the total is stored as given.
type CreateOrderInput struct {
	AuthID          string
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	ShippingAddress customer.Address
	Items           []LineItemInput
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	ShippingCost    decimal.Decimal
	CODFee          decimal.Decimal
	Total           decimal.Decimal
	Gateway         Gateway
}

// Created is the public result of a checkout.
type Created struct {
	Order   *Order
	Message string
	// Cache reports the best-effort invalidation of the recent-orders entry.
	Cache effect.Outcome
}

// UpdateStatusCommand is an admin status change. Tracking fields are optional.
type UpdateStatusCommand struct {
	OrderNumber     string
	Status          Status
	ShippingPartner *string
	TrackingNumber  *string
	TrackingURL     *string
	Note            *string
	Actor           string
}

func (c UpdateStatusCommand) hasTracking() bool {
	return c.ShippingPartner != nil || c.TrackingNumber != nil || c.TrackingURL != nil
}

// Viewer is whoever is reading an order: an authenticated user, an admin or a guest proving an email.
type Viewer struct {
	UserID     string
	Email      string
	Admin      bool
	GuestEmail string
}

// Details is an order with everything linked to it.
type Details struct {
	Order    *Order
	Payment  *Payment
	Customer *customer.Customer
}

// InvoiceSource is everything an invoice is printed from.
type InvoiceSource struct {
	Order *Order
	// Billing is nil when neither the customer profile nor the order carries an address.
	Billing *customer.Address
}

// InvoiceRenderer turns an invoice source into a printable document.
type InvoiceRenderer interface {
	Render(src InvoiceSource) ([]byte, error)
}

type Service interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Created, error)
	GetOrder(ctx context.Context, number string, viewer Viewer) (*Details, error)
	Invoice(ctx context.Context, number string, viewer Viewer) ([]byte, error)
	UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Order, error)
	UpdateFulfillmentPartner(ctx context.Context, number string, partner *string) (*Order, error)
	UpdatePartnerOrderID(ctx context.Context, number string, partnerOrderID *string) (*Order, error)
}

// ServiceDeps are the collaborators of the order service.
type ServiceDeps struct {
	Orders          Repository
	Catalog         catalog.Repository
	Customers       customer.Repository
	Resolver        customer.Resolver
	Numbers         NumberGenerator
	Cache           cache.Invalidator
	Renderer        InvoiceRenderer
	RecentOrdersKey string
	// Partners defaults to the package-level Partners list.
	Partners        []string
	Clock           func() time.Time
}

type service struct {
	orders          Repository
	catalog         catalog.Repository
	customers       customer.Repository
	resolver        customer.Resolver
	numbers         NumberGenerator
	cache           cache.Invalidator
	renderer        InvoiceRenderer
	recentOrdersKey string
	partners        []string
	now             func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		orders:          deps.Orders,
		catalog:         deps.Catalog,
		customers:       deps.Customers,
		resolver:        deps.Resolver,
		numbers:         deps.Numbers,
		cache:           deps.Cache,
		renderer:        deps.Renderer,
		recentOrdersKey: deps.RecentOrdersKey,
		partners:        deps.Partners,
		now:             deps.Clock,
	}
	if s.resolver == nil {
		s.resolver = customer.NewResolver(deps.Customers)
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if len(s.partners) == 0 {
		s.partners = Partners
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Created, error) {
	if err := validateCreateInput(&in); err != nil {
		log.Warn().Err(err).Str("email", in.Email).Msg("service: rejected order input")
		return nil, err
	}

	number, err := s.numbers.Next(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate order number")
		return nil, fmt.Errorf("service: failed to generate order number: %w", err)
	}

	resolution, err := s.resolver.Resolve(ctx, customer.ResolveInput{
		AuthID:  in.AuthID,
		Email:   in.Email,
		Address: in.ShippingAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to resolve customer: %w", err)
	}

	lines, err := NormalizeLineItems(ctx, s.catalog, in.Items)
	if err != nil {
		return nil, err
	}

	validated, err := ValidateAndResolve(ctx, s.catalog, lines)
	if err != nil {
		if IsValidation(err) {
			log.Warn().Err(err).Str("order_number", number).Msg("service: line items rejected")
		}
		return nil, err
	}

	now := s.now().UTC()

	order := &Order{
		ID:                 uuid.Must(uuid.NewV4()),
		Number:             number,
		CustomerID:         resolution.CustomerID,
		Email:              in.Email,
		CustomerName:       strings.TrimSpace(in.FirstName + " " + in.LastName),
		Status:             StatusPending,
		PaymentStatus:      PaymentPending,
		Gateway:            in.Gateway,
		ShippingCost:       in.ShippingCost,
		CODFee:             in.CODFee,
		TotalAmount:        in.Total,
		FulfillmentPartner: validated.FulfillmentPartner,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var totals tax.Totals
	items := make([]Item, 0, len(validated.Items))
	for i, v := range validated.Items {
		totals.Add(tax.Split(v.UnitPrice, v.Quantity))
		items = append(items, Item{
			ID:          uuid.Must(uuid.NewV4()),
			OrderID:     order.ID,
			ProductID:   v.ProductID,
			Position:    i,
			ProductName: v.ProductName,
			Size:        v.Size,
			Color:       v.Color,
			Quantity:    v.Quantity,
			UnitPrice:   v.UnitPrice,
			TotalPrice:  v.UnitPrice.Mul(decimal.NewFromInt(int64(v.Quantity))),
			CreatedAt:   now,
		})
	}
	order.Subtotal, order.TaxAmount = totals.Rounded()

	if err := s.orders.InsertOrder(ctx, order); err != nil {
		log.Error().Err(err).Str("order_number", number).Msg("service: failed to insert order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	if err := s.orders.InsertItems(ctx, order.ID, items); err != nil {
		return nil, s.compensate(ctx, order, err)
	}
	order.Items = items

	log.Info().
		Stringer("order_id", order.ID).
		Str("order_number", order.Number).
		Stringer("customer_id", order.CustomerID).
		Bool("customer_created", resolution.Created).
		Msg("service: order created successfully")

	created := &Created{Order: order, Message: MessagePrepaid}
	if order.Gateway == GatewayCOD {
		created.Message = MessageCOD
	}
	created.Cache = s.invalidate(ctx)

	return created, nil
}

// compensate removes an order whose items could not be written. The delete runs even if the request
// context is already cancelled.
func (s *service) compensate(ctx context.Context, order *Order, cause error) error {
	log.Error().Err(cause).Stringer("order_id", order.ID).Str("order_number", order.Number).
		Msg("service: failed to insert order items, deleting order")

	if err := s.orders.DeleteOrder(context.WithoutCancel(ctx), order.ID); err != nil {
		log.Error().Err(err).Stringer("order_id", order.ID).Str("order_number", order.Number).
			Msg("service: unresolved inconsistency: order left without items after failed delete")
		return fmt.Errorf("service: failed to create order items: %w", errors.Join(cause, err))
	}

	return fmt.Errorf("service: failed to create order items: %w", cause)
}

func (s *service) invalidate(ctx context.Context) effect.Outcome {
	if s.recentOrdersKey == "" {
		return effect.Skipped("cache.invalidate")
	}
	return effect.Run(ctx, "cache.invalidate", func(ctx context.Context) error {
		return s.cache.Invalidate(ctx, s.recentOrdersKey)
	})
}

func validateCreateInput(in *CreateOrderInput) error {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if in.Email == "" {
		return invalid("email", "email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return invalid("email", "email is invalid")
	}
	if in.FirstName == "" && in.LastName == "" {
		return invalid("name", "customer name is required")
	}
	if len(in.Items) == 0 {
		return invalid("line_items", "order must contain at least one item")
	}
	if in.ShippingAddress.IsEmpty() {
		return invalid("shipping_address", "shipping address is required")
	}
	if !in.Total.IsPositive() {
		return invalid("total", "total must be positive")
	}
	if !in.Gateway.Valid() {
		return invalid("gateway", fmt.Sprintf("invalid gateway %q, expected %s or %s", in.Gateway, GatewayCOD, GatewayPrepaid))
	}
	if in.ShippingCost.IsNegative() || in.CODFee.IsNegative() {
		return invalid("shipping_cost", "shipping cost and cod fee cannot be negative")
	}

	if in.ShippingAddress.FirstName == "" {
		in.ShippingAddress.FirstName = in.FirstName
	}
	if in.ShippingAddress.LastName == "" {
		in.ShippingAddress.LastName = in.LastName
	}
	if in.ShippingAddress.Phone == "" {
		in.ShippingAddress.Phone = strings.TrimSpace(in.Phone)
	}

	return nil
}

func (s *service) GetOrder(ctx context.Context, number string, viewer Viewer) (*Details, error) {
	order, err := s.fetch(ctx, number)
	if err != nil {
		return nil, err
	}

	// Guests can only match on email, so they are checked before anything else is read.
	if viewer.UserID == "" && !canView(viewer, order, nil) {
		log.Warn().Str("order_number", number).Msg("service: order access denied")
		return nil, ErrAccessDenied
	}

	owner, err := s.customers.GetByID(ctx, order.CustomerID)
	if err != nil && !errors.Is(err, customer.ErrCustomerNotFound) {
		log.Error().Err(err).Str("order_number", number).Msg("service: failed to fetch order owner")
		return nil, fmt.Errorf("service: failed to fetch customer: %w", err)
	}

	if !canView(viewer, order, owner) {
		log.Warn().Str("order_number", number).Str("user_id", viewer.UserID).Msg("service: order access denied")
		return nil, ErrAccessDenied
	}

	details := &Details{Order: order, Customer: owner}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.orders.GetItems(gctx, order.ID)
		if err != nil {
			return fmt.Errorf("service: failed to fetch order items: %w", err)
		}
		order.Items = items
		return nil
	})
	g.Go(func() error {
		payment, err := s.orders.GetPayment(gctx, order.ID)
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return fmt.Errorf("service: failed to fetch payment: %w", err)
		}
		details.Payment = payment
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("order_number", number).Msg("service: failed to load order details")
		return nil, err
	}

	return details, nil
}

func (s *service) Invoice(ctx context.Context, number string, viewer Viewer) ([]byte, error) {
	src, err := s.invoiceSource(ctx, number, viewer)
	if err != nil {
		return nil, err
	}

	doc, err := s.renderer.Render(*src)
	if err != nil {
		log.Error().Err(err).Str("order_number", number).Msg("service: failed to render invoice")
		return nil, fmt.Errorf("service: failed to render invoice: %w", err)
	}

	log.Info().Str("order_number", number).Bool("admin", viewer.Admin).Msg("service: invoice rendered")

	return doc, nil
}

func (s *service) invoiceSource(ctx context.Context, number string, viewer Viewer) (*InvoiceSource, error) {
	details, err := s.GetOrder(ctx, number, viewer)
	if err != nil {
		return nil, err
	}

	if !viewer.Admin && details.Order.Status != StatusDelivered {
		log.Warn().Str("order_number", number).Stringer("status", details.Order.Status).
			Msg("service: invoice requested before delivery")
		return nil, ErrAccessDenied
	}

	src := &InvoiceSource{Order: details.Order}

	if details.Customer != nil {
		if addr := details.Customer.Address(); !addr.IsEmpty() {
			src.Billing = &addr
			return src, nil
		}
	}

	legacy, err := s.orders.GetLegacyAddress(ctx, details.Order.ID)
	switch {
	case err == nil && !legacy.IsEmpty():
		src.Billing = legacy
	case err != nil && !errors.Is(err, ErrAddressNotFound):
		log.Error().Err(err).Str("order_number", number).Msg("service: failed to load legacy address, printing order contact")
	}

	return src, nil
}

func canView(viewer Viewer, order *Order, owner *customer.Customer) bool {
	if viewer.Admin {
		return true
	}
	if viewer.UserID != "" {
		if owner != nil && owner.AuthID != nil && *owner.AuthID == viewer.UserID {
			return true
		}
		if viewer.Email != "" && strings.EqualFold(viewer.Email, order.Email) {
			return true
		}
	}
	guest := strings.TrimSpace(viewer.GuestEmail)
	return guest != "" && strings.EqualFold(guest, order.Email)
}

func (s *service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Order, error) {
	if !cmd.Status.Valid() {
		log.Warn().Stringer("status", cmd.Status).Msg("service: unknown order status requested")
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, cmd.Status)
	}

	current, err := s.fetch(ctx, cmd.OrderNumber)
	if err != nil {
		return nil, err
	}

	upd := ShipmentUpdate{
		Status:          cmd.Status,
		ShippingPartner: cmd.ShippingPartner,
		TrackingNumber:  cmd.TrackingNumber,
		TrackingURL:     cmd.TrackingURL,
	}

	if current.Status == cmd.Status {
		if !cmd.hasTracking() {
			log.Info().Str("order_number", cmd.OrderNumber).Stringer("status", cmd.Status).
				Msg("service: order status is already the same, no update needed")
			return nil, ErrNoStatusChange
		}

		if err := s.orders.UpdateShipment(ctx, current.ID, upd); err != nil {
			return nil, s.updateFailed(err, cmd.OrderNumber, "tracking")
		}
		log.Info().Str("order_number", cmd.OrderNumber).Msg("service: tracking details updated")

		s.invalidate(ctx)
		return s.fetch(ctx, cmd.OrderNumber)
	}

	if !allowedTransitions[current.Status][cmd.Status] {
		log.Warn().Str("order_number", cmd.OrderNumber).Stringer("current_status", current.Status).
			Stringer("new_status", cmd.Status).Msg("service: invalid order status transition")
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, current.Status, cmd.Status)
	}

	if cmd.Status == StatusShipped && !cmd.hasTracking() {
		return nil, ErrTrackingRequired
	}

	now := s.now().UTC()
	switch cmd.Status {
	case StatusShipped:
		upd.ShippedAt = &now
	case StatusDelivered:
		upd.DeliveredAt = &now
	}

	if err := s.orders.UpdateShipment(ctx, current.ID, upd); err != nil {
		return nil, s.updateFailed(err, cmd.OrderNumber, "status")
	}

	log.Info().Str("order_number", cmd.OrderNumber).Stringer("old_status", current.Status).
		Stringer("new_status", cmd.Status).Msg("service: order status updated successfully")

	change := StatusChange{
		ID:        uuid.Must(uuid.NewV4()),
		OrderID:   current.ID,
		OldStatus: current.Status,
		NewStatus: cmd.Status,
		Actor:     cmd.Actor,
		Note:      cmd.Note,
		CreatedAt: now,
	}
	effect.Run(ctx, "order.status_history", func(ctx context.Context) error {
		return s.orders.AppendStatusHistory(ctx, change)
	})
	s.invalidate(ctx)

	return s.fetch(ctx, cmd.OrderNumber)
}

func (s *service) UpdateFulfillmentPartner(ctx context.Context, number string, partner *string) (*Order, error) {
	if partner != nil {
		name := strings.ToLower(strings.TrimSpace(*partner))
		if !slices.Contains(s.partners, name) {
			return nil, fmt.Errorf("%w: %q, expected one of %s", ErrInvalidPartner, *partner, strings.Join(s.partners, ", "))
		}
		partner = &name
	}

	current, err := s.fetch(ctx, number)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateFulfillmentPartner(ctx, current.ID, partner); err != nil {
		return nil, s.updateFailed(err, number, "fulfillment partner")
	}

	log.Info().Str("order_number", number).Bool("cleared", partner == nil).Msg("service: fulfillment partner updated")

	s.invalidate(ctx)
	return s.fetch(ctx, number)
}

func (s *service) UpdatePartnerOrderID(ctx context.Context, number string, partnerOrderID *string) (*Order, error) {
	if partnerOrderID != nil {
		id := strings.TrimSpace(*partnerOrderID)
		if id == "" {
			return nil, invalid("partner_order_id", "partner_order_id cannot be empty, send null to clear it")
		}
		partnerOrderID = &id
	}

	current, err := s.fetch(ctx, number)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdatePartnerOrderID(ctx, current.ID, partnerOrderID); err != nil {
		return nil, s.updateFailed(err, number, "partner order id")
	}

	log.Info().Str("order_number", number).Bool("cleared", partnerOrderID == nil).Msg("service: partner order id updated")

	s.invalidate(ctx)
	return s.fetch(ctx, number)
}

func (s *service) fetch(ctx context.Context, number string) (*Order, error) {
	order, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("order_number", number).Msg("service: order not found by number")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_number", number).Msg("service: failed to fetch order by number")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return order, nil
}

func (s *service) updateFailed(err error, number, what string) error {
	if errors.Is(err, ErrOrderNotFound) {
		return ErrOrderNotFound
	}
	log.Error().Err(err).Str("order_number", number).Msgf("service: failed to update %s", what)
	return fmt.Errorf("service: failed to update %s: %w", what, err)
}
