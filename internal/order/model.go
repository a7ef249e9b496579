package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Gateway string

const (
	GatewayCOD     Gateway = "COD"
	GatewayPrepaid Gateway = "Prepaid"
)

func (g Gateway) Valid() bool {
	return g == GatewayCOD || g == GatewayPrepaid
}

// Partners is the set of fulfillment partners an order can be assigned to.
var Partners = []string{"qikink", "printrove", "blinkstore"}

type Order struct {
	ID                 uuid.UUID       `json:"id"`
	Number             string          `json:"order_number"`
	CustomerID         uuid.UUID       `json:"-"`
	Email              string          `json:"email"`
	CustomerName       string          `json:"customer_name"`
	Status             Status          `json:"status"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	Gateway            Gateway         `json:"gateway"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	ShippingCost       decimal.Decimal `json:"shipping_cost"`
	CODFee             decimal.Decimal `json:"cod_fee"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	FulfillmentPartner *string         `json:"fulfillment_partner"`
	PartnerOrderID     *string         `json:"partner_order_id"`
	ShippingPartner    *string         `json:"shipping_partner"`
	TrackingNumber     *string         `json:"tracking_number"`
	TrackingURL        *string         `json:"tracking_url"`
	ShippedAt          *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Items              []Item          `json:"items,omitempty"`
}

// Item is a line of an order. Product name, size, color and prices are snapshots taken at checkout.
type Item struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   string          `json:"product_id"`
	Position    int             `json:"position"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StatusChange is an append-only status history entry.
type StatusChange struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	OldStatus Status    `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	Actor     string    `json:"actor"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Payment is the gateway record linked to an order. Written by the gateway callback, read here.
type Payment struct {
	ID               uuid.UUID       `json:"id"`
	OrderID          uuid.UUID       `json:"order_id"`
	Gateway          string          `json:"gateway"`
	GatewayReference *string         `json:"gateway_reference,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ShipmentUpdate is a status write with optional tracking fields. Nil fields keep the stored value.
type ShipmentUpdate struct {
	Status          Status
	ShippingPartner *string
	TrackingNumber  *string
	TrackingURL     *string
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
}

// LineItemInput is a cart line as submitted: either a variant id, or a product id with size and color.
type LineItemInput struct {
	VariantID string
	ProductID string
	Size      string
	Color     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineItem is the canonical line shape every validation step works on.
type LineItem struct {
	ProductID string
	Size      string
	Color     string
	Quantity  int
	UnitPrice decimal.Decimal
}
