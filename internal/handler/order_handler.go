package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/storefront-orders/internal/auth"
	"github.com/vasiliy-maslov/storefront-orders/internal/customer"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
)

type AddressRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	Address1    string `json:"address1" validate:"required"`
	Address2    string `json:"address2"`
	City        string `json:"city" validate:"required"`
	Province    string `json:"province"`
	Zip         string `json:"zip"`
	CountryCode string `json:"country_code" validate:"omitempty,len=2"`
}

// LineItemRequest is either a variant reference or a product with size and color. The variant wins
// when both are sent.
type LineItemRequest struct {
	VariantID string          `json:"variant_id" validate:"required_without=ProductID"`
	ProductID string          `json:"product_id" validate:"required_without=VariantID"`
	Size      string          `json:"size" validate:"required_without=VariantID"`
	Color     string          `json:"color" validate:"required_without=VariantID"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price"`
}

type CreateOrderRequest struct {
	Email           string            `json:"email" validate:"required,email"`
	FirstName       string            `json:"first_name" validate:"required"`
	LastName        string            `json:"last_name"`
	Phone           string            `json:"phone"`
	ShippingAddress *AddressRequest   `json:"shipping_address" validate:"required"`
	LineItems       []LineItemRequest `json:"line_items" validate:"required,min=1,dive"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Tax             decimal.Decimal   `json:"tax"`
	ShippingCost    decimal.Decimal   `json:"shipping_cost"`
	CODFee          decimal.Decimal   `json:"cod_fee"`
	Total           decimal.Decimal   `json:"total"`
	Gateway         string            `json:"gateway" validate:"required,oneof=COD Prepaid"`
}

type CreateOrderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	Gateway       order.Gateway       `json:"gateway"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	TaxAmount     decimal.Decimal     `json:"tax_amount"`
	ShippingCost  decimal.Decimal     `json:"shipping_cost"`
	CODFee        decimal.Decimal     `json:"cod_fee"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	CreatedAt     time.Time           `json:"created_at"`
	Message       string              `json:"message"`
}

type CustomerSnapshot struct {
	Email     string  `json:"email"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

type OrderResponse struct {
	*order.Order
	Payment  *order.Payment    `json:"payment"`
	Customer *CustomerSnapshot `json:"customer"`
}

type UpdateStatusRequest struct {
	Status          string  `json:"status" validate:"required"`
	ShippingPartner *string `json:"shipping_partner"`
	TrackingNumber  *string `json:"tracking_number"`
	TrackingURL     *string `json:"tracking_url" validate:"omitempty,url"`
	Note            *string `json:"note"`
}

// NullableString tells an absent JSON key apart from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a string or null: %w", err)
	}
	n.Value = &s
	return nil
}

type UpdateFulfillmentPartnerRequest struct {
	FulfillmentPartner NullableString `json:"fulfillment_partner"`
}

type UpdatePartnerOrderIDRequest struct {
	PartnerOrderID NullableString `json:"partner_order_id"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes mounts the order routes. Identity must already be attached by auth.Authenticate.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders/{number}", h.handleGetOrder)
	router.Get("/orders/{number}/invoice", h.handleDownloadInvoice)

	router.Route("/admin/orders/{number}", func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Patch("/status", h.handleUpdateStatus)
		r.Patch("/fulfillment-partner", h.handleUpdateFulfillmentPartner)
		r.Patch("/partner-order-id", h.handleUpdatePartnerOrderID)
	})
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	in := order.CreateOrderInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		ShippingAddress: customer.Address{
			FirstName:   req.ShippingAddress.FirstName,
			LastName:    req.ShippingAddress.LastName,
			Phone:       req.ShippingAddress.Phone,
			Address1:    req.ShippingAddress.Address1,
			Address2:    req.ShippingAddress.Address2,
			City:        req.ShippingAddress.City,
			Province:    req.ShippingAddress.Province,
			Zip:         req.ShippingAddress.Zip,
			CountryCode: strings.ToUpper(req.ShippingAddress.CountryCode),
		},
		Items:        make([]order.LineItemInput, 0, len(req.LineItems)),
		Subtotal:     req.Subtotal,
		Tax:          req.Tax,
		ShippingCost: req.ShippingCost,
		CODFee:       req.CODFee,
		Total:        req.Total,
		Gateway:      order.Gateway(req.Gateway),
	}
	for _, li := range req.LineItems {
		in.Items = append(in.Items, order.LineItemInput{
			VariantID: li.VariantID,
			ProductID: li.ProductID,
			Size:      li.Size,
			Color:     li.Color,
			Quantity:  li.Quantity,
			UnitPrice: li.Price,
		})
	}
	if identity, ok := auth.FromContext(r.Context()); ok {
		in.AuthID = identity.UserID
	}

	created, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	o := created.Order
	respondWithJSON(w, http.StatusCreated, CreateOrderResponse{
		ID:            o.ID,
		OrderNumber:   o.Number,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Gateway:       o.Gateway,
		Subtotal:      o.Subtotal,
		TaxAmount:     o.TaxAmount,
		ShippingCost:  o.ShippingCost,
		CODFee:        o.CODFee,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
		Message:       created.Message,
	})
}

func viewerFrom(r *http.Request) order.Viewer {
	viewer := order.Viewer{GuestEmail: strings.TrimSpace(r.URL.Query().Get("email"))}
	if identity, ok := auth.FromContext(r.Context()); ok {
		viewer.UserID = identity.UserID
		viewer.Email = identity.Email
		viewer.Admin = identity.IsAdmin()
	}
	return viewer
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	details, err := h.service.GetOrder(r.Context(), number, viewerFrom(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}

	resp := OrderResponse{Order: details.Order, Payment: details.Payment}
	if c := details.Customer; c != nil {
		resp.Customer = &CustomerSnapshot{Email: c.Email, FirstName: c.FirstName, LastName: c.LastName, Phone: c.Phone}
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleDownloadInvoice(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	doc, err := h.service.Invoice(r.Context(), number, viewerFrom(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to generate invoice")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "Invoice-"+number+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		log.Error().Err(err).Str("order_number", number).Msg("Failed to stream invoice")
	}
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	identity, _ := auth.FromContext(r.Context())

	updated, err := h.service.UpdateStatus(r.Context(), order.UpdateStatusCommand{
		OrderNumber:     chi.URLParam(r, "number"),
		Status:          order.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		ShippingPartner: trimmed(req.ShippingPartner),
		TrackingNumber:  trimmed(req.TrackingNumber),
		TrackingURL:     trimmed(req.TrackingURL),
		Note:            trimmed(req.Note),
		Actor:           identity.UserID,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleUpdateFulfillmentPartner(w http.ResponseWriter, r *http.Request) {
	var req UpdateFulfillmentPartnerRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if !req.FulfillmentPartner.Set {
		respondWithError(w, http.StatusBadRequest, "fulfillment_partner is required, send null to clear it")
		return
	}

	updated, err := h.service.UpdateFulfillmentPartner(r.Context(), chi.URLParam(r, "number"), req.FulfillmentPartner.Value)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update fulfillment partner")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleUpdatePartnerOrderID(w http.ResponseWriter, r *http.Request) {
	var req UpdatePartnerOrderIDRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if !req.PartnerOrderID.Set {
		respondWithError(w, http.StatusBadRequest, "partner_order_id is required, send null to clear it")
		return
	}

	updated, err := h.service.UpdatePartnerOrderID(r.Context(), chi.URLParam(r, "number"), req.PartnerOrderID.Value)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update partner order id")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}
