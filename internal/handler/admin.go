package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mkrell/selene/internal/domain"
	"github.com/mkrell/selene/internal/middleware"
	"github.com/mkrell/selene/internal/service"
)

// AdminHandler serves the back-office API.
type AdminHandler struct {
	orders   *service.OrderService
	products *service.ProductService
}

func NewAdminHandler(orders *service.OrderService, products *service.ProductService) *AdminHandler {
	return &AdminHandler{orders: orders, products: products}
}

// ----- orders -----

type adminOrderNote struct {
	CreatedAt string `json:"createdAt"`
	StatusAt  string `json:"statusAt"`
	Author    string `json:"author"`
	Body      string `json:"body"`
}

type adminOrderResponse struct {
	orderResponse
	Customer struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		Address    string `json:"address"`
		City       string `json:"city"`
		PostalCode string `json:"postalCode"`
	} `json:"customer"`
	Payment struct {
		CheckoutSessionID string `json:"checkoutSessionId,omitempty"`
		PaymentIntentID   string `json:"paymentIntentId,omitempty"`
		PaymentID         string `json:"paymentId,omitempty"`
		Method            string `json:"method,omitempty"`
		Status            string `json:"status,omitempty"`
		PaidAt            string `json:"paidAt,omitempty"`
	} `json:"payment"`
	Shipping struct {
		Courier        string `json:"courier,omitempty"`
		TrackingNumber string `json:"trackingNumber,omitempty"`
	} `json:"shipping"`
	Notes []adminOrderNote `json:"notes"`
}

func adminOrder(order *domain.Order) adminOrderResponse {
	var resp adminOrderResponse
	resp.orderResponse = publicOrder(order)

	resp.Customer.Name = order.Customer.Name
	resp.Customer.Email = order.Customer.Email
	resp.Customer.Phone = order.Customer.Phone
	resp.Customer.Address = order.Customer.Address
	resp.Customer.City = order.Customer.City
	resp.Customer.PostalCode = order.Customer.PostalCode

	resp.Payment.CheckoutSessionID = order.Payment.CheckoutSessionID
	resp.Payment.PaymentIntentID = order.Payment.PaymentIntentID
	resp.Payment.PaymentID = order.Payment.PaymentID
	resp.Payment.Method = order.Payment.Method
	resp.Payment.Status = order.Payment.Status
	if order.Payment.PaidAt != nil {
		resp.Payment.PaidAt = order.Payment.PaidAt.UTC().Format("2006-01-02T15:04:05Z")
	}

	resp.Shipping.Courier = order.Shipping.Courier
	resp.Shipping.TrackingNumber = order.Shipping.TrackingNumber

	resp.Notes = make([]adminOrderNote, len(order.Notes))
	for i, note := range order.Notes {
		resp.Notes[i] = adminOrderNote{
			CreatedAt: note.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			StatusAt:  string(note.StatusAt),
			Author:    note.Author,
			Body:      note.Body,
		}
	}
	return resp
}

// ListOrders handles GET /admin/orders.
func (h *AdminHandler) ListOrders(c echo.Context) error {
	var filter domain.OrderFilter
	if raw := c.QueryParam("status"); raw != "" {
		status := domain.OrderStatus(raw)
		if !status.Valid() {
			return domain.Invalid("admin", "unknown order status filter")
		}
		filter.Status = &status
	}

	orders, err := h.orders.ListOrders(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	out := make([]adminOrderResponse, len(orders))
	for i := range orders {
		out[i] = adminOrder(&orders[i])
	}
	return c.JSON(http.StatusOK, out)
}

// GetOrder handles GET /admin/orders/:id.
func (h *AdminHandler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return domain.Invalid("admin", "invalid order id")
	}
	order, err := h.orders.GetOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminOrder(order))
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

// UpdateStatus handles PATCH /admin/orders/:id/status. The note author is
// taken from the authenticated admin token.
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return domain.Invalid("admin", "invalid order id")
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("admin", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := h.orders.UpdateStatus(c.Request().Context(), service.UpdateStatusInput{
		OrderID:   id,
		NewStatus: domain.OrderStatus(req.Status),
		Note:      req.Note,
		Author:    middleware.AdminSubject(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminOrder(order))
}

type updateShippingRequest struct {
	Courier        string `json:"courier" validate:"required"`
	TrackingNumber string `json:"trackingNumber" validate:"required"`
}

// UpdateShipping handles PATCH /admin/orders/:id/shipping.
func (h *AdminHandler) UpdateShipping(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return domain.Invalid("admin", "invalid order id")
	}

	var req updateShippingRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("admin", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := h.orders.UpdateShipping(c.Request().Context(), id, domain.ShippingInfo{
		Courier:        req.Courier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminOrder(order))
}

// ----- products -----

type productRequest struct {
	Name        string   `json:"name" validate:"required"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"priceCents" validate:"required,min=1"`
	Stock       int32    `json:"stock" validate:"min=0"`
	Images      []string `json:"images" validate:"dive,url"`
	IsActive    *bool    `json:"isActive"`
}

type productPatchRequest struct {
	Name        *string  `json:"name"`
	Slug        *string  `json:"slug"`
	Description *string  `json:"description"`
	PriceCents  *int64   `json:"priceCents"`
	Stock       *int32   `json:"stock"`
	Images      []string `json:"images" validate:"dive,url"`
	IsActive    *bool    `json:"isActive"`
}

type productResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description,omitempty"`
	PriceCents  int64    `json:"priceCents"`
	Stock       int32    `json:"stock"`
	Images      []string `json:"images,omitempty"`
	IsActive    bool     `json:"isActive"`
}

func productView(p *domain.Product) productResponse {
	return productResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Stock:       p.StockQuantity,
		Images:      p.Images,
		IsActive:    p.IsActive,
	}
}

// ListProducts handles GET /admin/products. Inactive products are included;
// the back office needs to see retired items.
func (h *AdminHandler) ListProducts(c echo.Context) error {
	products, err := h.products.ListProducts(c.Request().Context(), false)
	if err != nil {
		return err
	}
	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = productView(&products[i])
	}
	return c.JSON(http.StatusOK, out)
}

// CreateProduct handles POST /admin/products.
func (h *AdminHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("admin", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	product, err := h.products.CreateProduct(c.Request().Context(), domain.CreateProductParams{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Images:      req.Images,
		IsActive:    active,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, productView(product))
}

// UpdateProduct handles PATCH /admin/products/:id.
func (h *AdminHandler) UpdateProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return domain.Invalid("admin", "invalid product id")
	}

	var req productPatchRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("admin", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	product, err := h.products.UpdateProduct(c.Request().Context(), id, domain.UpdateProductParams{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Images:      req.Images,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, productView(product))
}

// DeleteProduct handles DELETE /admin/products/:id. Products referenced by
// order snapshots are never hard-deleted; this deactivates them.
func (h *AdminHandler) DeleteProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return domain.Invalid("admin", "invalid product id")
	}
	if err := h.products.SetActive(c.Request().Context(), id, false); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
