package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mkrell/selene/internal/domain"
	"github.com/mkrell/selene/internal/service"
)

// CheckoutHandler serves the public storefront API.
type CheckoutHandler struct {
	orders *service.OrderService
}

func NewCheckoutHandler(orders *service.OrderService) *CheckoutHandler {
	return &CheckoutHandler{orders: orders}
}

type checkoutItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int32  `json:"quantity" validate:"required,min=1"`
}

type checkoutRequest struct {
	Name       string                `json:"name" validate:"required"`
	Email      string                `json:"email" validate:"required,email"`
	Phone      string                `json:"phone" validate:"required,phone"`
	Address    string                `json:"address" validate:"required"`
	City       string                `json:"city" validate:"required"`
	PostalCode string                `json:"postalCode" validate:"required,len=4,numeric"`
	Items      []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type checkoutResponse struct {
	OrderID         string `json:"orderId"`
	InternalOrderID string `json:"internalOrderId"`
	CheckoutURL     string `json:"checkoutUrl"`
}

// CreateOrder handles POST /api/orders.
func (h *CheckoutHandler) CreateOrder(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return domain.Invalid("checkout", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	items := make([]service.OrderItemInput, len(req.Items))
	for i, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return domain.Invalid("checkout", "invalid product id")
		}
		items[i] = service.OrderItemInput{ProductID: productID, Quantity: item.Quantity}
	}

	result, err := h.orders.CreateOrder(c.Request().Context(), service.CreateOrderInput{
		Customer: domain.CustomerDetails{
			Name:       req.Name,
			Email:      req.Email,
			Phone:      req.Phone,
			Address:    req.Address,
			City:       req.City,
			PostalCode: req.PostalCode,
		},
		Items: items,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, checkoutResponse{
		OrderID:         result.OrderNumber,
		InternalOrderID: result.OrderID.String(),
		CheckoutURL:     result.CheckoutURL,
	})
}

type orderItemResponse struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl,omitempty"`
	UnitPrice  int64  `json:"unitPriceCents"`
	Quantity   int32  `json:"quantity"`
	TotalPrice int64  `json:"totalPriceCents"`
}

type orderResponse struct {
	OrderID         string              `json:"orderId"`
	InternalOrderID string              `json:"internalOrderId"`
	Status          string              `json:"status"`
	TotalCents      int64               `json:"totalCents"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       string              `json:"createdAt"`
}

// GetOrder handles GET /api/orders/:number, the post-payment confirmation
// lookup. Customer contact details are not exposed on this public surface.
func (h *CheckoutHandler) GetOrder(c echo.Context) error {
	order, err := h.orders.GetOrderByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, publicOrder(order))
}

func publicOrder(order *domain.Order) orderResponse {
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemResponse{
			ProductID:  item.ProductID.String(),
			Name:       item.Name,
			ImageURL:   item.ImageURL,
			UnitPrice:  item.UnitPriceCents,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPriceCents,
		}
	}
	return orderResponse{
		OrderID:         order.OrderNumber,
		InternalOrderID: order.ID.String(),
		Status:          string(order.Status),
		TotalCents:      order.TotalCents,
		Items:           items,
		CreatedAt:       order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
