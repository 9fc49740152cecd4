package email

import (
	"fmt"
	"strings"
)

// OrderEmailData carries the fields all order notifications render.
type OrderEmailData struct {
	OrderNumber  string
	CustomerName string
	TotalCents   int64
	Currency     string
}

func (d OrderEmailData) total() string {
	return fmt.Sprintf("%.2f %s", float64(d.TotalCents)/100, strings.ToUpper(d.Currency))
}

// OrderConfirmed builds the payment-confirmation notification.
func OrderConfirmed(d OrderEmailData) *Message {
	return &Message{
		Subject: "Order confirmed - " + d.OrderNumber,
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nWe've received your payment of %s for order %s. We'll let you know as soon as it ships.\n\nThank you for shopping with us!\n",
			d.CustomerName, d.total(), d.OrderNumber),
	}
}

// OrderPaymentFailed builds the payment-failure notification.
func OrderPaymentFailed(d OrderEmailData) *Message {
	return &Message{
		Subject: "Payment issue with order " + d.OrderNumber,
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nWe couldn't process the payment for order %s. No charge was made. You can retry checkout at any time.\n",
			d.CustomerName, d.OrderNumber),
	}
}

// OrderStatusChanged builds a status-update notification. Statuses without
// a customer-facing template return nil and nothing is sent.
func OrderStatusChanged(d OrderEmailData, status string) *Message {
	var body string
	switch status {
	case "PROCESSING":
		body = fmt.Sprintf("Hi %s,\n\nYour order %s is now being prepared.\n", d.CustomerName, d.OrderNumber)
	case "SHIPPED_LOCAL":
		body = fmt.Sprintf("Hi %s,\n\nGood news - your order %s has shipped.\n", d.CustomerName, d.OrderNumber)
	case "DELIVERED":
		body = fmt.Sprintf("Hi %s,\n\nYour order %s has been delivered. Enjoy!\n", d.CustomerName, d.OrderNumber)
	case "CANCELLED_BY_ADMIN", "CANCELLED_BY_CUSTOMER":
		body = fmt.Sprintf("Hi %s,\n\nYour order %s has been cancelled. If this is unexpected, please contact support.\n", d.CustomerName, d.OrderNumber)
	case "REFUNDED":
		body = fmt.Sprintf("Hi %s,\n\nYour order %s has been refunded. The amount of %s will appear on your statement shortly.\n", d.CustomerName, d.OrderNumber, d.total())
	default:
		return nil
	}
	return &Message{
		Subject:  "Update on order " + d.OrderNumber,
		TextBody: body,
	}
}
