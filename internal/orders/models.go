package orders

import "time"

type Availability string

const (
	InStock    Availability = "InStock"
	OutOfStock Availability = "OutOfStock"
	PreOrder   Availability = "PreOrder"
)

type Product struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	PriceCents         int          `json:"priceCents"`
	DiscountPriceCents int          `json:"discountPriceCents,omitempty"`
	Quantity           int          `json:"quantity"`
	Availability       Availability `json:"availability"`
	// ListedAvailability is what the seller listed; stock coming back restores it.
	ListedAvailability Availability `json:"-"`
	UploadedBy         string       `json:"uploadedBy"`
	Clicks             int          `json:"clicks"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// UnitPriceCents is the price a line item snapshots: the discount price when one is set
// and lower than the list price.
func (p Product) UnitPriceCents() int {
	if p.DiscountPriceCents > 0 && p.DiscountPriceCents < p.PriceCents {
		return p.DiscountPriceCents
	}
	return p.PriceCents
}

// RestockAvailability is the availability a sold-out product returns to once stock is released.
func (p Product) RestockAvailability() Availability {
	if p.ListedAvailability == PreOrder {
		return PreOrder
	}
	return InStock
}

// BuyerMeta is the identity + checkout contact data copied onto orders and projection entries.
type BuyerMeta struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Note         string `json:"note,omitempty"`
	DeliveryType string `json:"deliveryType,omitempty"`
}

type Order struct {
	ID            string          `json:"id"`
	BuyerID       string          `json:"buyerId"`
	Buyer         BuyerMeta       `json:"buyer"`
	Items         []OrderLineItem `json:"items"`
	TotalCents    int             `json:"totalAmountCents"`
	Address       string          `json:"address"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// HasProduct reports whether any line item references productID.
func (o Order) HasProduct(productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

type OrderLineItem struct {
	ProductID      string `json:"productId"`
	SellerID       string `json:"sellerId,omitempty"`
	Qty            int    `json:"quantity"`
	UnitPriceCents int    `json:"unitPriceCents"`
}

// LineInput is what the cart hands to checkout.
type LineInput struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"quantity"`
}

// ProductOrderEntry is the per-product copy of an order line, shown to the seller.
type ProductOrderEntry struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId"`
	OrderID        string    `json:"orderId"`
	BuyerID        string    `json:"buyerId"`
	Buyer          BuyerMeta `json:"buyer"`
	Qty            int       `json:"quantity"`
	UnitPriceCents int       `json:"unitPriceCents"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

func totalOf(items []OrderLineItem) int {
	total := 0
	for _, it := range items {
		total += it.UnitPriceCents * it.Qty
	}
	return total
}
