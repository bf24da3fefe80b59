package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (ps PaymentStatus) String() string {
	return string(ps)
}

type Status string

const (
	StatusPending       Status = "pending"
	StatusConfirmed     Status = "confirmed"
	StatusProcessing    Status = "processing"
	StatusReadyToShip   Status = "ready_to_ship"
	StatusShipped       Status = "shipped"
	StatusDelivered     Status = "delivered"
	StatusCancelled     Status = "cancelled"
	StatusPaymentFailed Status = "payment_failed"
)

func (s Status) String() string {
	return string(s)
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed:     true,
		StatusCancelled:     true,
		StatusPaymentFailed: true,
	},
	StatusConfirmed: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusReadyToShip: true,
		StatusCancelled:   true,
	},
	StatusReadyToShip: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered:     {},
	StatusCancelled:     {},
	StatusPaymentFailed: {},
}

// CanTransition reports whether an order may move from one fulfillment
// status to another.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

type Item struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	Image     string    `json:"image,omitempty" db:"image"`
	Size      string    `json:"size,omitempty" db:"size"`
	Color     string    `json:"color,omitempty" db:"color"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
	Subtotal  float64   `json:"subtotal" db:"subtotal"`
}

type Address struct {
	Name    string `json:"name" db:"ship_name"`
	Phone   string `json:"phone" db:"ship_phone"`
	Email   string `json:"email" db:"ship_email"`
	Line1   string `json:"line1" db:"ship_line1"`
	Line2   string `json:"line2,omitempty" db:"ship_line2"`
	City    string `json:"city" db:"ship_city"`
	State   string `json:"state" db:"ship_state"`
	PinCode string `json:"pin_code" db:"ship_pin_code"`
	Country string `json:"country" db:"ship_country"`
}

// Order is the central entity. Payment fields are mutated by the payment
// webhook handler; the fulfillment sync fields (Carrier*, AWB*, pickup and
// synced timestamps) are owned by the fulfillment orchestrator. Orders are
// never deleted, only status-transitioned.
type Order struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrderNumber string    `json:"order_number" db:"order_number"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Items       []Item    `json:"items" db:"-"`

	Subtotal     float64 `json:"subtotal" db:"subtotal"`
	Tax          float64 `json:"tax" db:"tax"`
	ShippingCost float64 `json:"shipping_cost" db:"shipping_cost"`
	Total        float64 `json:"total" db:"total"`

	ShippingAddress Address `json:"shipping_address"`

	PaymentMethod string        `json:"payment_method" db:"payment_method"`
	PaymentRef    string        `json:"payment_ref" db:"payment_ref"`
	PaymentID     *string       `json:"payment_id,omitempty" db:"payment_id"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	PaidAt        *time.Time    `json:"paid_at,omitempty" db:"paid_at"`

	Status Status `json:"status" db:"status"`

	CarrierOrderID    *string    `json:"carrier_order_id,omitempty" db:"carrier_order_id"`
	CarrierShipmentID *string    `json:"carrier_shipment_id,omitempty" db:"carrier_shipment_id"`
	CarrierStatus     *string    `json:"carrier_status,omitempty" db:"carrier_status"`
	AWBCode           *string    `json:"awb_code,omitempty" db:"awb_code"`
	CourierID         *string    `json:"courier_id,omitempty" db:"courier_id"`
	CourierName       *string    `json:"courier_name,omitempty" db:"courier_name"`
	PickupScheduledAt *time.Time `json:"pickup_scheduled_at,omitempty" db:"pickup_scheduled_at"`
	SyncedAt          *time.Time `json:"synced_at,omitempty" db:"synced_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Synced reports whether a remote shipment order has already been created
// for this order. A non-empty carrier order id is the proof of creation and
// the idempotency anchor for the whole sync pipeline.
func (o *Order) Synced() bool {
	return o.CarrierOrderID != nil && *o.CarrierOrderID != ""
}
