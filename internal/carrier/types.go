package carrier

import "encoding/json"

const (
	PaymentModePrepaid = "Prepaid"
	PaymentModeCOD     = "COD"
)

type OrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

// CreateOrderRequest is the adhoc shipment order payload. Billing doubles as
// the shipping address (shipping_is_billing), matching how the storefront
// collects a single destination at checkout.
type CreateOrderRequest struct {
	OrderID         string      `json:"order_id"`
	OrderDate       string      `json:"order_date"`
	PickupLocation  string      `json:"pickup_location"`
	BillingName     string      `json:"billing_customer_name"`
	BillingLastName string      `json:"billing_last_name"`
	BillingAddress  string      `json:"billing_address"`
	BillingAddress2 string      `json:"billing_address_2,omitempty"`
	BillingCity     string      `json:"billing_city"`
	BillingPincode  string      `json:"billing_pincode"`
	BillingState    string      `json:"billing_state"`
	BillingCountry  string      `json:"billing_country"`
	BillingEmail    string      `json:"billing_email"`
	BillingPhone    string      `json:"billing_phone"`
	ShippingIsBill  bool        `json:"shipping_is_billing"`
	Items           []OrderItem `json:"order_items"`
	PaymentMethod   string      `json:"payment_method"`
	SubTotal        float64     `json:"sub_total"`
	Length          float64     `json:"length"`
	Breadth         float64     `json:"breadth"`
	Height          float64     `json:"height"`
	Weight          float64     `json:"weight"`
}

type CreateOrderResponse struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID int64  `json:"shipment_id"`
	Status     string `json:"status"`
	AWBCode    string `json:"awb_code"`
}

type AssignAWBRequest struct {
	ShipmentID int64 `json:"shipment_id"`
}

// AssignAWB is the normalized waybill assignment result.
type AssignAWB struct {
	AWBCode          string `json:"awb_code"`
	CourierCompanyID int64  `json:"courier_company_id"`
	CourierName      string `json:"courier_name"`
}

// assignAWBEnvelope tolerates both assignment response shapes the carrier is
// known to emit: the fields at the top level, or nested under response.data.
type assignAWBEnvelope struct {
	AssignAWB
	Response struct {
		Data AssignAWB `json:"data"`
	} `json:"response"`
}

func (e *assignAWBEnvelope) normalize() AssignAWB {
	if e.AWBCode != "" {
		return e.AssignAWB
	}
	return e.Response.Data
}

type GeneratePickupRequest struct {
	ShipmentIDs []int64 `json:"shipment_id"`
}

type PickupResponse struct {
	PickupStatus int `json:"pickup_status"`
	Response     struct {
		PickupScheduledDate string `json:"pickup_scheduled_date"`
		PickupTokenNumber   string `json:"pickup_token_number"`
	} `json:"response"`
}

type TrackingStatus struct {
	TrackingData struct {
		TrackStatus   int             `json:"track_status"`
		ShipmentTrack json.RawMessage `json:"shipment_track"`
		CurrentStatus string          `json:"current_status"`
	} `json:"tracking_data"`
}

type CancelOrdersRequest struct {
	IDs []int64 `json:"ids"`
}

type CancelResponse struct {
	Message string `json:"message"`
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Message string `json:"message"`
}
