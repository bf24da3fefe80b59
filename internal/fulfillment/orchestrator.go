package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"storefront/internal/carrier"
	"storefront/internal/events"
	"storefront/internal/order"
	"storefront/internal/shipping"
)

var (
	ErrShipmentRequired = errors.New("fulfillment: order has no remote shipment yet")
	ErrWaybillRequired  = errors.New("fulfillment: order has no waybill yet")
	ErrSyncInProgress   = errors.New("fulfillment: sync already in progress for this order")
)

// Gateway is the slice of the carrier client the orchestrator drives.
type Gateway interface {
	CreateOrder(ctx context.Context, req carrier.CreateOrderRequest) (*carrier.CreateOrderResponse, error)
	AssignAWB(ctx context.Context, shipmentID int64) (*carrier.AssignAWB, error)
	GeneratePickup(ctx context.Context, shipmentIDs []int64) (*carrier.PickupResponse, error)
	Track(ctx context.Context, awbCode string) (*carrier.TrackingStatus, error)
	CancelOrders(ctx context.Context, orderIDs []int64) (*carrier.CancelResponse, error)
	PickupLocation() string
}

type PackageCalculator interface {
	Compute(ctx context.Context, items []order.Item) shipping.Package
}

type SyncResult struct {
	AlreadySynced     bool               `json:"already_synced"`
	CarrierOrderID    string             `json:"carrier_order_id,omitempty"`
	CarrierShipmentID string             `json:"carrier_shipment_id,omitempty"`
	CarrierStatus     string             `json:"carrier_status,omitempty"`
	AWB               *carrier.AssignAWB `json:"awb,omitempty"`
}

// Service drives a paid order through remote shipment creation, waybill
// assignment and pickup scheduling. Every remote call is bracketed by a
// pending entry before and a success/error entry after, so the audit log
// always shows attempted vs. completed actions. Shipment creation is fully
// recoverable on failure (no sync state persisted); waybill and pickup
// failures are soft and re-invocable.
type Service struct {
	orders  order.Repository
	logs    LogRepository
	gateway Gateway
	calc    PackageCalculator
	locker  Locker
	events  events.Publisher
	lockTTL time.Duration
}

type Option func(*Service)

// WithLocker enables the per-order redis lock around sync attempts.
func WithLocker(locker Locker) Option {
	return func(s *Service) { s.locker = locker }
}

// WithPublisher enables fulfillment event publishing.
func WithPublisher(pub events.Publisher) Option {
	return func(s *Service) { s.events = pub }
}

func NewService(orders order.Repository, logs LogRepository, gateway Gateway, calc PackageCalculator, opts ...Option) *Service {
	s := &Service{
		orders:  orders,
		logs:    logs,
		gateway: gateway,
		calc:    calc,
		lockTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncOrder creates a remote shipment order for a paid order and, if the
// carrier returned a shipment id, immediately attempts waybill assignment.
// A pre-existing carrier order id short-circuits to an already-synced result:
// at most one remote order is ever created per local order, no matter how
// many times this is invoked.
func (s *Service) SyncOrder(ctx context.Context, orderID uuid.UUID) (*SyncResult, error) {
	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, orderID.String(), s.lockTTL)
		if err != nil {
			// The conditional write below still prevents duplication.
			log.Warn().Err(err).Stringer("order_id", orderID).Msg("fulfillment: sync lock unavailable, relying on conditional write")
		} else if !acquired {
			return nil, ErrSyncInProgress
		} else {
			defer s.locker.Release(ctx, orderID.String())
		}
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Synced() {
		log.Info().Stringer("order_id", orderID).Str("carrier_order_id", *o.CarrierOrderID).Msg("fulfillment: order already synced, skipping")
		return alreadySyncedResult(o), nil
	}

	pkg := s.calc.Compute(ctx, o.Items)
	req := buildCreateOrderRequest(o, pkg, s.gateway.PickupLocation())
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("fulfillment: failed to marshal shipment payload for order %s: %w", orderID, err)
	}

	// Nothing has been attempted remotely yet, so a failed pending write
	// aborts the whole attempt rather than leaving an unlogged call.
	if err := s.logs.Append(ctx, &LogEntry{OrderID: o.ID, Action: ActionCreateOrder, Outcome: OutcomePending, Request: reqJSON}); err != nil {
		return nil, err
	}

	resp, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		s.appendLog(ctx, o.ID, ActionCreateOrder, OutcomeError, reqJSON, nil, err)
		return nil, fmt.Errorf("fulfillment: shipment creation failed for order %s: %w", orderID, err)
	}

	sync := order.ShipmentSync{
		CarrierOrderID:    strconv.FormatInt(resp.OrderID, 10),
		CarrierShipmentID: strconv.FormatInt(resp.ShipmentID, 10),
		CarrierStatus:     resp.Status,
		SyncedAt:          time.Now().UTC(),
	}

	claimed, err := s.orders.SetShipmentCreated(ctx, o.ID, sync)
	if err != nil {
		s.appendLog(ctx, o.ID, ActionCreateOrder, OutcomeError, reqJSON, nil, err)
		return nil, err
	}

	respJSON, _ := json.Marshal(resp)

	if !claimed {
		// A concurrent delivery won the conditional write; the remote order
		// this attempt created is orphaned with the carrier.
		orphanErr := fmt.Errorf("duplicate shipment creation: order already synced by a concurrent attempt, carrier order %s orphaned", sync.CarrierOrderID)
		s.appendLog(ctx, o.ID, ActionCreateOrder, OutcomeError, reqJSON, respJSON, orphanErr)
		log.Warn().Stringer("order_id", orderID).Str("carrier_order_id", sync.CarrierOrderID).Msg("fulfillment: lost shipment creation race")
		return &SyncResult{AlreadySynced: true}, nil
	}

	s.appendLog(ctx, o.ID, ActionCreateOrder, OutcomeSuccess, reqJSON, respJSON, nil)
	s.publish(ctx, o, order.StatusConfirmed, nil)

	log.Info().
		Stringer("order_id", orderID).
		Str("carrier_order_id", sync.CarrierOrderID).
		Str("carrier_shipment_id", sync.CarrierShipmentID).
		Msg("fulfillment: remote shipment order created")

	result := &SyncResult{
		CarrierOrderID:    sync.CarrierOrderID,
		CarrierShipmentID: sync.CarrierShipmentID,
		CarrierStatus:     sync.CarrierStatus,
	}

	if resp.ShipmentID != 0 {
		result.AWB = s.assignWaybill(ctx, o, resp.ShipmentID)
	}

	return result, nil
}

// AssignWaybill retries waybill assignment for an order whose remote
// shipment already exists. A carrier-side failure is soft: it is logged and
// a nil result returned, leaving the order in its last good state.
func (s *Service) AssignWaybill(ctx context.Context, orderID uuid.UUID) (*carrier.AssignAWB, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	shipmentID, err := shipmentIDOf(o)
	if err != nil {
		return nil, err
	}

	return s.assignWaybill(ctx, o, shipmentID), nil
}

func (s *Service) assignWaybill(ctx context.Context, o *order.Order, shipmentID int64) *carrier.AssignAWB {
	reqJSON, _ := json.Marshal(carrier.AssignAWBRequest{ShipmentID: shipmentID})

	if err := s.logs.Append(ctx, &LogEntry{OrderID: o.ID, Action: ActionGenerateAWB, Outcome: OutcomePending, Request: reqJSON}); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("fulfillment: failed to write pending waybill log entry")
		return nil
	}

	awb, err := s.gateway.AssignAWB(ctx, shipmentID)
	if err != nil {
		s.appendLog(ctx, o.ID, ActionGenerateAWB, OutcomeError, reqJSON, nil, err)
		log.Warn().Err(err).Stringer("order_id", o.ID).Int64("shipment_id", shipmentID).Msg("fulfillment: waybill assignment failed, order left retriable")
		return nil
	}

	courierID := strconv.FormatInt(awb.CourierCompanyID, 10)
	if err := s.orders.SetWaybill(ctx, o.ID, awb.AWBCode, courierID, awb.CourierName); err != nil {
		s.appendLog(ctx, o.ID, ActionGenerateAWB, OutcomeError, reqJSON, nil, err)
		return nil
	}

	respJSON, _ := json.Marshal(awb)
	s.appendLog(ctx, o.ID, ActionGenerateAWB, OutcomeSuccess, reqJSON, respJSON, nil)
	s.publish(ctx, o, order.StatusProcessing, awb)

	log.Info().Stringer("order_id", o.ID).Str("awb_code", awb.AWBCode).Str("courier", awb.CourierName).Msg("fulfillment: waybill assigned")
	return awb
}

// SchedulePickup requests physical pickup for an order's shipment and
// advances it to ready_to_ship.
func (s *Service) SchedulePickup(ctx context.Context, orderID uuid.UUID) (*carrier.PickupResponse, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	shipmentID, err := shipmentIDOf(o)
	if err != nil {
		return nil, err
	}

	reqJSON, _ := json.Marshal(carrier.GeneratePickupRequest{ShipmentIDs: []int64{shipmentID}})

	if err := s.logs.Append(ctx, &LogEntry{OrderID: o.ID, Action: ActionSchedulePickup, Outcome: OutcomePending, Request: reqJSON}); err != nil {
		return nil, err
	}

	resp, err := s.gateway.GeneratePickup(ctx, []int64{shipmentID})
	if err != nil {
		s.appendLog(ctx, o.ID, ActionSchedulePickup, OutcomeError, reqJSON, nil, err)
		return nil, fmt.Errorf("fulfillment: pickup scheduling failed for order %s: %w", orderID, err)
	}

	scheduledAt := time.Now().UTC()
	if resp.Response.PickupScheduledDate != "" {
		if parsed, perr := time.Parse("2006-01-02 15:04:05", resp.Response.PickupScheduledDate); perr == nil {
			scheduledAt = parsed
		}
	}

	if err := s.orders.SetPickupScheduled(ctx, o.ID, scheduledAt); err != nil {
		s.appendLog(ctx, o.ID, ActionSchedulePickup, OutcomeError, reqJSON, nil, err)
		return nil, err
	}

	respJSON, _ := json.Marshal(resp)
	s.appendLog(ctx, o.ID, ActionSchedulePickup, OutcomeSuccess, reqJSON, respJSON, nil)
	s.publish(ctx, o, order.StatusReadyToShip, nil)

	log.Info().Stringer("order_id", orderID).Time("scheduled_at", scheduledAt).Msg("fulfillment: pickup scheduled")
	return resp, nil
}

// Track fetches the live carrier tracking status for an order's waybill.
func (s *Service) Track(ctx context.Context, orderID uuid.UUID) (*carrier.TrackingStatus, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.AWBCode == nil || *o.AWBCode == "" {
		return nil, ErrWaybillRequired
	}
	return s.gateway.Track(ctx, *o.AWBCode)
}

// CancelShipment cancels an order's remote shipment and marks the order
// cancelled locally.
func (s *Service) CancelShipment(ctx context.Context, orderID uuid.UUID) (*carrier.CancelResponse, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Synced() {
		return nil, ErrShipmentRequired
	}

	carrierOrderID, err := strconv.ParseInt(*o.CarrierOrderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("fulfillment: invalid carrier order id %q on order %s: %w", *o.CarrierOrderID, orderID, err)
	}

	resp, err := s.gateway.CancelOrders(ctx, []int64{carrierOrderID})
	if err != nil {
		return nil, fmt.Errorf("fulfillment: shipment cancellation failed for order %s: %w", orderID, err)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, order.StatusCancelled); err != nil {
		return nil, err
	}
	s.publish(ctx, o, order.StatusCancelled, nil)

	log.Info().Stringer("order_id", orderID).Msg("fulfillment: shipment cancelled")
	return resp, nil
}

// Logs returns the append-only audit trail for an order.
func (s *Service) Logs(ctx context.Context, orderID uuid.UUID) ([]LogEntry, error) {
	return s.logs.ListByOrder(ctx, orderID)
}

func (s *Service) appendLog(ctx context.Context, orderID uuid.UUID, action Action, outcome Outcome, req, resp json.RawMessage, cause error) {
	entry := &LogEntry{OrderID: orderID, Action: action, Outcome: outcome, Request: req, Response: resp}
	if cause != nil {
		entry.ErrorMessage = cause.Error()
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Str("action", string(action)).Msg("fulfillment: failed to append log entry")
	}
}

func (s *Service) publish(ctx context.Context, o *order.Order, status order.Status, awb *carrier.AssignAWB) {
	if s.events == nil {
		return
	}
	event := events.FulfillmentEvent{
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		Status:      status.String(),
		OccurredAt:  time.Now().UTC(),
	}
	if awb != nil {
		event.AWBCode = awb.AWBCode
		event.CourierName = awb.CourierName
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Stringer("order_id", o.ID).Msg("fulfillment: failed to publish event")
	}
}

func alreadySyncedResult(o *order.Order) *SyncResult {
	result := &SyncResult{AlreadySynced: true}
	if o.CarrierOrderID != nil {
		result.CarrierOrderID = *o.CarrierOrderID
	}
	if o.CarrierShipmentID != nil {
		result.CarrierShipmentID = *o.CarrierShipmentID
	}
	if o.CarrierStatus != nil {
		result.CarrierStatus = *o.CarrierStatus
	}
	return result
}

func shipmentIDOf(o *order.Order) (int64, error) {
	if o.CarrierShipmentID == nil || *o.CarrierShipmentID == "" {
		return 0, ErrShipmentRequired
	}
	shipmentID, err := strconv.ParseInt(*o.CarrierShipmentID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("fulfillment: invalid carrier shipment id %q on order %s: %w", *o.CarrierShipmentID, o.ID, err)
	}
	return shipmentID, nil
}

func buildCreateOrderRequest(o *order.Order, pkg shipping.Package, pickupLocation string) carrier.CreateOrderRequest {
	paymentMode := carrier.PaymentModeCOD
	if o.PaymentStatus == order.PaymentPaid {
		paymentMode = carrier.PaymentModePrepaid
	}

	items := make([]carrier.OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, carrier.OrderItem{
			Name:         item.Name,
			SKU:          item.ProductID.String(),
			Units:        item.Quantity,
			SellingPrice: item.UnitPrice,
		})
	}

	addr := o.ShippingAddress
	return carrier.CreateOrderRequest{
		OrderID:         o.OrderNumber,
		OrderDate:       o.CreatedAt.Format("2006-01-02 15:04"),
		PickupLocation:  pickupLocation,
		BillingName:     addr.Name,
		BillingAddress:  addr.Line1,
		BillingAddress2: addr.Line2,
		BillingCity:     addr.City,
		BillingPincode:  addr.PinCode,
		BillingState:    addr.State,
		BillingCountry:  addr.Country,
		BillingEmail:    addr.Email,
		BillingPhone:    addr.Phone,
		ShippingIsBill:  true,
		Items:           items,
		PaymentMethod:   paymentMode,
		SubTotal:        o.Subtotal,
		Length:          pkg.Length,
		Breadth:         pkg.Breadth,
		Height:          pkg.Height,
		Weight:          pkg.Weight,
	}
}
