package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var ErrOrderNotFound = errors.New("order not found")

// ShipmentSync carries the fields the carrier returns when a remote
// shipment order is created.
type ShipmentSync struct {
	CarrierOrderID    string
	CarrierShipmentID string
	CarrierStatus     string
	SyncedAt          time.Time
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByPaymentRef(ctx context.Context, paymentRef string) (*Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) error
	SetShipmentCreated(ctx context.Context, id uuid.UUID, sync ShipmentSync) (bool, error)
	SetWaybill(ctx context.Context, id uuid.UUID, awbCode, courierID, courierName string) error
	SetPickupScheduled(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `
	id, order_number, user_id,
	subtotal, tax, shipping_cost, total,
	ship_name, ship_phone, ship_email, ship_line1, ship_line2,
	ship_city, ship_state, ship_pin_code, ship_country,
	payment_method, payment_ref, payment_id, payment_status, paid_at,
	status,
	carrier_order_id, carrier_shipment_id, carrier_status,
	awb_code, courier_id, courier_name, pickup_scheduled_at, synced_at,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID,
		&o.Subtotal, &o.Tax, &o.ShippingCost, &o.Total,
		&o.ShippingAddress.Name, &o.ShippingAddress.Phone, &o.ShippingAddress.Email,
		&o.ShippingAddress.Line1, &o.ShippingAddress.Line2,
		&o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.PinCode, &o.ShippingAddress.Country,
		&o.PaymentMethod, &o.PaymentRef, &o.PaymentID, &o.PaymentStatus, &o.PaidAt,
		&o.Status,
		&o.CarrierOrderID, &o.CarrierShipmentID, &o.CarrierStatus,
		&o.AWBCode, &o.CourierID, &o.CourierName, &o.PickupScheduledAt, &o.SyncedAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	if o.ID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		o.ID = genID
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("Failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	queryOrder := `
		INSERT INTO orders (
			id, order_number, user_id,
			subtotal, tax, shipping_cost, total,
			ship_name, ship_phone, ship_email, ship_line1, ship_line2,
			ship_city, ship_state, ship_pin_code, ship_country,
			payment_method, payment_ref, payment_status, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err = tx.Exec(ctx, queryOrder,
		o.ID, o.OrderNumber, o.UserID,
		o.Subtotal, o.Tax, o.ShippingCost, o.Total,
		o.ShippingAddress.Name, o.ShippingAddress.Phone, o.ShippingAddress.Email,
		o.ShippingAddress.Line1, o.ShippingAddress.Line2,
		o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.PinCode, o.ShippingAddress.Country,
		o.PaymentMethod, o.PaymentRef, string(o.PaymentStatus), string(o.Status),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (id, order_id, product_id, name, image, size, color, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i := range o.Items {
		item := &o.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			return err
		}
		item.ID = itemID
		item.OrderID = o.ID

		_, err = tx.Exec(ctx, queryItem,
			item.ID, o.ID, item.ProductID, item.Name, item.Image,
			item.Size, item.Color, item.Quantity, item.UnitPrice, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepository) GetByPaymentRef(ctx context.Context, paymentRef string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_ref = $1`

	o, err := scanOrder(r.db.QueryRow(ctx, query, paymentRef))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by payment ref %s: %w", paymentRef, err)
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, o *Order) error {
	query := `
		SELECT id, order_id, product_id, name, image, size, color, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = $1
	`

	rows, err := r.db.Query(ctx, query, o.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items for order id %s: %w", o.ID, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Image,
			&item.Size, &item.Color, &item.Quantity, &item.UnitPrice, &item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to scan order item for order id %s: %w", o.ID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating order items for order id %s: %w", o.ID, err)
	}

	o.Items = items
	return nil
}

func (r *postgresRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, paidAt time.Time) error {
	query := `
		UPDATE orders
		SET payment_status = $1, payment_id = $2, paid_at = $3, status = $4, updated_at = $5
		WHERE id = $6
	`

	cmdTag, err := r.db.Exec(ctx, query,
		string(PaymentPaid), paymentID, paidAt, string(StatusConfirmed), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to mark order %s paid: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE orders
		SET payment_status = $1, status = $2, updated_at = $3
		WHERE id = $4
	`

	cmdTag, err := r.db.Exec(ctx, query,
		string(PaymentFailed), string(StatusPaymentFailed), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to mark order %s payment failed: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetShipmentCreated persists the carrier identifiers for an order. The
// WHERE carrier_order_id IS NULL guard makes the write conditional: the
// first writer claims the order, any concurrent duplicate affects zero rows
// and is reported as claimed=false. Together with the unique constraint on
// carrier_order_id this guarantees at most one remote shipment per order.
func (r *postgresRepository) SetShipmentCreated(ctx context.Context, id uuid.UUID, sync ShipmentSync) (bool, error) {
	query := `
		UPDATE orders
		SET carrier_order_id = $1, carrier_shipment_id = $2, carrier_status = $3,
		    synced_at = $4, status = $5, updated_at = $6
		WHERE id = $7 AND carrier_order_id IS NULL
	`

	cmdTag, err := r.db.Exec(ctx, query,
		sync.CarrierOrderID, sync.CarrierShipmentID, sync.CarrierStatus,
		sync.SyncedAt, string(StatusConfirmed), time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("repository: failed to persist shipment sync for order %s: %w", id, err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (r *postgresRepository) SetWaybill(ctx context.Context, id uuid.UUID, awbCode, courierID, courierName string) error {
	query := `
		UPDATE orders
		SET awb_code = $1, courier_id = $2, courier_name = $3, status = $4, updated_at = $5
		WHERE id = $6
	`

	cmdTag, err := r.db.Exec(ctx, query,
		awbCode, courierID, courierName, string(StatusProcessing), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to persist waybill for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) SetPickupScheduled(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE orders
		SET pickup_scheduled_at = $1, status = $2, updated_at = $3
		WHERE id = $4
	`

	cmdTag, err := r.db.Exec(ctx, query,
		at, string(StatusReadyToShip), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to persist pickup schedule for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Str("new_status", string(status)).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
