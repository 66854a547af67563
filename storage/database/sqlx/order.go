package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/order"
)

const pqUniqueViolation = "23505"

type orderRepository struct {
	db *sqlx.DB
}

var _ order.Repository = (*orderRepository)(nil) // interface compliance check

func NewOrderRepository(db *sqlx.DB) order.Repository {
	return &orderRepository{db: db}
}

type orderRow struct {
	ID            string        `db:"id"`
	OrderNumber   string        `db:"order_number"`
	UserID        string        `db:"user_id"`
	CourseID      string        `db:"course_id"`
	Price         types.Decimal `db:"price"`
	Status        string        `db:"status"`
	PaymentMethod null.String   `db:"payment_method"`
	Note          null.String   `db:"note"`
	CreatedAt     null.Time     `db:"created_at"`
	UpdatedAt     null.Time     `db:"updated_at"`
}

func (r orderRow) toOrder() order.Order {
	return order.Order{
		ID:            r.ID,
		OrderNumber:   r.OrderNumber,
		UserID:        r.UserID,
		CourseID:      r.CourseID,
		Price:         r.Price,
		Status:        r.Status,
		PaymentMethod: r.PaymentMethod,
		Note:          r.Note,
		CreatedAt:     r.CreatedAt.Time,
		UpdatedAt:     r.UpdatedAt.Time,
	}
}

func (repo *orderRepository) CreateOrder(ctx context.Context, ord order.Order) (order.Order, error) {
	query := `
		INSERT INTO "order" (id, order_number, user_id, course_id, price, status, payment_method, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, query,
		ord.ID, ord.OrderNumber, ord.UserID, ord.CourseID, ord.Price, ord.Status,
		ord.PaymentMethod, ord.Note, ord.CreatedAt, ord.UpdatedAt)
	if err != nil {
		// the unique index on order_number is the uniqueness check; the
		// service retries with a fresh number on this sentinel
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return order.Order{}, order.ErrOrderNumberTaken
		}
		return order.Order{}, errors.Wrap(err, "inserting order")
	}
	return ord, nil
}

func (repo *orderRepository) GetOrderByNumber(ctx context.Context, number string) (order.Order, error) {
	var row orderRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "order" WHERE order_number = $1`, number); err != nil {
		return order.Order{}, trapNoRowsErr(err, order.ErrNotFound)
	}
	return row.toOrder(), nil
}

func (repo *orderRepository) GetUnpaidOrder(ctx context.Context, userID, courseID string) (order.Order, error) {
	var row orderRow
	query := `SELECT * FROM "order" WHERE user_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, query, userID, courseID, order.StatusUnpaid); err != nil {
		return order.Order{}, trapNoRowsErr(err, order.ErrNotFound)
	}
	return row.toOrder(), nil
}

func (repo *orderRepository) FilterOrders(ctx context.Context, filter *order.QueryFilter, ordering ...core.DBOrdering) ([]order.Order, error) {
	query := `SELECT * FROM "order"`
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.UserID != "" {
			where = append(where, `user_id = `+arg(filter.UserID))
		}
		if filter.CourseID != "" {
			where = append(where, `course_id = `+arg(filter.CourseID))
		}
		if filter.Status != "" {
			where = append(where, `status = `+arg(filter.Status))
		}
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + orderBy("", "created_at DESC", map[string]bool{"created_at": true}, ordering...)

	var rows []orderRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering orders")
	}
	orders := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toOrder())
	}
	return orders, nil
}

func (repo *orderRepository) HasPaidOrder(ctx context.Context, userID, courseID string) (bool, error) {
	var paid bool
	query := `SELECT EXISTS (SELECT 1 FROM "order" WHERE user_id = $1 AND course_id = $2 AND status = $3)`
	if err := repo.db.GetContext(ctx, &paid, query, userID, courseID, order.StatusPaid); err != nil {
		return false, errors.Wrap(err, "checking paid orders")
	}
	return paid, nil
}

// TransitionOrder runs the whole read-validate-write cycle in one transaction.
// The row is locked with FOR UPDATE, so the validation in fn always sees the
// latest committed status; a concurrent transition waits on the lock and then
// validates against the winner's result. The membership side effect commits
// or rolls back together with the status change.
func (repo *orderRepository) TransitionOrder(ctx context.Context, orderNumber string, fn order.TransitionFunc) (order.Order, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return order.Order{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var row orderRow
	query := `SELECT * FROM "order" WHERE order_number = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &row, query, orderNumber); err != nil {
		return order.Order{}, trapNoRowsErr(err, order.ErrNotFound)
	}
	ord := row.toOrder()

	updated, err := fn(ord)
	if err != nil {
		return order.Order{}, err
	}

	query = `UPDATE "order" SET status = $2, payment_method = $3, updated_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, query, updated.ID, updated.Status, updated.PaymentMethod, updated.UpdatedAt); err != nil {
		return order.Order{}, errors.Wrap(err, "updating order")
	}

	switch order.EffectOf(ord.Status, updated.Status) {
	case order.EffectGrant:
		query = `INSERT INTO course_member (course_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err = tx.ExecContext(ctx, query, ord.CourseID, ord.UserID); err != nil {
			return order.Order{}, errors.Wrap(err, "granting membership")
		}
	case order.EffectRevoke:
		query = `DELETE FROM course_member WHERE course_id = $1 AND user_id = $2`
		if _, err = tx.ExecContext(ctx, query, ord.CourseID, ord.UserID); err != nil {
			return order.Order{}, errors.Wrap(err, "revoking membership")
		}
	}

	if err = tx.Commit(); err != nil {
		return order.Order{}, errors.Wrap(err, "committing transition")
	}
	return updated, nil
}
