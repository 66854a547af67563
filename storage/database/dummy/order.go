package dummydb

import (
	"context"
	"sort"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/order"
)

type orderRepository struct {
	db *DB
}

var _ order.Repository = (*orderRepository)(nil) // interface compliance check

func NewOrderRepository(db *DB) order.Repository {
	return &orderRepository{db: db}
}

func (repo *orderRepository) getByNumber(number string) (*order.Order, bool) {
	for _, ord := range repo.db.orders {
		if ord.OrderNumber == number {
			return ord, true
		}
	}
	return nil, false
}

func (repo *orderRepository) CreateOrder(ctx context.Context, ord order.Order) (order.Order, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, taken := repo.getByNumber(ord.OrderNumber); taken {
		return order.Order{}, order.ErrOrderNumberTaken
	}
	repo.db.orders[ord.ID] = &ord
	return ord, nil
}

func (repo *orderRepository) GetOrderByNumber(ctx context.Context, number string) (order.Order, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if ord, ok := repo.getByNumber(number); ok {
		return *ord, nil
	}
	return order.Order{}, order.ErrNotFound
}

func (repo *orderRepository) GetUnpaidOrder(ctx context.Context, userID, courseID string) (order.Order, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, ord := range repo.db.orders {
		if ord.UserID == userID && ord.CourseID == courseID && ord.Status == order.StatusUnpaid {
			return *ord, nil
		}
	}
	return order.Order{}, order.ErrNotFound
}

func (repo *orderRepository) FilterOrders(ctx context.Context, filter *order.QueryFilter, ordering ...core.DBOrdering) ([]order.Order, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orders := make([]order.Order, 0, len(repo.db.orders))
	for _, ord := range repo.db.orders {
		if filter != nil {
			if filter.UserID != "" && ord.UserID != filter.UserID {
				continue
			}
			if filter.CourseID != "" && ord.CourseID != filter.CourseID {
				continue
			}
			if filter.Status != "" && ord.Status != filter.Status {
				continue
			}
		}
		orders = append(orders, *ord)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (repo *orderRepository) HasPaidOrder(ctx context.Context, userID, courseID string) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, ord := range repo.db.orders {
		if ord.UserID == userID && ord.CourseID == courseID && ord.Status == order.StatusPaid {
			return true, nil
		}
	}
	return false, nil
}

// TransitionOrder holds the store lock for the whole read-validate-write cycle
// so that concurrent transitions of the same order serialize: the second one
// sees the first one's result, not the stale status.
func (repo *orderRepository) TransitionOrder(ctx context.Context, orderNumber string, fn order.TransitionFunc) (order.Order, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ord, ok := repo.getByNumber(orderNumber)
	if !ok {
		return order.Order{}, order.ErrNotFound
	}

	updated, err := fn(*ord)
	if err != nil {
		return order.Order{}, err
	}

	switch order.EffectOf(ord.Status, updated.Status) {
	case order.EffectGrant:
		repo.db.setMember(ord.CourseID, ord.UserID, true)
	case order.EffectRevoke:
		repo.db.setMember(ord.CourseID, ord.UserID, false)
	}

	*ord = updated
	return updated, nil
}
