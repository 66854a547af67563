package order

import (
	"context"
	"fmt"
	"math/rand"
	"net/mail"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/course"
	"github.com/mekesim/backend/core/user"
)

var (
	// errors
	ErrNotFound             = errors.New("order not found")
	ErrAlreadyOwned         = errors.New("user already owns this course")
	ErrDuplicateUnpaidOrder = errors.New("an unpaid order for this course already exists")
	ErrPermissionDenied     = errors.New("permission denied")
	// ErrOrderNumberTaken is returned by repositories on an order-number
	// uniqueness violation; Create retries on it and never surfaces it.
	ErrOrderNumberTaken = errors.New("order number already taken")

	nowFunc  = time.Now  // mockable
	randIntn = rand.Intn // mockable

	maxNumberAttempts = 5
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

type (
	// TransitionFunc validates and applies a status change to a freshly read
	// Order. It runs inside the repository's atomic unit, so its view of the
	// order can never be stale.
	TransitionFunc func(ord Order) (Order, error)

	Repository interface {
		// CreateOrder fails with ErrOrderNumberTaken when the order number is
		// already in use.
		CreateOrder(ctx context.Context, ord Order) (Order, error)
		GetOrderByNumber(ctx context.Context, number string) (Order, error)
		// GetUnpaidOrder returns ErrNotFound when the user holds no unpaid
		// order for the course.
		GetUnpaidOrder(ctx context.Context, userID, courseID string) (Order, error)
		FilterOrders(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Order, error)
		HasPaidOrder(ctx context.Context, userID, courseID string) (bool, error)

		// TransitionOrder re-reads the order under lock, applies fn and
		// persists the result together with the course-membership side effect
		// (EffectOf), all as a single atomic unit. fn errors abort the unit.
		TransitionOrder(ctx context.Context, orderNumber string, fn TransitionFunc) (Order, error)
	}

	Service struct {
		conf       *core.Config
		repo       Repository
		courseRepo course.Repository
		usrRepo    user.Repository
		mailSvc    core.EmailService
	}
)

func NewService(conf *core.Config, repo Repository, courseRepo course.Repository, usrRepo user.Repository, mailSvc core.EmailService) *Service {
	return &Service{conf: conf, repo: repo, courseRepo: courseRepo, usrRepo: usrRepo, mailSvc: mailSvc}
}

// generateOrderNumber builds a human-readable candidate number: unix seconds
// followed by `width` random digits. Uniqueness is enforced by the store, not
// here; Create retries with a wider suffix on collision.
func generateOrderNumber(width int) string {
	bound := 1
	for i := 0; i < width; i++ {
		bound *= 10
	}
	return fmt.Sprintf("%d%0*d", nowFunc().Unix(), width, randIntn(bound))
}

// Create opens an unpaid order for (user, course), snapshotting the course
// price. It refuses when the user already owns the course, and returns the
// existing order together with ErrDuplicateUnpaidOrder when one is already
// open for the same course.
func (svc *Service) Create(ctx context.Context, usr user.User, no NewOrder) (Order, error) {
	crs, err := svc.courseRepo.GetCourseByID(ctx, no.CourseID)
	if err != nil {
		return Order{}, err
	}

	member, err := svc.courseRepo.IsCourseMember(ctx, crs.ID, usr.ID)
	if err != nil {
		return Order{}, errors.Wrap(err, "checking course membership")
	}
	if member {
		return Order{}, ErrAlreadyOwned
	}

	existing, err := svc.repo.GetUnpaidOrder(ctx, usr.ID, crs.ID)
	if err == nil {
		return existing, ErrDuplicateUnpaidOrder
	}
	if errors.Cause(err) != ErrNotFound {
		return Order{}, errors.Wrap(err, "checking for unpaid order")
	}

	now := nowFunc().UTC()
	ord := Order{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		CourseID:  crs.ID,
		Price:     types.NewDecimal(decimal.New(int64(crs.Price), 0)),
		Status:    StatusUnpaid,
		Note:      null.NewString(no.Note, no.Note != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Two creations in the same second may draw the same suffix; retry with a
	// fresh (and, after the first miss, wider) draw until the store accepts it.
	width := 4
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		ord.OrderNumber = generateOrderNumber(width)
		created, err := svc.repo.CreateOrder(ctx, ord)
		if err == nil {
			return created, nil
		}
		if errors.Cause(err) != ErrOrderNumberTaken {
			return Order{}, errors.Wrap(err, "creating order")
		}
		width = 8
	}
	return Order{}, errors.Errorf("could not generate a unique order number after %d attempts", maxNumberAttempts)
}

// Confirm marks an unpaid order paid on behalf of an admin, recording the
// payment method and granting course membership atomically with the status
// change. Confirming an order in any other status fails, including an already
// paid one: of two concurrent confirms exactly one goes through.
func (svc *Service) Confirm(ctx context.Context, actor user.Profile, co ConfirmOrder) (Order, error) {
	if !actor.IsAdmin() {
		return Order{}, ErrPermissionDenied
	}

	confirmed, err := svc.transition(ctx, co.OrderNumber, StatusPaid, co.PaymentMethod, StatusUnpaid)
	if err != nil {
		return Order{}, err
	}
	svc.sendReceiptEmail(ctx, confirmed)
	return confirmed, nil
}

// Cancel voids an order that has not been paid yet. Only the order's owner or
// an admin may cancel.
func (svc *Service) Cancel(ctx context.Context, actor user.Profile, orderNumber string) (Order, error) {
	ord, err := svc.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return Order{}, err
	}
	if !actor.IsAdmin() && ord.UserID != actor.UserID {
		return Order{}, ErrPermissionDenied
	}
	return svc.transition(ctx, orderNumber, StatusCancelled, "", "")
}

func (svc *Service) GetByNumber(ctx context.Context, number string) (Order, error) {
	return svc.repo.GetOrderByNumber(ctx, number)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Order, error) {
	return svc.repo.FilterOrders(ctx, filter, ordering...)
}

// HasPaidOrder reports whether the user holds a paid order for the course.
func (svc *Service) HasPaidOrder(ctx context.Context, userID, courseID string) (bool, error) {
	return svc.repo.HasPaidOrder(ctx, userID, courseID)
}

// transition is the single primitive all status changes go through. The
// validation runs inside the repository's atomic unit against the freshly
// read row, so a concurrent change invalidates the loser's attempt instead of
// being overwritten. A non-empty requireFrom additionally pins the expected
// current status; terminal self no-ops are then rejected too.
func (svc *Service) transition(ctx context.Context, orderNumber, target, paymentMethod, requireFrom string) (Order, error) {
	return svc.repo.TransitionOrder(ctx, orderNumber, func(ord Order) (Order, error) {
		if requireFrom != "" && ord.Status != requireFrom {
			return Order{}, &InvalidTransitionError{From: ord.Status, To: target}
		}
		if err := CanTransition(ord.Status, target); err != nil {
			return Order{}, err
		}
		if ord.Status == target && ord.IsTerminal() {
			// terminal no-op
			return ord, nil
		}
		if target == StatusPaid {
			if paymentMethod == "" && !ord.PaymentMethod.Valid {
				return Order{}, core.NewValidationError(nil,
					core.FieldError{Field: "payment_method", Error: "a payment method is required to mark an order paid"})
			}
			if paymentMethod != "" {
				ord.PaymentMethod = null.StringFrom(paymentMethod)
			}
		}
		ord.Status = target
		ord.UpdatedAt = nowFunc().UTC()
		return ord, nil
	})
}

func (svc *Service) sendReceiptEmail(ctx context.Context, ord Order) {
	usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: ord.UserID})
	if err != nil || usr.Email == "" {
		return
	}
	crs, err := svc.courseRepo.GetCourseByID(ctx, ord.CourseID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your order " + ord.OrderNumber,
		TemplateName: "order_receipt",
		TemplateData: struct {
			Username      string
			CourseTitle   string
			OrderNumber   string
			Price         string
			PaymentMethod string
		}{
			Username:      usr.Username,
			CourseTitle:   crs.Title,
			OrderNumber:   ord.OrderNumber,
			Price:         ord.Price.String(),
			PaymentMethod: ord.PaymentMethod.String,
		},
	})
}
