package order

import (
	"fmt"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/mekesim/backend/core"
)

// Order statuses
const (
	StatusUnpaid    = "unpaid"
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

var AllStatuses = []string{StatusCancelled, StatusPaid, StatusPending, StatusUnpaid}

// Payment methods
const (
	PaymentManual = "manual"
	PaymentAlipay = "alipay"
	PaymentWechat = "wechat"
)

var AllPaymentMethods = []string{PaymentAlipay, PaymentManual, PaymentWechat}

// transitions is the authoritative order state machine. Terminal states only
// allow themselves, as a no-op.
var transitions = map[string][]string{
	StatusUnpaid:    {StatusPending, StatusPaid, StatusCancelled},
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusPaid},
	StatusCancelled: {StatusCancelled},
}

// InvalidTransitionError reports a state-machine violation, naming the
// attempted (from, to) pair.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition: %s -> %s", e.From, e.To)
}

// IsInvalidTransition reports whether err (or its cause) is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	_, ok := errors.Cause(err).(*InvalidTransitionError)
	return ok
}

// CanTransition validates a status change against the state machine.
func CanTransition(from, to string) error {
	for _, allowed := range transitions[from] {
		if to == allowed {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// MembershipEffect describes the course-membership side effect of a status change.
type MembershipEffect int

const (
	EffectNone MembershipEffect = iota
	EffectGrant
	EffectRevoke
)

// EffectOf returns the membership side effect of transitioning from -> to:
// entering paid grants membership, leaving paid revokes it. A no-op
// transition has no effect.
func EffectOf(from, to string) MembershipEffect {
	if from == to {
		return EffectNone
	}
	if to == StatusPaid {
		return EffectGrant
	}
	if from == StatusPaid {
		return EffectRevoke
	}
	return EffectNone
}

type Order struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"order_number"`
	UserID        string        `json:"user_id"`
	CourseID      string        `json:"course_id"`
	Price         types.Decimal `json:"price"` // snapshot of the course price at creation
	Status        string        `json:"status"`
	PaymentMethod null.String   `json:"payment_method"`
	Note          null.String   `json:"note"`
	CreatedAt     time.Time     `json:"created_at"` // UTC
	UpdatedAt     time.Time     `json:"updated_at"` // UTC
}

func (o Order) IsTerminal() bool {
	return o.Status == StatusPaid || o.Status == StatusCancelled
}

// NewOrder contains information needed to create a new Order.
type NewOrder struct {
	CourseID string `json:"course_id" validate:"required"`
	Note     string `json:"note"`
}

func (no *NewOrder) Validate(validate *validator.Validate) error {
	no.Note = core.CleanString(no.Note)
	return validate.Struct(no)
}

// ConfirmOrder is the admin payment-confirmation request.
type ConfirmOrder struct {
	OrderNumber   string `json:"order_number" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,paymentmethod"`
}

func (co *ConfirmOrder) Validate(validate *validator.Validate) error {
	co.OrderNumber = core.CleanString(co.OrderNumber)
	co.PaymentMethod = core.CleanString(co.PaymentMethod, true /* lower */)
	return validate.Struct(co)
}

type QueryFilter struct {
	UserID   string
	CourseID string
	Status   string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.UserID == "" && qf.CourseID == "" && qf.Status == ""
}

var (
	paymentMethodTag  = "paymentmethod"
	paymentMethodText = "invalid payment method"
)

// RegisterValidators registers order-specific validation tags.
// Must be called once at startup, after core.InitValidators.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paymentMethodTag, paymentMethodValidation)
	core.RegisterCustomTranslation(validate, translator, paymentMethodTag, paymentMethodText)
}

func paymentMethodValidation(fl validator.FieldLevel) bool {
	method := fl.Field().String()
	sort.Strings(AllPaymentMethods)
	if idx := sort.SearchStrings(AllPaymentMethods, method); idx < len(AllPaymentMethods) {
		return AllPaymentMethods[idx] == method
	}
	return false
}
