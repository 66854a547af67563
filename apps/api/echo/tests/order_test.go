package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/mekesim/backend/core/order"
	"github.com/mekesim/backend/core/user"
	emailsvc "github.com/mekesim/backend/services/email"
	testutil "github.com/mekesim/backend/tests"
)

func Test_orderApi_create(t *testing.T) {
	resetDB(t)

	crs := testutil.CreateCourse(t, courseRepo, "Go from scratch", 199, false)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", true)
	heroToken := getToken(t, hero)
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner1", "owner@test.cd", "", true)
	db.SetCourseMember(crs.ID, owner.ID, true)

	var firstNumber string

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", token: heroToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "this field is required"}),
		},
		{
			name: "unknown course", token: heroToken, wantCode: http.StatusNotFound,
			body:     marchallObj(t, order.NewOrder{CourseID: "nope"}),
			wantData: marchallObj(t, httpErr{Error: "course not found"}),
		},
		{
			name: "already owned", token: getToken(t, owner), wantCode: http.StatusConflict,
			body:     marchallObj(t, order.NewOrder{CourseID: crs.ID}),
			wantData: marchallObj(t, httpErr{Error: "user already owns this course"}),
		},
		{name: "created", token: heroToken, wantCode: http.StatusCreated, body: marchallObj(t, order.NewOrder{CourseID: crs.ID, Note: "gift"})},
		{name: "duplicate returns the open order", token: heroToken, wantCode: http.StatusOK, body: marchallObj(t, order.NewOrder{CourseID: crs.ID})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/orders"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			switch tt.wantCode {
			case http.StatusCreated:
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var ord order.Order
				if err := json.Unmarshal(rec.Body.Bytes(), &ord); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if ord.Status != order.StatusUnpaid {
					t.Errorf("failed! Status = %q; want %q", ord.Status, order.StatusUnpaid)
				}
				if ord.OrderNumber == "" {
					t.Error("failed! empty order number")
				}
				if got := ord.Price.String(); got != "199" {
					t.Errorf("failed! Price = %q; want \"199\"", got)
				}
				firstNumber = ord.OrderNumber
			case http.StatusOK:
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var ord order.Order
				if err := json.Unmarshal(rec.Body.Bytes(), &ord); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if ord.OrderNumber != firstNumber {
					t.Errorf("failed! OrderNumber = %q; want the open order %q", ord.OrderNumber, firstNumber)
				}
			default:
				checkCodeAndData(t, tt, rec)
			}
		})
	}
}

func Test_orderApi_confirm(t *testing.T) {
	resetDB(t)

	crs := testutil.CreateCourse(t, courseRepo, "Go from scratch", 199, false)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "adminboss", "admin@test.cd", "", true)
	adminProf := testutil.SetRole(t, usrRepo, admin.ID, user.RoleAdmin)
	adminToken := getToken(t, admin, adminProf)

	ord := testutil.CreateOrder(t, orderRepo, "20250101000001", hero.ID, crs.ID, order.StatusUnpaid, 199)
	confirmBody := marchallObj(t, order.ConfirmOrder{OrderNumber: ord.OrderNumber, PaymentMethod: order.PaymentAlipay})

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, hero), wantCode: http.StatusForbidden,
			body:     confirmBody,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"order_number": "this field is required", "payment_method": "this field is required"}),
		},
		{
			name: "invalid payment method", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, order.ConfirmOrder{OrderNumber: ord.OrderNumber, PaymentMethod: "cash"}),
			wantData: marchallObj(t, map[string]string{"payment_method": "invalid payment method"}),
		},
		{
			name: "unknown order", token: adminToken, wantCode: http.StatusNotFound,
			body:     marchallObj(t, order.ConfirmOrder{OrderNumber: "nope", PaymentMethod: order.PaymentAlipay}),
			wantData: marchallObj(t, httpErr{Error: "order not found"}),
		},
		{name: "confirmed", token: adminToken, wantCode: http.StatusOK, body: confirmBody},
		{
			name: "second confirm loses", token: adminToken, wantCode: http.StatusConflict,
			body:     confirmBody,
			wantData: marchallObj(t, httpErr{Error: "invalid order transition: paid -> paid"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/orders/confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.name == "confirmed" {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var confirmed order.Order
				if err := json.Unmarshal(rec.Body.Bytes(), &confirmed); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if confirmed.Status != order.StatusPaid {
					t.Errorf("failed! Status = %q; want %q", confirmed.Status, order.StatusPaid)
				}
				if confirmed.PaymentMethod.String != order.PaymentAlipay {
					t.Errorf("failed! PaymentMethod = %q; want %q", confirmed.PaymentMethod.String, order.PaymentAlipay)
				}
				member, err := courseRepo.IsCourseMember(context.Background(), crs.ID, hero.ID)
				if err != nil {
					t.Fatalf("IsCourseMember() failed: %v", err)
				}
				if !member {
					t.Error("failed! membership not granted on payment")
				}
				if len(emailsvc.SentMessages) != 1 {
					t.Errorf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_orderApi_cancel(t *testing.T) {
	resetDB(t)

	crs := testutil.CreateCourse(t, courseRepo, "Go from scratch", 199, false)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", true)
	stranger := testutil.CreateUser(t, usrRepo, "Stranger", "stranger1", "stranger@test.cd", "", true)

	ord := testutil.CreateOrder(t, orderRepo, "20250101000001", hero.ID, crs.ID, order.StatusUnpaid, 199)
	paid := testutil.CreateOrder(t, orderRepo, "20250101000002", hero.ID, crs.ID, order.StatusPaid, 199)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/orders/" + ord.OrderNumber + "/cancel", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Owner or admin only", path: "/v1/orders/" + ord.OrderNumber + "/cancel", token: getToken(t, stranger),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "cancelled", path: "/v1/orders/" + ord.OrderNumber + "/cancel", token: getToken(t, hero), wantCode: http.StatusOK},
		{name: "cancel again is a no-op", path: "/v1/orders/" + ord.OrderNumber + "/cancel", token: getToken(t, hero), wantCode: http.StatusOK},
		{
			name: "paid order cannot be cancelled", path: "/v1/orders/" + paid.OrderNumber + "/cancel", token: getToken(t, hero),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "invalid order transition: paid -> cancelled"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var cancelled order.Order
				if err := json.Unmarshal(rec.Body.Bytes(), &cancelled); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if cancelled.Status != order.StatusCancelled {
					t.Errorf("failed! Status = %q; want %q", cancelled.Status, order.StatusCancelled)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_orderApi_retrieve(t *testing.T) {
	resetDB(t)

	crs := testutil.CreateCourse(t, courseRepo, "Go from scratch", 199, false)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", true)
	stranger := testutil.CreateUser(t, usrRepo, "Stranger", "stranger1", "stranger@test.cd", "", true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "adminboss", "admin@test.cd", "", true)
	adminProf := testutil.SetRole(t, usrRepo, admin.ID, user.RoleAdmin)

	ord := testutil.CreateOrder(t, orderRepo, "20250101000001", hero.ID, crs.ID, order.StatusUnpaid, 199)
	path := "/v1/orders/" + ord.OrderNumber

	tests := []httpTest{
		{name: "Auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "hidden from strangers", path: path, token: getToken(t, stranger),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "owner may look", path: path, token: getToken(t, hero), wantCode: http.StatusOK, wantData: marchallObj(t, ord)},
		{name: "admin may look", path: path, token: getToken(t, admin, adminProf), wantCode: http.StatusOK, wantData: marchallObj(t, ord)},
		{
			name: "unknown order", path: "/v1/orders/nope", token: getToken(t, hero),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "order not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_myOrdersAndCourses(t *testing.T) {
	resetDB(t)

	goCrs := testutil.CreateCourse(t, courseRepo, "Go from scratch", 199, false)
	gitCrs := testutil.CreateCourse(t, courseRepo, "Git basics", 99, false)

	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other1", "other@test.cd", "", true)
	queen := testutil.CreateUser(t, usrRepo, "Queen", "queen", "queen@test.cd", "", true)
	queenProf := testutil.SetRole(t, usrRepo, queen.ID, user.RoleVIP, time.Now().Add(24*time.Hour))

	heroOrd := testutil.CreateOrder(t, orderRepo, "20250101000001", hero.ID, goCrs.ID, order.StatusPaid, 199)
	testutil.CreateOrder(t, orderRepo, "20250101000002", other.ID, gitCrs.ID, order.StatusUnpaid, 99)
	db.SetCourseMember(goCrs.ID, hero.ID, true)

	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "my orders", path: "/v1/users/me/orders", token: getToken(t, hero), wantData: marchallList(t, heroOrd)},
		{name: "my orders (status filter misses)", path: "/v1/users/me/orders?status=unpaid", token: getToken(t, hero), wantData: empty},
		{name: "my orders (none)", path: "/v1/users/me/orders", token: getToken(t, queen, queenProf), wantData: empty},
		{name: "my courses (member)", path: "/v1/users/me/courses", token: getToken(t, hero), wantData: marchallList(t, goCrs)},
		{name: "my courses (none)", path: "/v1/users/me/courses", token: getToken(t, other), wantData: empty},
		{name: "my courses (VIP sees all)", path: "/v1/users/me/courses", token: getToken(t, queen, queenProf), wantData: marchallList(t, gitCrs, goCrs)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.wantCode = http.StatusOK

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
