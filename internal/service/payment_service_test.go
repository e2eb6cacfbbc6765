package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/testutil"
	"course_lms_backend/internal/util"
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestCheckoutAmount(t *testing.T) {
	cases := []struct {
		price, tax, want float64
	}{
		{499, 0.18, 588.82},
		{1000, 0.18, 1180},
		{999.99, 0, 999.99},
	}
	for _, tc := range cases {
		if got := CheckoutAmount(tc.price, tc.tax); got != tc.want {
			t.Fatalf("CheckoutAmount(%v, %v) = %v, want %v", tc.price, tc.tax, got, tc.want)
		}
	}
}

func TestMapGatewayStatus(t *testing.T) {
	cases := []struct {
		status, fraud string
		want          model.PaymentStatus
	}{
		{"capture", "accept", model.PaymentPaid},
		{"capture", "challenge", model.PaymentPending},
		{"settlement", "", model.PaymentPaid},
		{"deny", "", model.PaymentFailed},
		{"cancel", "", model.PaymentFailed},
		{"expire", "", model.PaymentFailed},
		{"failure", "", model.PaymentFailed},
		{"refund", "", model.PaymentRefunded},
		{"pending", "", model.PaymentPending},
	}
	for _, tc := range cases {
		if got := mapGatewayStatus(tc.status, tc.fraud); got != tc.want {
			t.Fatalf("%s/%s: got %s, want %s", tc.status, tc.fraud, got, tc.want)
		}
	}
}

func signed(n PaymentNotification) PaymentNotification {
	n.SignatureKey = NotificationSignature(n, testServerKey)
	return n
}

func TestCheckoutAndNotificationGrantEntitlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course := twoDayCourse(t, env.db, "paid-course")
	user := testutil.CreateUser(t, env.db, "payer@example.com")
	id := Identity{UserID: user.ID}

	res, err := env.payments.Checkout(ctx, id, course.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if res.Enrolled || res.Payment.Amount != 588.82 || res.Payment.Status != model.PaymentPending {
		t.Fatalf("unexpected checkout %+v", res.Payment)
	}
	if len(env.gateway.requests) != 1 || res.Token == "" {
		t.Fatalf("gateway not called: %+v", env.gateway.requests)
	}

	_, err = env.payments.HandleNotification(ctx, PaymentNotification{
		OrderID:           res.Payment.OrderID,
		StatusCode:        "200",
		GrossAmount:       "588.82",
		SignatureKey:      "forged",
		TransactionStatus: "settlement",
	})
	expectErr(t, err, util.ErrInvalidSignature)

	n := signed(PaymentNotification{
		OrderID:           res.Payment.OrderID,
		StatusCode:        "200",
		GrossAmount:       "588.82",
		TransactionStatus: "settlement",
		TransactionID:     "tx-1",
	})
	for i := 0; i < 2; i++ {
		p, err := env.payments.HandleNotification(ctx, n)
		if err != nil {
			t.Fatalf("notification %d: %v", i, err)
		}
		if p.Status != model.PaymentPaid || p.PaidAt == nil {
			t.Fatalf("unexpected payment %+v", p)
		}
	}

	ok, err := env.entitlements.HasAccess(ctx, user.ID, course.ID)
	if err != nil || !ok {
		t.Fatalf("expected entitlement after payment, got %v %v", ok, err)
	}
	_, err = env.payments.Checkout(ctx, id, course.ID)
	expectErr(t, err, util.ErrAlreadyEntitled)

	// 已支付的订单不会被过期通知降级
	late := signed(PaymentNotification{OrderID: res.Payment.OrderID, StatusCode: "407", GrossAmount: "588.82", TransactionStatus: "expire"})
	if p, err := env.payments.HandleNotification(ctx, late); err != nil || p.Status != model.PaymentPaid {
		t.Fatalf("late expire: %+v %v", p, err)
	}

	refund := signed(PaymentNotification{OrderID: res.Payment.OrderID, StatusCode: "200", GrossAmount: "588.82", TransactionStatus: "refund"})
	if _, err := env.payments.HandleNotification(ctx, refund); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if ok, _ := env.entitlements.HasAccess(ctx, user.ID, course.ID); ok {
		t.Fatal("refund must revoke access")
	}
}

func TestCheckoutFreeCourseEnrolls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course := testutil.CreateCourse(t, env.db, "free-checkout", 0,
		testutil.DaySpec{DayNumber: 1, Videos: []testutil.VideoSpec{{Duration: 60}}},
	)
	user := testutil.CreateUser(t, env.db, "free@example.com")

	res, err := env.payments.Checkout(ctx, Identity{UserID: user.ID}, course.ID)
	if err != nil || !res.Enrolled {
		t.Fatalf("expected direct enrollment, got %+v %v", res, err)
	}
	if len(env.gateway.requests) != 0 {
		t.Fatal("free course must not hit the gateway")
	}
}

func TestHandleNotificationUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	n := signed(PaymentNotification{OrderID: "ORD-MISSING", StatusCode: "200", GrossAmount: "1.00", TransactionStatus: "settlement"})
	_, err := env.payments.HandleNotification(context.Background(), n)
	expectErr(t, err, util.ErrNotFound)
}

func TestRefundInvalidatesCacheAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course := twoDayCourse(t, env.db, "cached-course")
	user := testutil.CreateUser(t, env.db, "cached@example.com")

	res, err := env.payments.Checkout(ctx, Identity{UserID: user.ID}, course.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	paid := signed(PaymentNotification{OrderID: res.Payment.OrderID, StatusCode: "200", GrossAmount: "588.82", TransactionStatus: "settlement"})
	if _, err := env.payments.HandleNotification(ctx, paid); err != nil {
		t.Fatalf("paid: %v", err)
	}
	if ok, err := env.entitlements.HasAccess(ctx, user.ID, course.ID); err != nil || !ok {
		t.Fatalf("expected access, got %v %v", ok, err)
	}
	cached, deletesBefore := env.cache.stats()
	if cached != 1 {
		t.Fatalf("expected a cached entitlement, got %d", cached)
	}

	// 回滚的写入不能清理缓存，缓存只跟随已提交的状态
	rollback := errors.New("rollback")
	err = env.db.Transaction(func(tx *gorm.DB) error {
		if err := env.entitlementRepo.WithTx(tx).UpdateStatus(ctx, user.ID, course.ID, model.EntitlementRefunded); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback, got %v", err)
	}
	if cached, deletes := env.cache.stats(); cached != 1 || deletes != deletesBefore {
		t.Fatalf("repository write touched the cache: cached=%d deletes=%d", cached, deletes)
	}
	if ok, _ := env.entitlements.HasAccess(ctx, user.ID, course.ID); !ok {
		t.Fatal("rolled back refund must keep access")
	}

	refund := signed(PaymentNotification{OrderID: res.Payment.OrderID, StatusCode: "200", GrossAmount: "588.82", TransactionStatus: "refund"})
	if _, err := env.payments.HandleNotification(ctx, refund); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if cached, deletes := env.cache.stats(); cached != 0 || deletes != deletesBefore+1 {
		t.Fatalf("expected one invalidation after commit, cached=%d deletes=%d", cached, deletes)
	}
	if ok, _ := env.entitlements.HasAccess(ctx, user.ID, course.ID); ok {
		t.Fatal("refund must revoke access")
	}
}
