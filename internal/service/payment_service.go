package service

import (
	"context"
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
	"course_lms_backend/pkg/logger"
	"course_lms_backend/pkg/monitoring"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"math"
	"strings"
	"time"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CheckoutRequest 发送给支付网关的订单
type CheckoutRequest struct {
	OrderID       string
	Amount        float64
	CourseID      uint
	CourseTitle   string
	CustomerName  string
	CustomerEmail string
}

// PaymentGateway 外部支付服务
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, req CheckoutRequest) (token string, redirectURL string, err error)
}

// MidtransGateway Snap 支付
type MidtransGateway struct {
	client snap.Client
}

func NewMidtransGateway(cfg config.PaymentConfig) *MidtransGateway {
	g := &MidtransGateway{}
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}
	g.client.New(cfg.ServerKey, env)
	return g
}

func (g *MidtransGateway) CreateTransaction(ctx context.Context, req CheckoutRequest) (string, string, error) {
	gross := int64(math.Round(req.Amount))
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       req.OrderID,
				Price:    gross,
				Qty:      1,
				Name:     truncate(req.CourseTitle, 50),
				Category: "course",
			},
		},
	}

	resp, merr := g.client.CreateTransaction(snapReq)
	if merr != nil {
		return "", "", merr
	}
	return resp.Token, resp.RedirectURL, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// PaymentNotification 网关异步通知
type PaymentNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
}

// CheckoutResult Enrolled 为 true 表示免费课程已直接报名
type CheckoutResult struct {
	Payment     *model.Payment `json:"payment,omitempty"`
	Token       string         `json:"token,omitempty"`
	RedirectURL string         `json:"redirectUrl,omitempty"`
	Enrolled    bool           `json:"enrolled"`
}

type PaymentService struct {
	DB              *gorm.DB
	PaymentRepo     *repository.PaymentRepository
	EntitlementRepo *repository.EntitlementRepository
	CourseRepo      *repository.CourseRepository
	UserRepo        *repository.UserRepository
	Entitlements    *EntitlementService
	Gateway         PaymentGateway
	Cfg             config.PaymentConfig
	now             func() time.Time
}

func NewPaymentService(
	db *gorm.DB,
	paymentRepo *repository.PaymentRepository,
	entitlementRepo *repository.EntitlementRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	entitlements *EntitlementService,
	gateway PaymentGateway,
	cfg config.PaymentConfig,
) *PaymentService {
	return &PaymentService{
		DB:              db,
		PaymentRepo:     paymentRepo,
		EntitlementRepo: entitlementRepo,
		CourseRepo:      courseRepo,
		UserRepo:        userRepo,
		Entitlements:    entitlements,
		Gateway:         gateway,
		Cfg:             cfg,
		now:             time.Now,
	}
}

// CheckoutAmount 折后价加税，保留两位小数
func CheckoutAmount(discountedPrice, taxRate float64) float64 {
	return util.RoundTo(discountedPrice*(1+taxRate), 2)
}

func (s *PaymentService) Checkout(ctx context.Context, id Identity, courseID uint) (*CheckoutResult, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, notFound(err, "load course")
	}
	if !course.IsActive {
		return nil, util.ErrNotFound
	}

	entitled, err := s.EntitlementRepo.HasActive(ctx, id.UserID, courseID)
	if err != nil {
		return nil, wrap(err, "check entitlement")
	}
	if entitled {
		return nil, util.ErrAlreadyEntitled
	}

	if course.IsFree() {
		if _, err := s.Entitlements.Enroll(ctx, id, courseID); err != nil {
			return nil, err
		}
		return &CheckoutResult{Enrolled: true}, nil
	}

	user, err := s.UserRepo.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, notFound(err, "load user")
	}

	payment := &model.Payment{
		UserID:   id.UserID,
		CourseID: courseID,
		OrderID:  model.GenerateCode("ORD"),
		Amount:   CheckoutAmount(course.DiscountedPrice, s.Cfg.TaxRate),
		Currency: s.Cfg.Currency,
		Status:   model.PaymentPending,
	}
	if err := s.PaymentRepo.Create(ctx, payment); err != nil {
		return nil, wrap(err, "create payment")
	}

	token, redirectURL, err := s.Gateway.CreateTransaction(ctx, CheckoutRequest{
		OrderID:       payment.OrderID,
		Amount:        payment.Amount,
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
	})
	if err != nil {
		return nil, wrap(err, "create gateway transaction")
	}
	if err := s.PaymentRepo.UpdateGateway(ctx, payment.ID, token, redirectURL); err != nil {
		return nil, wrap(err, "save gateway reference")
	}
	payment.GatewayReference = token
	payment.RedirectURL = redirectURL

	return &CheckoutResult{Payment: payment, Token: token, RedirectURL: redirectURL}, nil
}

// NotificationSignature sha512(order_id + status_code + gross_amount + server_key)
func NotificationSignature(n PaymentNotification, serverKey string) string {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func (s *PaymentService) verifySignature(n PaymentNotification) bool {
	if n.SignatureKey == "" || s.Cfg.ServerKey == "" {
		return false
	}
	want := NotificationSignature(n, s.Cfg.ServerKey)
	got := strings.ToLower(n.SignatureKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// mapGatewayStatus 未知或待定状态返回 pending
func mapGatewayStatus(transactionStatus, fraudStatus string) model.PaymentStatus {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "" || fraudStatus == "accept" {
			return model.PaymentPaid
		}
		if fraudStatus == "deny" {
			return model.PaymentFailed
		}
		return model.PaymentPending
	case "settlement":
		return model.PaymentPaid
	case "deny", "cancel", "expire", "failure":
		return model.PaymentFailed
	case "refund", "partial_refund":
		return model.PaymentRefunded
	default:
		return model.PaymentPending
	}
}

// canTransition 已退款为终态；已支付只能转为退款
func canTransition(from, to model.PaymentStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case model.PaymentRefunded:
		return false
	case model.PaymentPaid:
		return to == model.PaymentRefunded
	case model.PaymentFailed:
		return to == model.PaymentPaid
	default:
		return to != model.PaymentPending
	}
}

// HandleNotification 校验签名并更新订单与授权，重复通知结果不变
func (s *PaymentService) HandleNotification(ctx context.Context, n PaymentNotification) (*model.Payment, error) {
	if !s.verifySignature(n) {
		return nil, util.ErrInvalidSignature
	}

	payment, err := s.PaymentRepo.FindByOrderID(ctx, n.OrderID)
	if err != nil {
		return nil, notFound(err, "load payment")
	}

	status := mapGatewayStatus(n.TransactionStatus, n.FraudStatus)
	if !canTransition(payment.Status, status) {
		logger.Log.Info("ignored payment notification",
			zap.String("orderID", n.OrderID),
			zap.String("from", string(payment.Status)),
			zap.String("to", string(status)))
		return payment, nil
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment.Status = status
		if n.TransactionID != "" {
			payment.GatewayReference = n.TransactionID
		}
		if status == model.PaymentPaid && payment.PaidAt == nil {
			payment.PaidAt = &now
		}
		if err := s.PaymentRepo.WithTx(tx).Save(ctx, payment); err != nil {
			return wrap(err, "save payment")
		}

		entitlements := s.EntitlementRepo.WithTx(tx)
		switch status {
		case model.PaymentPaid:
			e := &model.Entitlement{
				UserID:        payment.UserID,
				CourseID:      payment.CourseID,
				Source:        model.EntitlementPurchase,
				Status:        model.EntitlementCompleted,
				AmountPaid:    payment.Amount,
				TransactionID: payment.OrderID,
				GrantedAt:     payment.PaidAt,
			}
			if err := entitlements.Upsert(ctx, e); err != nil {
				return wrap(err, "grant entitlement")
			}
		case model.PaymentRefunded:
			if err := entitlements.UpdateStatus(ctx, payment.UserID, payment.CourseID, model.EntitlementRefunded); err != nil {
				return wrap(err, "revoke entitlement")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if status == model.PaymentPaid || status == model.PaymentRefunded {
		s.EntitlementRepo.Invalidate(ctx, payment.UserID, payment.CourseID)
	}

	monitoring.PaymentNotifications.WithLabelValues(string(status)).Inc()
	logger.Log.Info("payment notification applied",
		zap.String("orderID", payment.OrderID),
		zap.String("status", string(status)))
	return payment, nil
}

func (s *PaymentService) ListMine(ctx context.Context, id Identity) ([]model.Payment, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	rows, err := s.PaymentRepo.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, wrap(err, "list payments")
	}
	return rows, nil
}
