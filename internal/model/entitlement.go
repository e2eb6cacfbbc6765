package model

import "time"

type EntitlementSource string

const (
	EntitlementPurchase   EntitlementSource = "purchase"
	EntitlementEnrollment EntitlementSource = "enrollment"
)

type EntitlementStatus string

const (
	EntitlementPending   EntitlementStatus = "pending"
	EntitlementCompleted EntitlementStatus = "completed"
	EntitlementFailed    EntitlementStatus = "failed"
	EntitlementRefunded  EntitlementStatus = "refunded"
)

// Entitlement 用户对课程的购买/报名记录，每个 (user, course) 仅一行
// swagger:model Entitlement
type Entitlement struct {
	BaseModel
	UserID        uint              `gorm:"uniqueIndex:idx_entitlement_user_course;not null" json:"userId"`
	CourseID      uint              `gorm:"uniqueIndex:idx_entitlement_user_course;not null" json:"courseId"`
	Source        EntitlementSource `gorm:"size:20;not null" json:"source"`
	Status        EntitlementStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	AmountPaid    float64           `gorm:"type:decimal(10,2);default:0" json:"amountPaid"`
	TransactionID string            `gorm:"size:200" json:"transactionId"`
	GrantedAt     *time.Time        `json:"grantedAt,omitempty"`
	ExpiresAt     *time.Time        `json:"expiresAt,omitempty"`
	Course        *Course           `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Entitlement) TableName() string {
	return "entitlements"
}

// Active 已完成且未过期
func (e *Entitlement) Active(now time.Time) bool {
	if e.Status != EntitlementCompleted {
		return false
	}
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// swagger:model Payment
type Payment struct {
	BaseModel
	UserID           uint          `gorm:"index;not null" json:"userId"`
	CourseID         uint          `gorm:"index;not null" json:"courseId"`
	OrderID          string        `gorm:"size:100;uniqueIndex;not null" json:"orderId"`
	Amount           float64       `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency         string        `gorm:"size:10;default:'INR'" json:"currency"`
	Status           PaymentStatus `gorm:"size:20;default:'pending'" json:"status"`
	GatewayReference string        `gorm:"size:100" json:"gatewayReference"`
	RedirectURL      string        `gorm:"size:500" json:"redirectUrl"`
	PaidAt           *time.Time    `json:"paidAt,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}
