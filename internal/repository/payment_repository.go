package repository

import (
	"context"
	"course_lms_backend/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	var p model.Payment
	err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	return &p, err
}

// UpdateGateway 记录网关返回的 token 与跳转地址
func (r *PaymentRepository) UpdateGateway(ctx context.Context, id uint, reference, redirectURL string) error {
	return r.DB.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"gateway_reference": reference,
			"redirect_url":      redirectURL,
		}).Error
}

func (r *PaymentRepository) Save(ctx context.Context, p *model.Payment) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID uint) ([]model.Payment, error) {
	var rows []model.Payment
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&rows).Error
	return rows, err
}
