package repository

import (
	"context"
	"course_lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) WithTx(tx *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: tx}
}

// CreateIfAbsent 插入证书，(user, course) 已存在时不做任何修改并返回 false
func (r *CertificateRepository) CreateIfAbsent(ctx context.Context, cert *model.Certificate) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cert)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CertificateRepository) FindByUserCourse(ctx context.Context, userID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&cert).Error
	return &cert, err
}

// FindByCode 公开验证，预加载学员与课程
func (r *CertificateRepository) FindByCode(ctx context.Context, code string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).
		Preload("User").
		Preload("Course").
		Where("code = ?", code).
		First(&cert).Error
	return &cert, err
}

func (r *CertificateRepository) ListByUser(ctx context.Context, userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("issued_at desc").
		Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) ListAll(ctx context.Context, limit int) ([]model.Certificate, error) {
	var certs []model.Certificate
	q := r.DB.WithContext(ctx).Preload("User").Preload("Course").Order("issued_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) UpdateDocumentURL(ctx context.Context, id uint, url string) error {
	return r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("id = ?", id).
		Update("document_url", url).Error
}
