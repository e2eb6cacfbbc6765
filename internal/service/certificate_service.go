package service

import (
	"bytes"
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
	"fmt"
)

type CertificateService struct {
	CertRepo   *repository.CertificateRepository
	UserRepo   *repository.UserRepository
	CourseRepo *repository.CourseRepository
	Renderer   CertificateRenderer
	Storage    *StorageService
}

func NewCertificateService(
	certRepo *repository.CertificateRepository,
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	renderer CertificateRenderer,
	storage *StorageService,
) *CertificateService {
	return &CertificateService{
		CertRepo:   certRepo,
		UserRepo:   userRepo,
		CourseRepo: courseRepo,
		Renderer:   renderer,
		Storage:    storage,
	}
}

// Publish 渲染证书图片并上传，返回访问地址
func (s *CertificateService) Publish(ctx context.Context, cert *model.Certificate) (string, error) {
	user, err := s.UserRepo.FindByID(ctx, cert.UserID)
	if err != nil {
		return "", fmt.Errorf("load certificate user: %w", err)
	}
	course, err := s.CourseRepo.FindByID(ctx, cert.CourseID)
	if err != nil {
		return "", fmt.Errorf("load certificate course: %w", err)
	}

	png, err := s.Renderer.Render(CertificateDocument{
		Code:        cert.Code,
		StudentName: user.Name,
		CourseTitle: course.Title,
		IssuedAt:    cert.IssuedAt,
		QuizScore:   cert.QuizScore,
	})
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("certificates/%d/%s.png", cert.CourseID, cert.Code)
	return s.Storage.Upload(ctx, key, bytes.NewReader(png), int64(len(png)), util.MimePNG)
}

// Republish 重新生成证书文件，用于渲染失败后的补偿
func (s *CertificateService) Republish(ctx context.Context, code string) (*model.Certificate, error) {
	cert, err := s.CertRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "load certificate")
	}
	url, err := s.Publish(ctx, cert)
	if err != nil {
		return nil, err
	}
	if err := s.CertRepo.UpdateDocumentURL(ctx, cert.ID, url); err != nil {
		return nil, wrap(err, "save certificate url")
	}
	cert.DocumentURL = url
	return cert, nil
}

func (s *CertificateService) ListMine(ctx context.Context, id Identity) ([]model.Certificate, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	certs, err := s.CertRepo.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, wrap(err, "list certificates")
	}
	return certs, nil
}

// Verify 公开的证书编号查询
func (s *CertificateService) Verify(ctx context.Context, code string) (*model.Certificate, error) {
	cert, err := s.CertRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "load certificate")
	}
	return cert, nil
}

func (s *CertificateService) ForCourse(ctx context.Context, id Identity, courseID uint) (*model.Certificate, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	cert, err := s.CertRepo.FindByUserCourse(ctx, id.UserID, courseID)
	if err != nil {
		return nil, notFound(err, "load certificate")
	}
	return cert, nil
}
