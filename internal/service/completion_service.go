package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
	"course_lms_backend/pkg/logger"
	"course_lms_backend/pkg/monitoring"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificatePublisher 证书签发后生成并保存证书文件，返回访问地址
type CertificatePublisher interface {
	Publish(ctx context.Context, cert *model.Certificate) (string, error)
}

type CompletionService struct {
	DB           *gorm.DB
	CourseRepo   *repository.CourseRepository
	ProgressRepo *repository.ProgressRepository
	QuizRepo     *repository.QuizRepository
	CertRepo     *repository.CertificateRepository
	Publisher    CertificatePublisher
	now          func() time.Time
}

func NewCompletionService(
	db *gorm.DB,
	courseRepo *repository.CourseRepository,
	progressRepo *repository.ProgressRepository,
	quizRepo *repository.QuizRepository,
	certRepo *repository.CertificateRepository,
	publisher CertificatePublisher,
) *CompletionService {
	return &CompletionService{
		DB:           db,
		CourseRepo:   courseRepo,
		ProgressRepo: progressRepo,
		QuizRepo:     quizRepo,
		CertRepo:     certRepo,
		Publisher:    publisher,
		now:          time.Now,
	}
}

// UpdateProgress 同步已完成视频集合并重新计算百分比；tx 为 nil 时使用默认连接
func (s *CompletionService) UpdateProgress(ctx context.Context, tx *gorm.DB, cp *model.CourseProgress) error {
	if tx == nil {
		tx = s.DB
	}
	courseRepo := s.CourseRepo.WithTx(tx)
	progressRepo := s.ProgressRepo.WithTx(tx)

	videoIDs, err := courseRepo.ListVideoIDs(ctx, cp.CourseID)
	if err != nil {
		return wrap(err, "list course videos")
	}

	completed, err := progressRepo.CompletedVideoIDs(ctx, cp.UserID, videoIDs)
	if err != nil {
		return wrap(err, "list completed videos")
	}
	if err := progressRepo.AddCompletedVideos(ctx, cp.ID, completed); err != nil {
		return wrap(err, "sync completed videos")
	}

	// 课程删除的视频不计入
	count, err := progressRepo.CountCompletedVideos(ctx, cp.ID, videoIDs)
	if err != nil {
		return wrap(err, "count completed videos")
	}

	percentage := 0.0
	if len(videoIDs) > 0 {
		percentage = float64(count) * 100 / float64(len(videoIDs))
	}
	if err := progressRepo.UpdatePercentage(ctx, cp.ID, percentage); err != nil {
		return wrap(err, "update course progress")
	}
	cp.ProgressPercentage = percentage
	return nil
}

// CheckCompletion 满足条件时标记课程完成并签发证书，重复调用只会签发一次
func (s *CompletionService) CheckCompletion(ctx context.Context, cp *model.CourseProgress) (bool, error) {
	if cp.ProgressPercentage < 100 {
		return false, nil
	}

	quizID, err := s.QuizRepo.QuizIDForCourse(ctx, cp.CourseID)
	if err != nil {
		return false, wrap(err, "load course quiz")
	}
	if quizID != 0 && !cp.QuizPassed {
		return false, nil
	}

	var quizScore *float64
	if quizID != 0 {
		quizScore, err = s.QuizRepo.BestScore(ctx, cp.UserID, quizID)
		if err != nil {
			return false, wrap(err, "load quiz score")
		}
	}

	now := s.now()
	cert := &model.Certificate{
		UserID:    cp.UserID,
		CourseID:  cp.CourseID,
		Code:      model.GenerateCode("CERT"),
		IssuedAt:  now,
		QuizScore: quizScore,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.issueCertificate(ctx, tx, cert); err != nil && !errors.Is(err, util.ErrDuplicateCertificate) {
			return err
		}
		if err := s.ProgressRepo.WithTx(tx).MarkCourseCompleted(ctx, cp.ID, now); err != nil {
			return wrap(err, "mark course completed")
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if !cp.IsCompleted {
		cp.IsCompleted = true
		cp.CompletedAt = &now
	}

	if cert.ID != 0 {
		monitoring.CertificatesIssued.Inc()
		logger.Log.Info("certificate issued",
			zap.Uint("userID", cert.UserID),
			zap.Uint("courseID", cert.CourseID),
			zap.String("code", cert.Code))
		s.publish(ctx, cert)
	}
	return true, nil
}

// issueCertificate (user, course) 已存在证书时返回 ErrDuplicateCertificate，不做任何写入
func (s *CompletionService) issueCertificate(ctx context.Context, tx *gorm.DB, cert *model.Certificate) error {
	created, err := s.CertRepo.WithTx(tx).CreateIfAbsent(ctx, cert)
	if err != nil {
		return wrap(err, "issue certificate")
	}
	if !created {
		cert.ID = 0
		return util.ErrDuplicateCertificate
	}
	return nil
}

// publish 生成证书文件，失败只记录日志
func (s *CompletionService) publish(ctx context.Context, cert *model.Certificate) {
	if s.Publisher == nil {
		return
	}
	url, err := s.Publisher.Publish(ctx, cert)
	if err != nil {
		logger.Log.Error("render certificate failed", zap.String("code", cert.Code), zap.Error(err))
		return
	}
	if err := s.CertRepo.UpdateDocumentURL(ctx, cert.ID, url); err != nil {
		logger.Log.Error("save certificate url failed", zap.String("code", cert.Code), zap.Error(err))
		return
	}
	cert.DocumentURL = url
}
