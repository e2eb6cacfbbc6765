package util

import "errors"

// 领域错误，由 RespondError 统一转换为响应
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrNotFound               = errors.New("resource not found")
	ErrNotEnrolled            = errors.New("course not purchased or enrolled")
	ErrVideosIncomplete       = errors.New("all course videos must be completed before taking the quiz")
	ErrMaxAttemptsReached     = errors.New("maximum quiz attempts reached")
	ErrQuizAlreadyPassed      = errors.New("quiz already passed")
	ErrAlreadySubmitted       = errors.New("quiz attempt already submitted")
	ErrDuplicateCertificate   = errors.New("certificate already issued")
	ErrAlreadyEntitled        = errors.New("course already purchased or enrolled")
	ErrPaidCourse             = errors.New("course requires purchase")
	ErrInvalidSignature       = errors.New("invalid payment signature")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrEmailRegistered        = errors.New("email already registered")
	ErrInvalidRating          = errors.New("rating must be between 1 and 5")
)

var domainErrors = []error{
	ErrAuthenticationRequired,
	ErrNotFound,
	ErrNotEnrolled,
	ErrVideosIncomplete,
	ErrMaxAttemptsReached,
	ErrQuizAlreadyPassed,
	ErrAlreadySubmitted,
	ErrDuplicateCertificate,
	ErrAlreadyEntitled,
	ErrPaidCourse,
	ErrInvalidSignature,
	ErrInvalidCredentials,
	ErrEmailRegistered,
	ErrInvalidRating,
}

// IsDomainError 领域错误之外的都视为存储/基础设施故障，可重试
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
