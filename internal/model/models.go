package model

// All 需要自动迁移的模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&CourseCategory{},
		&Course{},
		&CourseReview{},
		&CurriculumDay{},
		&Video{},
		&Entitlement{},
		&Payment{},
		&VideoProgress{},
		&CourseProgress{},
		&CourseProgressVideo{},
		&Quiz{},
		&Question{},
		&Answer{},
		&QuizAttempt{},
		&QuizResponse{},
		&Certificate{},
	}
}
