package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/util"
	"testing"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := &model.User{Name: "Asha", Email: " Asha@Example.com ", Password: "s3cret-pass"}
	if err := env.auth.Register(ctx, user); err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Password == "s3cret-pass" || user.Role != model.Student {
		t.Fatalf("password not hashed or role unset: %+v", user)
	}

	err := env.auth.Register(ctx, &model.User{Name: "Dup", Email: "asha@example.com", Password: "x"})
	expectErr(t, err, util.ErrEmailRegistered)

	_, _, err = env.auth.Login(ctx, "asha@example.com", "wrong")
	expectErr(t, err, util.ErrInvalidCredentials)

	token, logged, err := env.auth.Login(ctx, "ASHA@example.com", "s3cret-pass")
	if err != nil || token == "" || logged.ID != user.ID {
		t.Fatalf("login: %v %v", logged, err)
	}

	claims, err := util.ParseJWT(token, "test-secret")
	if err != nil || claims.UserID != user.ID {
		t.Fatalf("parse token: %+v %v", claims, err)
	}
}
