package main

import (
	"bytes"
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/testutil"
	"course_lms_backend/internal/util"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
)

func newTestContext(t *testing.T) (*commandContext, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	ctx := newCommandContext()
	ctx.db = db
	ctx.cfg = &config.Config{
		Storage:     config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
		Certificate: config.CertificateConfig{IssuerName: "Test Academy"},
	}
	return ctx, db
}

func run(t *testing.T, ctx *commandContext, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRecomputeIssuesCertificateAndLists(t *testing.T) {
	ctx, db := newTestContext(t)
	user := testutil.CreateUser(t, db, "cli@example.com")
	course := testutil.CreateCourse(t, db, "cli-course", 0,
		testutil.DaySpec{DayNumber: 1, IsFree: true, Videos: []testutil.VideoSpec{{Duration: 120}}},
	)

	now := time.Now()
	vp := &model.VideoProgress{
		UserID:            user.ID,
		VideoID:           course.Days[0].Videos[0].ID,
		WatchedDuration:   120,
		WatchedPercentage: 100,
		IsCompleted:       true,
		CompletedAt:       &now,
		LastWatched:       now,
	}
	if err := db.Create(vp).Error; err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	out, err := run(t, ctx, "progress", "recompute", "--user", fmt.Sprint(user.ID), "--course", fmt.Sprint(course.ID))
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !strings.Contains(out, "100.0%") || !strings.Contains(out, "completed=yes") {
		t.Fatalf("unexpected recompute output %q", out)
	}

	// 重复执行不会产生第二张证书
	if _, err := run(t, ctx, "progress", "recompute", "--user", fmt.Sprint(user.ID), "--course", fmt.Sprint(course.ID)); err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	var certs []model.Certificate
	if err := db.Find(&certs).Error; err != nil || len(certs) != 1 {
		t.Fatalf("expected one certificate, got %d (%v)", len(certs), err)
	}
	if certs[0].DocumentURL == "" {
		t.Fatal("certificate document should be published")
	}

	out, err = run(t, ctx, "progress", "report", "--course", fmt.Sprint(course.ID))
	if err != nil || !strings.Contains(out, "100.0%") {
		t.Fatalf("report: %v %q", err, out)
	}

	out, err = run(t, ctx, "certificates", "list")
	if err != nil || !strings.Contains(out, certs[0].Code) {
		t.Fatalf("list: %v %q", err, out)
	}

	out, err = run(t, ctx, "certificates", "republish", certs[0].Code)
	if err != nil || !strings.Contains(out, certs[0].Code+" -> ") {
		t.Fatalf("republish: %v %q", err, out)
	}
}

func TestRecomputeUnknownCourse(t *testing.T) {
	ctx, _ := newTestContext(t)
	_, err := run(t, ctx, "progress", "recompute", "--user", "1", "--course", "999")
	if !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVideoProbeStoresDuration(t *testing.T) {
	ctx, db := newTestContext(t)
	course := testutil.CreateCourse(t, db, "probe-course", 0,
		testutil.DaySpec{DayNumber: 1, Videos: []testutil.VideoSpec{{Duration: 0}}},
	)
	videoID := course.Days[0].Videos[0].ID

	ctx.probe = func(path string) (*util.VideoInfo, error) {
		return &util.VideoInfo{Duration: 61.2, Width: 1280, Height: 720, Format: "mp4"}, nil
	}

	out, err := run(t, ctx, "video", "probe", fmt.Sprint(videoID), "lesson.mp4")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !strings.Contains(out, "01:02") {
		t.Fatalf("unexpected probe output %q", out)
	}

	var v model.Video
	if err := db.First(&v, videoID).Error; err != nil {
		t.Fatalf("reload video: %v", err)
	}
	if v.DurationSeconds != 62 {
		t.Fatalf("expected 62 seconds, got %d", v.DurationSeconds)
	}

	if _, err := run(t, ctx, "video", "probe", "9999", "lesson.mp4"); err == nil {
		t.Fatal("probing an unknown video should fail")
	}

	if _, err := run(t, ctx, "video", "set-duration", fmt.Sprint(videoID), "1:02:03"); err != nil {
		t.Fatalf("set-duration: %v", err)
	}
	if err := db.First(&v, videoID).Error; err != nil || v.DurationSeconds != 3723 {
		t.Fatalf("expected 3723 seconds, got %d (%v)", v.DurationSeconds, err)
	}
	if _, err := run(t, ctx, "video", "set-duration", fmt.Sprint(videoID), "bad"); err == nil {
		t.Fatal("malformed duration should fail")
	}
}
