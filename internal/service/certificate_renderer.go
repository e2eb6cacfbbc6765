package service

import (
	"bytes"
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/util"
	"fmt"
	"image/color"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

const (
	certificateWidth  = 1600
	certificateHeight = 1131
)

// CertificateDocument 证书文件需要展示的内容
type CertificateDocument struct {
	Code        string
	StudentName string
	CourseTitle string
	IssuedAt    time.Time
	QuizScore   *float64
}

// CertificateRenderer 把证书内容绘制为 PNG
type CertificateRenderer interface {
	Render(doc CertificateDocument) ([]byte, error)
}

type PNGCertificateRenderer struct {
	issuer    string
	titleFace font.Face
	bodyFace  font.Face
}

// NewPNGCertificateRenderer 未配置字体时使用 gg 内置字体
func NewPNGCertificateRenderer(cfg config.CertificateConfig) (*PNGCertificateRenderer, error) {
	r := &PNGCertificateRenderer{issuer: cfg.IssuerName}
	if cfg.FontPath == "" {
		return r, nil
	}

	title, err := gg.LoadFontFace(cfg.FontPath, 64)
	if err != nil {
		return nil, fmt.Errorf("load certificate font: %w", err)
	}
	body, err := gg.LoadFontFace(cfg.FontPath, 32)
	if err != nil {
		return nil, fmt.Errorf("load certificate font: %w", err)
	}
	r.titleFace = title
	r.bodyFace = body
	return r, nil
}

func (r *PNGCertificateRenderer) setFace(dc *gg.Context, face font.Face) {
	if face != nil {
		dc.SetFontFace(face)
	}
}

func (r *PNGCertificateRenderer) Render(doc CertificateDocument) ([]byte, error) {
	const w, h = float64(certificateWidth), float64(certificateHeight)
	dc := gg.NewContext(certificateWidth, certificateHeight)

	dc.SetColor(color.White)
	dc.Clear()

	// 边框
	dc.SetColor(color.NRGBA{R: 0x1f, G: 0x3a, B: 0x68, A: 0xff})
	dc.SetLineWidth(12)
	dc.DrawRectangle(40, 40, w-80, h-80)
	dc.Stroke()
	dc.SetLineWidth(2)
	dc.DrawRectangle(64, 64, w-128, h-128)
	dc.Stroke()

	r.setFace(dc, r.titleFace)
	dc.DrawStringAnchored("Certificate of Completion", w/2, 240, 0.5, 0.5)

	r.setFace(dc, r.bodyFace)
	dc.SetColor(color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff})
	dc.DrawStringAnchored("This certifies that", w/2, 380, 0.5, 0.5)

	r.setFace(dc, r.titleFace)
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(doc.StudentName, w/2, 480, 0.5, 0.5)

	r.setFace(dc, r.bodyFace)
	dc.SetColor(color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff})
	dc.DrawStringAnchored("has successfully completed the course", w/2, 580, 0.5, 0.5)
	dc.DrawStringAnchored(doc.CourseTitle, w/2, 650, 0.5, 0.5)

	if doc.QuizScore != nil {
		dc.DrawStringAnchored(fmt.Sprintf("Final quiz score: %.0f%%", *doc.QuizScore), w/2, 730, 0.5, 0.5)
	}

	dc.DrawStringAnchored("Issued "+doc.IssuedAt.Format(util.DateFormat), 200, h-180, 0, 0.5)
	dc.DrawStringAnchored("Certificate No. "+doc.Code, w-200, h-180, 1, 0.5)
	if r.issuer != "" {
		dc.DrawStringAnchored(r.issuer, w/2, h-140, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode certificate png: %w", err)
	}
	return buf.Bytes(), nil
}
