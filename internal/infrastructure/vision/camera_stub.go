//go:build !gocv
// +build !gocv

package vision

import (
	"context"

	"github.com/sirupsen/logrus"

	"quality-vision/internal/domain/entity"
)

// Camera заглушка для сборки без OpenCV.
type Camera struct{}

// OpenCamera возвращает ошибку, если сборка без тега gocv.
func OpenCamera(context.Context, int, *logrus.Logger) (*Camera, error) {
	return nil, ErrCameraUnavailable
}

// FrameSize всегда нулевой
func (c *Camera) FrameSize() entity.FrameSize {
	return entity.FrameSize{}
}

// Highlight возвращает ошибку, если сборка без тега gocv.
func (c *Camera) Highlight([]entity.Defect) ([]byte, error) {
	return nil, ErrCameraUnavailable
}

// Close ничего не делает
func (c *Camera) Close() error {
	return nil
}
