//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"quality-vision/internal/domain/entity"
)

const readRetryDelay = 50 * time.Millisecond

// Camera источник кадров с устройства видеозахвата.
type Camera struct {
	capture *gocv.VideoCapture
	log     *logrus.Logger

	mu    sync.RWMutex
	frame gocv.Mat
	size  entity.FrameSize

	done chan struct{}
}

// OpenCamera открывает устройство и начинает читать кадры до отмены ctx.
// Пока первый кадр не прочитан, FrameSize возвращает нулевые размеры.
func OpenCamera(ctx context.Context, device int, log *logrus.Logger) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	c := &Camera{
		capture: capture,
		log:     log,
		frame:   gocv.NewMat(),
		done:    make(chan struct{}),
	}
	go c.loop(ctx)

	log.WithField("device", device).Info("Camera opened")
	return c, nil
}

func (c *Camera) loop(ctx context.Context) {
	defer close(c.done)

	mat := gocv.NewMat()
	defer mat.Close()

	for ctx.Err() == nil {
		if ok := c.capture.Read(&mat); !ok || mat.Empty() {
			time.Sleep(readRetryDelay)
			continue
		}

		c.mu.Lock()
		if c.size.Width != mat.Cols() || c.size.Height != mat.Rows() {
			c.log.WithFields(logrus.Fields{
				"width":  mat.Cols(),
				"height": mat.Rows(),
			}).Info("Camera frame size changed")
		}
		c.size = entity.FrameSize{Width: mat.Cols(), Height: mat.Rows()}
		mat.CopyTo(&c.frame)
		c.mu.Unlock()
	}
}

// FrameSize собственные размеры последнего кадра
func (c *Camera) FrameSize() entity.FrameSize {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Highlight рисует рамки дефектов поверх последнего кадра и возвращает JPEG.
func (c *Camera) Highlight(defects []entity.Defect) ([]byte, error) {
	c.mu.RLock()
	if c.frame.Empty() {
		c.mu.RUnlock()
		return nil, errors.New("no frame captured yet")
	}
	mat := c.frame.Clone()
	size := c.size
	c.mu.RUnlock()
	defer mat.Close()

	for _, d := range defects {
		box := d.Normalized().Scale(size.Width, size.Height)
		rect := image.Rect(int(box.X), int(box.Y), int(box.X+box.Width), int(box.Y+box.Height))
		gocv.Rectangle(&mat, rect, d.Category.Color(), 3)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close ждёт остановки чтения и освобождает устройство. ctx, переданный в
// OpenCamera, должен быть уже отменён.
func (c *Camera) Close() error {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame.Close()
	return c.capture.Close()
}
