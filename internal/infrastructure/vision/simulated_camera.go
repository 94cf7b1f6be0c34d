package vision

import (
	"errors"
	"time"

	"quality-vision/internal/domain/entity"
	"quality-vision/internal/domain/port"
)

// ErrCameraUnavailable камера не открылась или сборка без OpenCV.
var ErrCameraUnavailable = errors.New("gocv build tag is not enabled")

// SimulatedCamera источник кадров без устройства: после прогрева отдаёт
// фиксированные размеры. До прогрева размеры нулевые, как у видео, которое
// ещё не загрузило метаданные.
type SimulatedCamera struct {
	size    entity.FrameSize
	readyAt time.Time
	now     func() time.Time
}

// NewSimulatedCamera создаёт источник размером width x height.
func NewSimulatedCamera(width, height int, warmup time.Duration) *SimulatedCamera {
	return newSimulatedCamera(width, height, warmup, time.Now)
}

func newSimulatedCamera(width, height int, warmup time.Duration, now func() time.Time) *SimulatedCamera {
	return &SimulatedCamera{
		size:    entity.FrameSize{Width: width, Height: height},
		readyAt: now().Add(warmup),
		now:     now,
	}
}

func (c *SimulatedCamera) FrameSize() entity.FrameSize {
	if c.now().Before(c.readyAt) {
		return entity.FrameSize{}
	}
	return c.size
}

var _ port.FrameSource = (*SimulatedCamera)(nil)
