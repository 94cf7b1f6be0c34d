package app

import (
	"context"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"quality-vision/internal/domain/entity"
	"quality-vision/internal/domain/port"
)

const (
	minCycleDelay = 1000 * time.Millisecond
	cycleSpread   = 2000 * time.Millisecond

	// maxHitProbability вероятность срабатывания при чувствительности 100.
	maxHitProbability = 0.3

	minBoxWidth     = 150.0
	boxWidthSpread  = 100.0
	minBoxHeight    = 50.0
	boxHeightSpread = 50.0

	minConfidence    = 0.6
	confidenceSpread = 0.4
)

// DetectionSink получатель результатов одного цикла активации детектора.
type DetectionSink interface {
	// Sensitivity возвращает текущую чувствительность 10..100
	Sensitivity(ctx context.Context) (int, error)
	// Emit передаёт новую запись владельцу истории
	Emit(ctx context.Context, defect entity.Defect) error
}

// SyntheticDetector имитирует обнаружение дефектов: ждёт случайную паузу и
// с вероятностью, зависящей от чувствительности, выдаёт случайный дефект.
type SyntheticDetector struct {
	source port.FrameSource
	rnd    port.RandomSource
	log    *logrus.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
	newID func() string
}

// NewSyntheticDetector создаёт детектор поверх источника кадров.
func NewSyntheticDetector(source port.FrameSource, rnd port.RandomSource, log *logrus.Logger) *SyntheticDetector {
	return &SyntheticDetector{
		source: source,
		rnd:    rnd,
		log:    log,
		now:    time.Now,
		after:  time.After,
		newID:  func() string { return ulid.Make().String() },
	}
}

// Probability вероятность срабатывания за один цикл.
func Probability(sensitivity int) float64 {
	s := min(max(sensitivity, entity.MinSensitivity), entity.MaxSensitivity)
	return float64(s) / 100 * maxHitProbability
}

// NextDelay пауза перед следующим циклом, от 1 до 3 секунд.
func (d *SyntheticDetector) NextDelay() time.Duration {
	return minCycleDelay + time.Duration(d.rnd.Float64()*float64(cycleSpread))
}

// Run крутит цикл "пауза, затем возможное срабатывание" до отмены ctx.
// Отмена ctx снимает ожидающий таймер.
func (d *SyntheticDetector) Run(ctx context.Context, sink DetectionSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.after(d.NextDelay()):
		}
		if ctx.Err() != nil {
			return
		}

		sensitivity, err := sink.Sensitivity(ctx)
		if err != nil {
			return
		}

		defect, ok := d.Cycle(sensitivity)
		if !ok {
			continue
		}

		if err := sink.Emit(ctx, defect); err != nil {
			d.log.WithFields(logrus.Fields{
				"defect_id": defect.ID,
				"error":     err.Error(),
			}).Debug("Detection dropped")
			return
		}
	}
}

// Cycle один шаг после паузы: бросок вероятности и генерация записи.
func (d *SyntheticDetector) Cycle(sensitivity int) (entity.Defect, bool) {
	if d.rnd.Float64() >= Probability(sensitivity) {
		return entity.Defect{}, false
	}

	frame := d.source.FrameSize()
	if !frame.Ready() {
		d.log.Debug("Frame source is not ready, skipping detection cycle")
		return entity.Defect{}, false
	}

	categories := entity.Categories()
	idx := min(int(d.rnd.Float64()*float64(len(categories))), len(categories)-1)

	fw, fh := float64(frame.Width), float64(frame.Height)
	width := min(minBoxWidth+d.rnd.Float64()*boxWidthSpread, fw)
	height := min(minBoxHeight+d.rnd.Float64()*boxHeightSpread, fh)
	x := min(d.rnd.Float64()*(fw-width), fw-width)
	y := min(d.rnd.Float64()*(fh-height), fh-height)

	// Сумма может округлиться до 1.0, а верхняя граница открытая.
	confidence := math.Min(minConfidence+d.rnd.Float64()*confidenceSpread, math.Nextafter(1, 0))

	return entity.Defect{
		ID:         d.newID(),
		Category:   categories[idx],
		Area:       entity.DefectArea{X: x, Y: y, Width: width, Height: height},
		Frame:      frame,
		Confidence: confidence,
		Timestamp:  d.now(),
	}, true
}
