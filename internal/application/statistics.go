package app

import (
	"math"
	"time"

	"quality-vision/internal/domain/entity"
)

// Aggregate считает сводку по всей истории на момент now.
func Aggregate(history []entity.Defect, now time.Time) entity.Statistics {
	byType := make(map[entity.Category]int)
	recent := 0
	for _, d := range history {
		byType[d.Category]++
		if d.Age(now) < entity.RecentWindow {
			recent++
		}
	}

	score := QualityScore(len(history))
	return entity.Statistics{
		Total:            len(history),
		ByType:           byType,
		RecentDetections: recent,
		QualityScore:     score,
		Level:            entity.LevelForScore(score),
		EvaluatedAt:      now,
	}
}

// QualityScore штраф 2 балла за каждый дефект, не ниже нуля.
func QualityScore(total int) float64 {
	return math.Max(0, 100-2*float64(total))
}
