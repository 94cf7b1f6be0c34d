package entity

import "time"

const (
	// RecentWindow окно "недавних" обнаружений.
	RecentWindow = 30 * time.Second
	// DisplayLifetime время жизни рамки на оверлее.
	DisplayLifetime = 5 * time.Second
)

// QualityLevel оценка качества для панели статистики
type QualityLevel string

const (
	QualityGood     QualityLevel = "good"
	QualityWarning  QualityLevel = "warning"
	QualityCritical QualityLevel = "critical"
)

// LevelForScore переводит показатель качества в уровень.
func LevelForScore(score float64) QualityLevel {
	switch {
	case score >= 90:
		return QualityGood
	case score >= 70:
		return QualityWarning
	default:
		return QualityCritical
	}
}

// Statistics сводка по всей истории обнаружений.
type Statistics struct {
	Total            int              `json:"total"`
	ByType           map[Category]int `json:"by_type"`
	RecentDetections int              `json:"recent_detections"`
	QualityScore     float64          `json:"quality_score"`
	Level            QualityLevel     `json:"level"`
	EvaluatedAt      time.Time        `json:"evaluated_at"`
}
