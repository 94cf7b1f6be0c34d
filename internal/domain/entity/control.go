package entity

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinSensitivity     = 10
	MaxSensitivity     = 100
	DefaultSensitivity = 50
)

// ControlState состояние панели управления
type ControlState struct {
	Active        bool `json:"active"`
	Sensitivity   int  `json:"sensitivity"`
	AlertsEnabled bool `json:"alerts_enabled"`
	HistorySize   int  `json:"history_size"`
}

// EventKind тип события шины
type EventKind string

const (
	EventDefectDetected EventKind = "defect_detected"
	EventStateChanged   EventKind = "state_changed"
	EventHistoryCleared EventKind = "history_cleared"
)

// Event сообщение, которое контроллер рассылает подписчикам.
type Event struct {
	Kind   EventKind     `json:"kind"`
	Defect *Defect       `json:"defect,omitempty"`
	State  *ControlState `json:"state,omitempty"`
	At     time.Time     `json:"at"`
}

// Alert сообщение для внешней доставки уведомлений.
type Alert struct {
	DefectID   string     `json:"defect_id"`
	Category   Category   `json:"category"`
	Confidence float64    `json:"confidence"`
	Area       DefectArea `json:"area"`
	DetectedAt time.Time  `json:"detected_at"`
}

// NewAlert строит уведомление из записи, в пиксельных координатах.
func NewAlert(d Defect) Alert {
	return Alert{
		DefectID:   d.ID,
		Category:   d.Category,
		Confidence: d.Confidence,
		Area:       d.Pixel(),
		DetectedAt: d.Timestamp,
	}
}

// Message текст уведомления
func (a Alert) Message() string {
	name := strings.Replace(string(a.Category), "_", " ", 1)
	return fmt.Sprintf("%s detected with %.1f%% confidence", name, a.Confidence*100)
}

// Permission разрешение на доставку уведомлений
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)
