package httpapi

import "quality-vision/internal/domain/entity"

type SensitivityRequest struct {
	Value int `json:"value" validate:"required,min=10,max=100"`
}

type OverlaySizeRequest struct {
	Width  int `json:"width" validate:"required,min=1,max=7680"`
	Height int `json:"height" validate:"required,min=1,max=4320"`
}

type ToggleResponse struct {
	Active bool `json:"active"`
}

type AlertsResponse struct {
	AlertsEnabled bool `json:"alerts_enabled"`
}

// DefectResponse запись журнала в обоих представлениях координат
type DefectResponse struct {
	entity.Defect
	Normalized entity.NormalizedArea `json:"normalized"`
	Label      string                `json:"label"`
}

type StatisticsResponse struct {
	entity.Statistics
	ActiveDetections int `json:"active_detections"`
}

func newDefectResponse(d entity.Defect) DefectResponse {
	return DefectResponse{
		Defect:     d,
		Normalized: d.Normalized(),
		Label:      d.OverlayLabel(),
	}
}
