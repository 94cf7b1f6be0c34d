package entity

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
	"time"
)

// Category тип дефекта сигареты
type Category string

const (
	CategoryTornPaper    Category = "torn_paper"    // Порванная бумага
	CategoryFilterDefect Category = "filter_defect" // Дефект фильтра
	CategorySizeVariance Category = "size_variance" // Отклонение размера
	CategoryColorAnomaly Category = "color_anomaly" // Аномалия цвета
	CategoryEndDefect    Category = "end_defect"    // Дефект торца
)

// ErrUnknownCategory возвращается при разборе неизвестного типа дефекта.
var ErrUnknownCategory = errors.New("unknown defect category")

// Categories возвращает закрытый набор типов в фиксированном порядке.
func Categories() []Category {
	return []Category{
		CategoryTornPaper,
		CategoryFilterDefect,
		CategorySizeVariance,
		CategoryColorAnomaly,
		CategoryEndDefect,
	}
}

type categoryStyle struct {
	label string
	color color.RGBA
}

var categoryStyles = map[Category]categoryStyle{
	CategoryTornPaper:    {label: "Torn Paper", color: color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}},
	CategoryFilterDefect: {label: "Filter Defect", color: color.RGBA{R: 0xf9, G: 0x73, B: 0x16, A: 0xff}},
	CategorySizeVariance: {label: "Size Variance", color: color.RGBA{R: 0xea, G: 0xb3, B: 0x08, A: 0xff}},
	CategoryColorAnomaly: {label: "Color Anomaly", color: color.RGBA{R: 0x8b, G: 0x5c, B: 0xf6, A: 0xff}},
	CategoryEndDefect:    {label: "End Defect", color: color.RGBA{R: 0xec, G: 0x48, B: 0x99, A: 0xff}},
}

// ParseCategory разбирает имя типа дефекта.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Valid сообщает, входит ли тип в закрытый набор.
func (c Category) Valid() bool {
	_, ok := categoryStyles[c]
	return ok
}

// Label возвращает отображаемое имя типа.
func (c Category) Label() string {
	if s, ok := categoryStyles[c]; ok {
		return s.label
	}
	return string(c)
}

// Color возвращает цвет рамки на оверлее.
func (c Category) Color() color.RGBA {
	if s, ok := categoryStyles[c]; ok {
		return s.color
	}
	return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
}

// DefectArea представляет область с обнаруженным дефектом в пикселях кадра
type DefectArea struct {
	X      float64 `json:"x"`      // координата X левого верхнего угла
	Y      float64 `json:"y"`      // координата Y левого верхнего угла
	Width  float64 `json:"width"`  // ширина области в пикселях
	Height float64 `json:"height"` // высота области в пикселях
}

// Center возвращает координаты центра дефекта
func (d DefectArea) Center() (x, y float64) {
	return d.X + d.Width/2, d.Y + d.Height/2
}

// Area возвращает площадь области в пикселях
func (d DefectArea) Area() float64 {
	return d.Width * d.Height
}

// FrameSize размеры кадра камеры
type FrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Ready сообщает, что камера уже отдала ненулевые размеры.
func (f FrameSize) Ready() bool {
	return f.Width > 0 && f.Height > 0
}

// Contains проверяет, что область целиком лежит внутри кадра.
func (f FrameSize) Contains(a DefectArea) bool {
	return a.X >= 0 && a.Y >= 0 &&
		a.X+a.Width <= float64(f.Width) &&
		a.Y+a.Height <= float64(f.Height)
}

// NormalizedArea область в процентах от размеров кадра (0..100).
type NormalizedArea struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scale переводит проценты в пиксели поверхности заданного размера.
func (n NormalizedArea) Scale(width, height int) DefectArea {
	return DefectArea{
		X:      n.X / 100 * float64(width),
		Y:      n.Y / 100 * float64(height),
		Width:  n.Width / 100 * float64(width),
		Height: n.Height / 100 * float64(height),
	}
}

// Defect одна запись об обнаруженном дефекте. После создания не меняется.
//
// Координаты хранятся один раз, в пикселях кадра. Процентное представление для
// оверлея вычисляется из них и размеров кадра.
type Defect struct {
	ID         string     `json:"id"`
	Category   Category   `json:"category"`
	Area       DefectArea `json:"area"`
	Frame      FrameSize  `json:"frame"`
	Confidence float64    `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Pixel возвращает область в пикселях кадра (для журнала и уведомлений).
func (d Defect) Pixel() DefectArea {
	return d.Area
}

// Normalized возвращает область в процентах кадра (для оверлея).
func (d Defect) Normalized() NormalizedArea {
	if !d.Frame.Ready() {
		return NormalizedArea{}
	}
	w, h := float64(d.Frame.Width), float64(d.Frame.Height)
	return NormalizedArea{
		X:      d.Area.X / w * 100,
		Y:      d.Area.Y / h * 100,
		Width:  d.Area.Width / w * 100,
		Height: d.Area.Height / h * 100,
	}
}

// Age возвращает возраст записи относительно now.
func (d Defect) Age(now time.Time) time.Duration {
	return now.Sub(d.Timestamp)
}

// ConfidencePercent форматирует уверенность с одним знаком после запятой.
func (d Defect) ConfidencePercent() string {
	return fmt.Sprintf("%.1f%%", d.Confidence*100)
}

// OverlayLabel текст плашки над рамкой.
func (d Defect) OverlayLabel() string {
	return d.Category.Label() + " " + d.ConfidencePercent()
}
