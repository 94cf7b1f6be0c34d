package port

import "image/color"

// Surface прозрачная поверхность оверлея, выровненная по видео.
type Surface interface {
	// Size возвращает текущие размеры поверхности в пикселях
	Size() (width, height int)

	// Clear стирает предыдущий кадр оверлея
	Clear()

	// StrokeRect рисует контур прямоугольника
	StrokeRect(x, y, w, h, lineWidth float64, c color.RGBA, opacity float64)

	// FillRect заливает прямоугольник
	FillRect(x, y, w, h float64, c color.RGBA, opacity float64)

	// MeasureText возвращает ширину текста в пикселях
	MeasureText(text string) float64

	// FillText рисует текст, (x, y) это базовая линия
	FillText(text string, x, y float64, c color.RGBA, opacity float64)

	// Present публикует нарисованный кадр
	Present()
}
