package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"quality-vision/internal/domain/port"
)

// Canvas прозрачная растровая поверхность оверлея.
//
// Рисование идёт в задний буфер, Present копирует его в передний. Снимки для
// HTTP читаются только из переднего буфера, поэтому клиент никогда не видит
// недорисованный кадр.
type Canvas struct {
	mu    sync.Mutex
	back  *image.RGBA
	front *image.RGBA
	face  font.Face
}

// NewCanvas создаёт поверхность заданного размера.
func NewCanvas(width, height int) *Canvas {
	c := &Canvas{face: basicfont.Face7x13}
	c.Resize(width, height)
	return c
}

// Resize меняет размер поверхности под отображаемый размер видео.
// Содержимое сбрасывается.
func (c *Canvas) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	bounds := image.Rect(0, 0, width, height)

	c.mu.Lock()
	c.back = image.NewRGBA(bounds)
	c.front = image.NewRGBA(bounds)
	c.mu.Unlock()
}

// Size возвращает текущие размеры поверхности в пикселях
func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.back.Bounds()
	return b.Dx(), b.Dy()
}

// Clear стирает задний буфер
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	draw.Draw(c.back, c.back.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// StrokeRect рисует контур шириной lineWidth, центрированный по границе.
func (c *Canvas) StrokeRect(x, y, w, h, lineWidth float64, col color.RGBA, opacity float64) {
	half := lineWidth / 2
	src := uniform(col, opacity)

	c.mu.Lock()
	defer c.mu.Unlock()

	top := rectF(x-half, y-half, x+w+half, y+half)
	bottom := rectF(x-half, y+h-half, x+w+half, y+h+half)
	left := rectF(x-half, y+half, x+half, y+h-half)
	right := rectF(x+w-half, y+half, x+w+half, y+h-half)
	for _, r := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(c.back, r, src, image.Point{}, draw.Over)
	}
}

// FillRect заливает прямоугольник
func (c *Canvas) FillRect(x, y, w, h float64, col color.RGBA, opacity float64) {
	src := uniform(col, opacity)

	c.mu.Lock()
	defer c.mu.Unlock()
	draw.Draw(c.back, rectF(x, y, x+w, y+h), src, image.Point{}, draw.Over)
}

// MeasureText ширина строки в пикселях
func (c *Canvas) MeasureText(text string) float64 {
	return float64(font.MeasureString(c.face, text).Round())
}

// FillText рисует строку, (x, y) это базовая линия
func (c *Canvas) FillText(text string, x, y float64, col color.RGBA, opacity float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := font.Drawer{
		Dst:  c.back,
		Src:  uniform(col, opacity),
		Face: c.face,
		Dot:  fixed.P(int(math.Round(x)), int(math.Round(y))),
	}
	d.DrawString(text)
}

// Present публикует задний буфер
func (c *Canvas) Present() {
	c.mu.Lock()
	defer c.mu.Unlock()
	draw.Draw(c.front, c.front.Bounds(), c.back, image.Point{}, draw.Src)
}

// Snapshot копия последнего опубликованного кадра
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	img := image.NewRGBA(c.front.Bounds())
	draw.Draw(img, img.Bounds(), c.front, image.Point{}, draw.Src)
	return img
}

// PNG кодирует последний опубликованный кадр
func (c *Canvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Snapshot()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func uniform(col color.RGBA, opacity float64) *image.Uniform {
	alpha := math.Max(0, math.Min(1, opacity)) * float64(col.A)
	return image.NewUniform(color.NRGBA{R: col.R, G: col.G, B: col.B, A: uint8(math.Round(alpha))})
}

func rectF(x0, y0, x1, y1 float64) image.Rectangle {
	return image.Rect(
		int(math.Round(x0)), int(math.Round(y0)),
		int(math.Round(x1)), int(math.Round(y1)),
	)
}

var _ port.Surface = (*Canvas)(nil)
