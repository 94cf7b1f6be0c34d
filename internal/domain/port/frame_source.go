package port

import "quality-vision/internal/domain/entity"

// FrameSource источник видеокадров. Ядро читает только размеры кадра.
type FrameSource interface {
	// FrameSize возвращает текущие размеры кадра. Нулевые размеры означают,
	// что камера ещё не готова.
	FrameSize() entity.FrameSize
}
