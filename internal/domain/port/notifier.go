package port

import (
	"context"

	"quality-vision/internal/domain/entity"
)

// Notifier внешний канал доставки уведомлений. Результат доставки ядро не
// отслеживает, ошибка только логируется.
type Notifier interface {
	Notify(ctx context.Context, alert entity.Alert) error
}

// PermissionRequester канал, которому нужно разрешение перед доставкой.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) entity.Permission
}
