package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"quality-vision/internal/domain/entity"
	"quality-vision/internal/domain/port"
)

const (
	alertQueueSize      = 64
	alertDeliverTimeout = 10 * time.Second
)

// AlertDispatcher доставляет уведомления во внешние каналы в фоне.
// Отправка не блокирует контроллер, результат доставки только логируется.
type AlertDispatcher struct {
	notifiers []port.Notifier
	limiter   *rate.Limiter
	queue     chan entity.Alert
	log       *logrus.Logger
}

// NewAlertDispatcher создаёт диспетчер с ограничением perSecond уведомлений.
func NewAlertDispatcher(log *logrus.Logger, perSecond float64, notifiers ...port.Notifier) *AlertDispatcher {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &AlertDispatcher{
		notifiers: notifiers,
		limiter:   rate.NewLimiter(limit, 1),
		queue:     make(chan entity.Alert, alertQueueSize),
		log:       log,
	}
}

// AddNotifier подключает ещё один канал. Вызывать до Run.
func (d *AlertDispatcher) AddNotifier(n port.Notifier) {
	d.notifiers = append(d.notifiers, n)
}

// Dispatch ставит уведомление в очередь. При переполнении уведомление
// отбрасывается.
func (d *AlertDispatcher) Dispatch(alert entity.Alert) bool {
	select {
	case d.queue <- alert:
		return true
	default:
		d.log.WithFields(logrus.Fields{
			"defect_id": alert.DefectID,
			"category":  alert.Category,
		}).Warn("Alert queue is full, dropping alert")
		return false
	}
}

// RequestPermission запрашивает разрешение у каналов, которым оно нужно.
func (d *AlertDispatcher) RequestPermission(ctx context.Context) {
	for _, n := range d.notifiers {
		pr, ok := n.(port.PermissionRequester)
		if !ok {
			continue
		}
		go func() {
			perm := pr.RequestPermission(ctx)
			d.log.WithField("permission", perm).Debug("Notification permission requested")
		}()
	}
}

// Run доставляет уведомления до отмены ctx.
func (d *AlertDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
			d.deliver(ctx, alert)
		}
	}
}

func (d *AlertDispatcher) deliver(ctx context.Context, alert entity.Alert) {
	ctx, cancel := context.WithTimeout(ctx, alertDeliverTimeout)
	defer cancel()

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			d.log.WithFields(logrus.Fields{
				"defect_id": alert.DefectID,
				"error":     err.Error(),
			}).Warn("Alert delivery failed")
		}
	}
}
