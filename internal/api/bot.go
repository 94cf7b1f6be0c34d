package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "quality-vision/internal/application"
	"quality-vision/internal/domain/entity"
	"quality-vision/internal/domain/port"
)

const (
	msgStart = `👋 Привет! Я бот контроля качества сигаретной линии.

🔔 Вы подписаны на уведомления о дефектах.

📋 Команды:
/run — запустить детекцию
/stop — остановить детекцию
/stats — статистика
/help — справка`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ /run запускает детекцию, /stop останавливает
2️⃣ При обнаружении дефекта придёт уведомление
3️⃣ /stats покажет сводку по журналу

📋 Команды:
/run — запустить детекцию
/stop — остановить детекцию
/reset — сбросить журнал и остановить детекцию
/clear — очистить журнал
/stats — статистика
/sensitivity N — чувствительность от 10 до 100
/alerts — включить или выключить уведомления
/unsubscribe — отписаться от уведомлений`

	msgStarted          = "▶️ Детекция запущена."
	msgStopped          = "⏸ Детекция остановлена."
	msgReset            = "🔄 Журнал сброшен, детекция остановлена."
	msgCleared          = "🧹 Журнал дефектов очищен."
	msgAlertsOn         = "🔔 Уведомления включены."
	msgAlertsOff        = "🔕 Уведомления выключены."
	msgUnsubscribed     = "👋 Вы отписались от уведомлений. /start чтобы подписаться снова."
	msgSensitivity      = "🎚 Чувствительность: %d%%"
	msgBadSensitivity   = "⚠️ Укажите число от 10 до 100, например /sensitivity 70"
	msgUnknownCommand   = "❓ Неизвестная команда. Используйте /help для справки."
	msgSendCommand      = "📋 Я понимаю только команды. Используйте /help для справки."
	msgControlError     = "⚠️ Не удалось выполнить команду. Попробуйте ещё раз."
	msgAlertTitle       = "🚨 Cigarette Defect Alert"
	msgStatisticsHeader = "📊 Статистика"
)

var levelNames = map[entity.QualityLevel]string{
	entity.QualityGood:     "хорошо",
	entity.QualityWarning:  "внимание",
	entity.QualityCritical: "критично",
}

// Controls команды панели управления, доступные из бота
type Controls interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	ClearLog(ctx context.Context) error
	SetSensitivity(ctx context.Context, value int) error
	ToggleAlerts(ctx context.Context) (bool, error)
	State(ctx context.Context) (entity.ControlState, error)
	Statistics(ctx context.Context) (entity.Statistics, error)
}

// Subscribers чаты, получающие уведомления
type Subscribers interface {
	Subscribe(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error)
	Unsubscribe(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error)
	ChatIDs(ctx context.Context) ([]int64, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetMe() (tgbotapi.User, error)
}

// Bot представляет Telegram-бота: вторая панель управления и канал
// доставки уведомлений.
type Bot struct {
	api      *tgbotapi.BotAPI
	out      sender
	controls Controls
	subs     Subscribers
	log      *logrus.Logger

	mu         sync.Mutex
	permission entity.Permission
}

// NewBot создаёт нового бота
func NewBot(token string, controls Controls, subs Subscribers, log *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:        api,
		out:        api,
		controls:   controls,
		subs:       subs,
		log:        log,
		permission: entity.PermissionDefault,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendMessage(msg.Chat.ID, msgSendCommand)
		return
	}

	b.log.WithFields(logrus.Fields{
		"chat_id": msg.Chat.ID,
		"command": msg.Command(),
	}).Debug("Telegram command received")

	b.sendMessage(msg.Chat.ID, b.reply(ctx, msg.From.ID, msg.Chat.ID, msg.Command(), msg.CommandArguments()))
}

// reply выполняет команду и возвращает текст ответа
func (b *Bot) reply(ctx context.Context, userID, chatID int64, command, args string) string {
	switch command {
	case "start":
		if _, err := b.subs.Subscribe(ctx, userID, chatID); err != nil {
			return b.failed(command, err)
		}
		return msgStart

	case "help":
		return msgHelp

	case "run":
		if err := b.controls.Start(ctx); err != nil {
			return b.failed(command, err)
		}
		return msgStarted

	case "stop":
		if err := b.controls.Stop(ctx); err != nil {
			return b.failed(command, err)
		}
		return msgStopped

	case "reset":
		if err := b.controls.Reset(ctx); err != nil {
			return b.failed(command, err)
		}
		return msgReset

	case "clear":
		if err := b.controls.ClearLog(ctx); err != nil {
			return b.failed(command, err)
		}
		return msgCleared

	case "stats":
		stats, err := b.controls.Statistics(ctx)
		if err != nil {
			return b.failed(command, err)
		}
		return formatStatistics(stats)

	case "sensitivity":
		return b.sensitivity(ctx, strings.TrimSpace(args))

	case "alerts":
		enabled, err := b.controls.ToggleAlerts(ctx)
		if err != nil {
			return b.failed(command, err)
		}
		if enabled {
			return msgAlertsOn
		}
		return msgAlertsOff

	case "unsubscribe":
		if _, err := b.subs.Unsubscribe(ctx, userID, chatID); err != nil {
			return b.failed(command, err)
		}
		return msgUnsubscribed

	default:
		return msgUnknownCommand
	}
}

func (b *Bot) sensitivity(ctx context.Context, args string) string {
	if args == "" {
		st, err := b.controls.State(ctx)
		if err != nil {
			return b.failed("sensitivity", err)
		}
		return fmt.Sprintf(msgSensitivity, st.Sensitivity)
	}

	value, err := strconv.Atoi(args)
	if err != nil {
		return msgBadSensitivity
	}
	if err := b.controls.SetSensitivity(ctx, value); err != nil {
		if errors.Is(err, app.ErrSensitivityOutOfRange) {
			return msgBadSensitivity
		}
		return b.failed("sensitivity", err)
	}
	return fmt.Sprintf(msgSensitivity, value)
}

func (b *Bot) failed(command string, err error) string {
	b.log.WithFields(logrus.Fields{
		"command": command,
		"error":   err.Error(),
	}).Error("Telegram command failed")
	return msgControlError
}

// Notify рассылает уведомление всем подписанным чатам. Без разрешения
// уведомление молча пропускается.
func (b *Bot) Notify(ctx context.Context, alert entity.Alert) error {
	if b.Permission() != entity.PermissionGranted {
		return nil
	}

	chatIDs, err := b.subs.ChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	text := formatAlert(alert)
	var errs []error
	for _, id := range chatIDs {
		if _, err := b.out.Send(tgbotapi.NewMessage(id, text)); err != nil {
			errs = append(errs, fmt.Errorf("send to chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// RequestPermission проверяет, что бот может отправлять сообщения.
func (b *Bot) RequestPermission(context.Context) entity.Permission {
	perm := entity.PermissionGranted
	if _, err := b.out.GetMe(); err != nil {
		b.log.WithField("error", err.Error()).Warn("Telegram is not reachable, alerts are disabled")
		perm = entity.PermissionDenied
	}

	b.mu.Lock()
	b.permission = perm
	b.mu.Unlock()
	return perm
}

// Permission последнее известное разрешение
func (b *Bot) Permission() entity.Permission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permission
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.out.Send(msg); err != nil {
		b.log.WithField("error", err.Error()).Error("Error sending message")
	}
}

func formatAlert(alert entity.Alert) string {
	area := alert.Area
	return fmt.Sprintf("%s\n%s\nОбласть: x=%.0f y=%.0f, %.0fx%.0f px",
		msgAlertTitle, alert.Message(), area.X, area.Y, area.Width, area.Height)
}

func formatStatistics(stats entity.Statistics) string {
	var sb strings.Builder
	sb.WriteString(msgStatisticsHeader + "\n")
	fmt.Fprintf(&sb, "Всего дефектов: %d\n", stats.Total)
	fmt.Fprintf(&sb, "За последние 30 с: %d\n", stats.RecentDetections)
	fmt.Fprintf(&sb, "Качество: %.0f%% (%s)", stats.QualityScore, levelNames[stats.Level])

	for _, c := range entity.Categories() {
		if n, ok := stats.ByType[c]; ok {
			fmt.Fprintf(&sb, "\n• %s: %d", c.Label(), n)
		}
	}
	return sb.String()
}

var (
	_ port.Notifier            = (*Bot)(nil)
	_ port.PermissionRequester = (*Bot)(nil)
)
