package entity

// SubscriberState состояние подписки чата на уведомления
type SubscriberState string

const (
	StateSubscribed   SubscriberState = "subscribed"   // Получает уведомления
	StateUnsubscribed SubscriberState = "unsubscribed" // Отписался
)

// Subscriber представляет чат Telegram, получающий уведомления о дефектах
type Subscriber struct {
	UserID int64           // Telegram User ID
	ChatID int64           // Telegram Chat ID
	State  SubscriberState // Текущее состояние подписки
}

// NewSubscriber создаёт подписчика в состоянии "подписан"
func NewSubscriber(userID, chatID int64) *Subscriber {
	return &Subscriber{
		UserID: userID,
		ChatID: chatID,
		State:  StateSubscribed,
	}
}

// SetState обновляет состояние подписки
func (s *Subscriber) SetState(state SubscriberState) {
	s.State = state
}

// Active сообщает, нужно ли слать уведомления в этот чат.
func (s *Subscriber) Active() bool {
	return s.State == StateSubscribed
}
