package rabbitmq

// EventsExchange topic exchange, в который публикуются события пользователей и переводов.
const EventsExchange = "users.events"

// QueueConfig описывает очередь и шаблон ключа маршрутизации для привязки к EventsExchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetEventQueues возвращает очереди, которые объявляются при старте сервиса.
func GetEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "users.audit", RoutingKey: "user.#"},
		{QueueName: "users.points", RoutingKey: "user.points.*"},
		{QueueName: "transfers.completed", RoutingKey: "transfer.completed"},
	}
}
