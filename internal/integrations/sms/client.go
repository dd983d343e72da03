package sms

import "context"

// Client — внешний SMS-шлюз. Ядро опирается только на классификацию
// успех/неуспех, тело ответа шлюза дальше клиента не уходит.
type Client interface {
	Send(ctx context.Context, destinations []string, message string) error
}
