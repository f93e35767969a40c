package otodomfetcher

import (
	"time"
)

// RetryPolicy — явная политика повторов, передаётся в фетчер как значение
// (никаких неявных декораторов). Повторяем только транзиентные классы
// отказов: gateway/timeout/internal-error статусы и сетевые ошибки без
// статуса. Всё остальное — немедленный отказ.
type RetryPolicy struct {
	MaxAttempts     int
	BaseBackoff     time.Duration
	RetryableStatus map[int]bool
}

// DefaultRetryPolicy — 5 попыток, экспоненциальный бэкофф от секунды.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		RetryableStatus: map[int]bool{
			500: true, // internal server error
			502: true, // bad gateway
			503: true, // service unavailable
			504: true, // gateway timeout
		},
	}
}

// Retryable — можно ли повторять запрос при таком исходе. Нулевой статус
// означает, что ответа не было вовсе (таймаут, обрыв соединения) — такие
// отказы считаем транзиентными.
func (p RetryPolicy) Retryable(statusCode int) bool {
	if statusCode == 0 {
		return true
	}
	return p.RetryableStatus[statusCode]
}

// Backoff — пауза перед попыткой attempt (1-базный номер): base * 2^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	return backoff
}
