package models

// DateLayout is the day-granularity format used for wear/wash dates.
const DateLayout = "2006-01-02"

const (
	// DefaultProbeInterval интервал проверки доступности сервера
	DefaultProbeInterval = 15 // секунд

	// DefaultRetryInitialDelay начальная задержка повтора синхронизации
	DefaultRetryInitialDelay = 5 // секунд

	// DefaultRetryMaxDelay потолок задержки повтора
	DefaultRetryMaxDelay = 30 // секунд

	// ItemsCacheTTL время жизни кэша предметов
	ItemsCacheTTL = 30 * 60 // 30 минут в секундах
)
