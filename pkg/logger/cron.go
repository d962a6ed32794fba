package logger

// CronLogger адаптирует Logger к интерфейсу cron.Logger (robfig/cron/v3)
type CronLogger struct {
	l *Logger
}

// ForCron возвращает адаптер для планировщика
func (l *Logger) ForCron() CronLogger {
	return CronLogger{l: l.Named("cron")}
}

// Info пишет служебные сообщения cron на уровне debug: их много и они однотипны
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.zl.Sugar().Debugw(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.zl.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
