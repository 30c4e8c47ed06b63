package sqlite

import "time"

// Helper functions for bool/int conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

// Время хранится в микросекундах: точность секунд недостаточна
// для запросов на момент времени между соседними коммитами
func unixMicroToTime(us int64) time.Time {
	return time.UnixMicro(us)
}

func nullableMicro(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMicro()
}
