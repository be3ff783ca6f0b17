package monitor

import (
	"math"
	"time"
)

// Deadline はブロッキング呼び出しの残り時間を表す
type Deadline struct {
	at       time.Time
	infinite bool
}

// After は現在から d 後に期限切れとなる Deadline を返す
// d が 0 以下なら既に期限切れ
func After(d time.Duration) Deadline {
	return Deadline{at: time.Now().Add(d)}
}

// Never は期限のない Deadline を返す
func Never() Deadline {
	return Deadline{infinite: true}
}

// Expired は期限切れかどうかを返す
func (d Deadline) Expired() bool {
	if d.infinite {
		return false
	}
	return !time.Now().Before(d.at)
}

// Remaining は残り時間を返す
func (d Deadline) Remaining() time.Duration {
	if d.infinite {
		return time.Duration(math.MaxInt64)
	}
	if r := time.Until(d.at); r > 0 {
		return r
	}
	return 0
}
