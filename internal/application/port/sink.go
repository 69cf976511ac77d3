package port

import "time"

// Sink 监控行输出端
type Sink interface {
	// WriteLive 覆盖当前行，不换行
	WriteLive(line string) error
	// WriteSnapshot 追加一行带时间的快照
	WriteSnapshot(ts time.Time, line string) error
	NewLine() error
}
