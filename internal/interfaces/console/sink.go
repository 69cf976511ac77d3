package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"xbook/internal/application/port"
)

// Sink 终端输出：live 行原地刷新，快照行单独成行
type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewSink() port.Sink { return NewWriterSink(os.Stdout) }

// NewWriterSink 输出到指定 writer
func NewWriterSink(w io.Writer) *Sink { return &Sink{out: w} }

func (s *Sink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, line)
	return err
}

// WriteSnapshot 快照行前后各留一个空行，live 行等下一次变化再刷新
func (s *Sink) WriteSnapshot(ts time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "\n%s %s\n\n", ts.Format("2006-01-02 15:04:05"), line)
	return err
}

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, "\n")
	return err
}

var _ port.Sink = (*Sink)(nil)
