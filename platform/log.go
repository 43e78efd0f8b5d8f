package platform

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is shared by every package. InitAppLogger configures it in place so
// package level copies of the pointer stay valid.
var Logger = logrus.New()

func init() {
	Logger.SetFormatter(&LogFormatter{})
}

// Hook appends every entry to a per-day file under logPath.
type Hook struct {
	mu       sync.Mutex
	writer   *os.File
	logPath  string
	fileName string
	fileDate string
}

func NewHook(logPath string, fileName string) *Hook {
	return &Hook{logPath: logPath, fileName: fileName}
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	//需要切换日志文件
	if day := entry.Time.Format("2006-01-02"); h.writer == nil || h.fileDate != day {
		if err := h.rotate(day); err != nil {
			return err
		}
	}
	_, err = h.writer.Write([]byte(line))
	return err
}

func (h *Hook) rotate(day string) error {
	if h.writer != nil {
		h.writer.Close()
		h.writer = nil
	}
	dir := filepath.Join(h.logPath, day)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	writer, err := os.OpenFile(filepath.Join(dir, h.fileName+".log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	h.writer = writer
	h.fileDate = day
	return nil
}

type LogFormatter struct {
}

func (m *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	b.WriteString(fmt.Sprintf("[%s] [%s] %s\n", timestamp, entry.Level, entry.Message))
	return b.Bytes(), nil
}

// InitAppLogger sends the shared logger to stderr and to a daily file under
// logPath. Failing to open the file leaves the logger on stderr only.
func InitAppLogger(logPath string, fileName string, level logrus.Level) *logrus.Logger {
	Logger.SetFormatter(&LogFormatter{})
	Logger.SetLevel(level)
	Logger.SetOutput(os.Stderr)

	hook := NewHook(logPath, fileName)
	if err := hook.rotate(time.Now().Format("2006-01-02")); err != nil {
		Logger.Warnf("file logging disabled, %s", err)
		return Logger
	}
	Logger.AddHook(hook)
	return Logger
}

// DiscardLogger is for tests.
func DiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
