package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	return &Logger{
		out:     buf,
		level:   INFO,
		enabled: true,
	}
}

func TestLoggerWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("账号删除完成", map[string]interface{}{"user_id": "u1"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("日志不是有效的JSON: %v", err)
	}
	if entry.Level != "INFO" {
		t.Errorf("级别不正确: %s", entry.Level)
	}
	if entry.Message != "账号删除完成" {
		t.Errorf("消息不正确: %s", entry.Message)
	}
	if entry.Fields["user_id"] != "u1" {
		t.Errorf("字段未序列化: %v", entry.Fields)
	}
	if entry.File == "" || entry.Line == 0 {
		t.Errorf("应记录调用位置: %s:%d", entry.File, entry.Line)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Debug("不应出现", nil)
	if buf.Len() != 0 {
		t.Errorf("低于最小级别的日志应被过滤: %s", buf.String())
	}

	logger.SetLogLevel(DEBUG)
	logger.Debug("现在应出现", nil)
	if buf.Len() == 0 {
		t.Error("调整级别后应输出调试日志")
	}
}

func TestLoggerWarnAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Warn("警告", nil)
	logger.Error("错误", map[string]interface{}{"err": "失败"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("应有两条日志: %d", len(lines))
	}
	if !strings.Contains(lines[0], `"WARNING"`) || !strings.Contains(lines[1], `"ERROR"`) {
		t.Errorf("级别名称不正确: %v", lines)
	}
}

func TestLoggerDisable(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Enable(false)
	logger.Error("不应输出", nil)
	if buf.Len() != 0 {
		t.Errorf("禁用后不应输出日志: %s", buf.String())
	}
}

func TestSetOutputRedirects(t *testing.T) {
	var first, second bytes.Buffer
	logger := newTestLogger(&first)

	logger.Info("一", nil)
	logger.SetOutput(&second)
	logger.Info("二", nil)

	if !strings.Contains(first.String(), "一") || strings.Contains(first.String(), "二") {
		t.Errorf("切换前的日志应只在原输出: %s", first.String())
	}
	if !strings.Contains(second.String(), "二") {
		t.Errorf("切换后的日志应进入新输出: %s", second.String())
	}
}
