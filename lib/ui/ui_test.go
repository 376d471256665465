package ui

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("runner", &buf, 0)

	l.Infof("copied %d keys", 3)
	assert.Equal(t, "INFO  | runner          | copied 3 keys\n", buf.String())

	buf.Reset()
	l.Warningf("slow")
	assert.True(t, strings.HasPrefix(buf.String(), "WARN  | runner"))
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("strategy", &buf, 0)

	l.Debugf("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(logger.DEBUG)
	l.Debugf(`VERIFY: %q`, "foo")
	assert.Contains(t, buf.String(), `DEBUG | strategy        | VERIFY: "foo"`)

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Infof("hidden")
	l.Warningf("hidden")
	assert.Empty(t, buf.String())
	l.Errorf("shown")
	assert.Contains(t, buf.String(), "ERROR | strategy")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"":        logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
	assert.Error(t, InitLoggers("loud"))
}

// recorder is a Reporter collecting info messages
type recorder struct {
	mu    sync.Mutex
	infos []string
}

func (r *recorder) Debugf(string, ...interface{})   {}
func (r *recorder) Warningf(string, ...interface{}) {}
func (r *recorder) Errorf(string, ...interface{})   {}
func (r *recorder) Infof(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, fmt.Sprintf(format, args...))
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.infos)
}

func TestProgress(t *testing.T) {
	rep := &recorder{}
	p := StartProgress(5*time.Millisecond, rep, func() string { return "50% done" })

	assert.Eventually(t, func() bool { return rep.count() >= 2 }, time.Second, time.Millisecond)
	p.Stop()
	p.Stop()

	n := rep.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rep.count())
	assert.Equal(t, "50% done", rep.infos[0])
}

func TestProgressDisabled(t *testing.T) {
	rep := &recorder{}
	p := StartProgress(0, rep, func() string { return "x" })
	p.Stop()
	assert.Zero(t, rep.count())
}

func TestReporterIsLogger(t *testing.T) {
	var _ Reporter = CreateLogger("test")
	assert.NotNil(t, NewReporter("runner"))
}
