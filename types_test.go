package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }

// mapKV is a bare KeyValueStore; kvstore cannot be imported from here
type mapKV struct {
	values map[string]string
}

func (m *mapKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapKV) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *mapKV) MultiGet(_ context.Context, keys []string) (map[string]string, error) {
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *mapKV) MultiSet(_ context.Context, entries map[string]string) error {
	for k, v := range entries {
		m.values[k] = v
	}
	return nil
}

func (m *mapKV) MultiRemove(_ context.Context, keys []string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

type loggerProviderSpy struct {
	byName map[string]Logger
	names  []string
}

func (p *loggerProviderSpy) GetLogger(name string) Logger {
	p.names = append(p.names, name)
	return p.byName[name]
}

func TestResolveLoggerPrefersProvider(t *testing.T) {
	named := &captureLogger{}
	provider := &loggerProviderSpy{byName: map[string]Logger{"auth.service": named}}

	gotProvider, logger := ResolveLogger("auth.service", provider, &captureLogger{})

	require.Same(t, named, logger)
	assert.Same(t, provider, gotProvider)
	assert.Equal(t, []string{"auth.service"}, provider.names)
}

func TestResolveLoggerFallsBack(t *testing.T) {
	fallback := &captureLogger{}
	provider := &loggerProviderSpy{byName: map[string]Logger{}}

	gotProvider, logger := ResolveLogger("auth.monitor", provider, fallback)
	require.Same(t, fallback, logger)
	assert.Same(t, fallback, gotProvider.GetLogger("anything"))

	_, logger = ResolveLogger("auth.monitor", nil, nil)
	assert.IsType(t, defLogger{}, logger)
}

func TestFormatKeyValues(t *testing.T) {
	assert.Equal(t, "[INF] AUTH ready", format("[INF] AUTH ", "ready", nil))
	assert.Equal(t, "[WRN] AUTH cleared user_id=u1 reason=expired", format("[WRN] AUTH ", "cleared", []any{"user_id", "u1", "reason", "expired"}))
	assert.Equal(t, "[ERR] AUTH odd dangling", format("[ERR] AUTH ", "odd", []any{"dangling"}))
}

func TestSessionStoreLogsCorruption(t *testing.T) {
	logger := &captureLogger{}
	kv := &mapKV{values: map[string]string{
		KeyToken:      "u1",
		KeyUserRecord: "{",
	}}

	store := NewSessionStore(kv, WithSessionStoreLogger(logger))
	snap, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Corrupted)

	assert.Empty(t, kv.values)
	require.Len(t, logger.calls, 1)
	assert.Equal(t, "warn", logger.calls[0].level)
	assert.Equal(t, "session cache corrupted, clearing", logger.calls[0].message)
}
