package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper_streaming/internal/engine/enginetest"
	"whisper_streaming/internal/metrics"
)

func newTestRegistry(eng *enginetest.Engine, m *metrics.Metrics) *Registry {
	return NewRegistry(eng, Options{SamplesKeep: 2, SamplesLen: 4, CommitInterval: 2}, zerolog.Nop(), m)
}

func TestRegistry_OpenGetClose(t *testing.T) {
	eng := &enginetest.Engine{}
	r := newTestRegistry(eng, nil)

	s, err := r.Open("conn-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", s.ID())
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get("conn-1")
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.True(t, r.Close("conn-1"))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, eng.Open())

	_, ok = r.Get("conn-1")
	assert.False(t, ok)
}

func TestRegistry_CloseUnknown(t *testing.T) {
	r := newTestRegistry(&enginetest.Engine{}, nil)
	assert.False(t, r.Close("missing"))
	assert.False(t, r.Close(""))
}

func TestRegistry_DuplicateID(t *testing.T) {
	eng := &enginetest.Engine{}
	r := newTestRegistry(eng, nil)

	_, err := r.Open("dup")
	require.NoError(t, err)

	_, err = r.Open("dup")
	assert.ErrorIs(t, err, ErrSessionExists)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, eng.Open())
}

func TestRegistry_DuplicateIDDuringCreate(t *testing.T) {
	eng := &enginetest.Engine{CloseErr: errors.New("context busy")}
	var buf bytes.Buffer
	r := NewRegistry(eng, Options{CommitInterval: 1}, zerolog.New(&buf), nil)

	// 第一次创建识别上下文期间，同一ID被另一个连接抢先注册
	t.Cleanup(r.CloseAll)
	var inner *Session
	raced := false
	eng.BeforeNew = func() {
		if raced {
			return
		}
		raced = true
		var err error
		inner, err = r.Open("race")
		require.NoError(t, err)
	}

	_, err := r.Open("race")
	assert.ErrorIs(t, err, ErrSessionExists)
	require.NotNil(t, inner)

	got, ok := r.Get("race")
	require.True(t, ok)
	assert.Same(t, inner, got)

	recs := eng.Recognizers()
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Closed())
	assert.True(t, recs[1].Closed())
	assert.Contains(t, buf.String(), "释放识别上下文失败")
	assert.Contains(t, buf.String(), "context busy")
}

func TestRegistry_EngineFailure(t *testing.T) {
	boom := errors.New("out of memory")
	r := newTestRegistry(&enginetest.Engine{NewErr: boom}, nil)

	_, err := r.Open("conn")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	eng := &enginetest.Engine{}
	r := newTestRegistry(eng, nil)

	a, err := r.Open("a")
	require.NoError(t, err)
	b, err := r.Open("b")
	require.NoError(t, err)

	_, err = a.Process(context.Background(), pcm(1, 2, 3))
	require.NoError(t, err)
	_, err = a.Process(context.Background(), pcm(4))
	require.NoError(t, err)

	assert.Equal(t, StateActive, a.State())
	assert.Equal(t, StateOpen, b.State())
	assert.Empty(t, b.Tail())
	assert.Empty(t, b.Committed())
	assert.Len(t, a.Committed(), 1)

	r.Close("a")
	_, err = b.Process(context.Background(), pcm(9))
	require.NoError(t, err)

	recs := eng.Recognizers()
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Closed())
	assert.False(t, recs[1].Closed())
}

func TestRegistry_Stats(t *testing.T) {
	r := newTestRegistry(&enginetest.Engine{}, nil)

	for _, id := range []string{"b", "a"} {
		_, err := r.Open(id)
		require.NoError(t, err)
	}
	s, _ := r.Get("b")
	_, err := s.Process(context.Background(), pcm(1, 2))
	require.NoError(t, err)

	stats := r.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a", stats[0].ID)
	assert.Equal(t, "open", stats[0].State)
	assert.Equal(t, "b", stats[1].ID)
	assert.Equal(t, "active", stats[1].State)
	assert.Equal(t, 1, stats[1].Iterations)
	assert.Equal(t, 2, stats[1].TailLen)
}

func TestRegistry_CloseAll(t *testing.T) {
	eng := &enginetest.Engine{}
	r := newTestRegistry(eng, nil)

	for i := 0; i < 5; i++ {
		_, err := r.Open(fmt.Sprintf("conn-%d", i))
		require.NoError(t, err)
	}
	r.CloseAll()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, eng.Open())
	for _, rec := range eng.Recognizers() {
		assert.Equal(t, 1, rec.CloseCount())
	}
}

func TestRegistry_ConcurrentOpenClose(t *testing.T) {
	eng := &enginetest.Engine{}
	m := metrics.New(prometheus.NewRegistry())
	r := newTestRegistry(eng, m)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			s, err := r.Open(id)
			if !assert.NoError(t, err) {
				return
			}
			for j := 0; j < 5; j++ {
				_, err := s.Process(context.Background(), pcm(float32(i), float32(j)))
				assert.NoError(t, err)
			}
			assert.True(t, r.Close(id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, eng.Open())
	assert.Equal(t, 20.0, testutil.ToFloat64(m.SessionsOpened))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.SessionsClosed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.Commits))
}
