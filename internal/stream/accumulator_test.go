package stream

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator_CommitEveryThird(t *testing.T) {
	a := NewAccumulator(3)

	u := a.Update("a")
	assert.Equal(t, []string{"a"}, u.Result)
	assert.False(t, u.Committed)
	assert.Empty(t, a.Committed())

	u = a.Update("ab")
	assert.Equal(t, []string{"ab"}, u.Result)
	assert.False(t, u.Committed)
	assert.Empty(t, a.Committed())

	u = a.Update("abc")
	assert.Equal(t, []string{"abc"}, u.Result)
	assert.True(t, u.Committed)
	assert.True(t, u.IsTalking)
	assert.Equal(t, 3, u.Iteration)
	assert.Equal(t, []string{"abc"}, a.Committed())

	u = a.Update("d")
	assert.Equal(t, []string{"abc", "d"}, u.Result)
	assert.Len(t, u.Result, 2)
}

func TestAccumulator_Cadence(t *testing.T) {
	for _, interval := range []int{1, 2, 5} {
		a := NewAccumulator(interval)
		for i := 1; i <= 4*interval; i++ {
			before := len(a.Committed())
			u := a.Update(fmt.Sprintf("t%d", i))
			after := len(a.Committed())

			if i%interval == 0 {
				assert.Equal(t, before+1, after, "interval=%d iteration=%d", interval, i)
			} else {
				assert.Equal(t, before, after, "interval=%d iteration=%d", interval, i)
			}
			assert.Len(t, u.Result, before+1)
			assert.True(t, u.IsTalking)
		}
		assert.Equal(t, 4*interval, a.Iterations())
		assert.Len(t, a.Committed(), 4)
	}
}

func TestAccumulator_AppendOnly(t *testing.T) {
	a := NewAccumulator(1)

	var seen []string
	for i := 0; i < 10; i++ {
		u := a.Update(fmt.Sprintf("seg-%d", i))
		committed := a.Committed()
		if len(seen) > 0 {
			assert.Equal(t, seen, committed[:len(seen)])
		}
		seen = append([]string(nil), committed...)

		// 修改返回值不能影响内部状态
		u.Result[0] = "mutated"
		committed[0] = "mutated"
	}
	assert.Equal(t, "seg-0", a.Committed()[0])
	assert.Equal(t, "seg-9", a.Committed()[9])
}

func TestAccumulator_InvalidInterval(t *testing.T) {
	a := NewAccumulator(0)
	assert.Equal(t, 1, a.Interval())

	u := a.Update("x")
	assert.True(t, u.Committed)
}

func TestAccumulator_SkipKeepsCadence(t *testing.T) {
	a := NewAccumulator(2)

	u := a.Update("a")
	assert.False(t, u.Committed)

	iteration, boundary := a.Skip()
	assert.Equal(t, 2, iteration)
	assert.True(t, boundary)
	assert.Empty(t, a.Committed())

	u = a.Update("c")
	assert.Equal(t, 3, u.Iteration)
	assert.False(t, u.Committed)
	assert.Equal(t, []string{"c"}, u.Result)

	u = a.Update("d")
	assert.True(t, u.Committed)
	assert.Equal(t, []string{"d"}, a.Committed())
	assert.Equal(t, 4, a.Iterations())
}
