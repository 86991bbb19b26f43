package stream

// Update 一次识别后的累积结果
type Update struct {
	Result    []string // 已提交片段加当前临时结果，按时间顺序
	IsTalking bool     // 始终为true
	Committed bool     // 本次是否提交了临时结果
	Iteration int      // 本次是第几次识别
}

// Accumulator 跟踪识别次数，决定何时把临时结果提交为最终片段
type Accumulator struct {
	interval   int
	iterations int
	committed  []string
}

// NewAccumulator 创建累积器，interval小于1时按1处理
func NewAccumulator(interval int) *Accumulator {
	if interval < 1 {
		interval = 1
	}
	return &Accumulator{interval: interval}
}

// Update 记录一次识别结果
func (a *Accumulator) Update(text string) Update {
	a.iterations++

	result := make([]string, 0, len(a.committed)+1)
	result = append(result, a.committed...)
	result = append(result, text)

	commit := a.iterations%a.interval == 0
	if commit {
		a.committed = append(a.committed, text)
	}

	return Update{
		Result:    result,
		IsTalking: true,
		Committed: commit,
		Iteration: a.iterations,
	}
}

// Skip 记录一次失败的识别，不产生结果也不提交，返回本次序号以及是否到达提交点
//
// 失败同样占用一次识别次数，后续的提交节奏保持不变。
func (a *Accumulator) Skip() (iteration int, boundary bool) {
	a.iterations++
	return a.iterations, a.iterations%a.interval == 0
}

// Committed 返回已提交片段的副本
func (a *Accumulator) Committed() []string {
	return append([]string(nil), a.committed...)
}

// Iterations 已执行的识别次数
func (a *Accumulator) Iterations() int {
	return a.iterations
}

// Interval 提交间隔
func (a *Accumulator) Interval() int {
	return a.interval
}
