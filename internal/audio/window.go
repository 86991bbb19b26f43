package audio

// Window 单个会话的滑动音频窗口
//
// 每次 Push 都用上一轮保留的尾部音频作为上下文拼接新音频，
// 并把整个窗口作为下一轮的历史。只有 Truncate 会丢弃旧音频。
type Window struct {
	keep   int       // 提交时保留的采样数
	length int       // 目标上下文长度(采样数)
	window []float32 // 最近一次送入识别的窗口
	tail   []float32 // 下一轮使用的历史音频
}

// NewWindow 创建滑动窗口
func NewWindow(keep, length int) *Window {
	if keep < 0 {
		keep = 0
	}
	if length < 0 {
		length = 0
	}
	return &Window{keep: keep, length: length}
}

// TakeCount 计算本次需要从历史中取出的采样数
func (w *Window) TakeCount(newSamples int) int {
	want := w.keep + w.length - newSamples
	if want < 0 {
		want = 0
	}
	if want > len(w.tail) {
		want = len(w.tail)
	}
	return want
}

// Push 拼接历史尾部和新音频，返回本轮识别窗口
func (w *Window) Push(samples []float32) []float32 {
	take := w.TakeCount(len(samples))

	window := make([]float32, 0, take+len(samples))
	window = append(window, w.tail[len(w.tail)-take:]...)
	window = append(window, samples...)

	w.window = window
	w.tail = window
	return window
}

// Truncate 将历史裁剪为最后 keep 个采样
func (w *Window) Truncate() {
	if len(w.tail) <= w.keep {
		return
	}
	tail := make([]float32, w.keep)
	copy(tail, w.tail[len(w.tail)-w.keep:])
	w.tail = tail
}

// Tail 返回当前历史的副本
func (w *Window) Tail() []float32 {
	return append([]float32(nil), w.tail...)
}

// Current 返回最近一次窗口的副本
func (w *Window) Current() []float32 {
	return append([]float32(nil), w.window...)
}

// Len 当前历史长度
func (w *Window) Len() int {
	return len(w.tail)
}
