// Package segment 实现本地背景去除流程：
// 梯度场计算 → 前景分类 → alpha 蒙版。
//
// 所有步骤按行区间并行，输出与串行执行逐位一致。
package segment

import "image"

// Result 本地流程的统计信息
type Result struct {
	Width      int
	Height     int
	Foreground int
}

// Remove 在 img 上原地去除背景，只修改 alpha 通道。
// 调用方需独占 img。
func Remove(img *image.NRGBA, opts Options, workers int) Result {
	field := Gradient(img, workers)
	decision := Classify(img, field, opts, workers)
	ApplyMask(img, decision, workers)

	return Result{
		Width:      decision.Width,
		Height:     decision.Height,
		Foreground: decision.Count(),
	}
}
