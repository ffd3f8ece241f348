package segment

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// forEachBand 将 [0,height) 切分为互不重叠的行区间并行处理。
// fn 只能写入自己区间内的行。
func forEachBand(height, workers int, fn func(y0, y1 int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > height {
		workers = height
	}
	if workers <= 1 {
		fn(0, height)
		return
	}

	step := (height + workers - 1) / workers
	var g errgroup.Group
	for y0 := 0; y0 < height; y0 += step {
		start, end := y0, min(y0+step, height)
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}
