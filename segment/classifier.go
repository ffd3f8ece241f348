package segment

import "image"

// IsForeground 判断单个像素是否属于主体。
// 边缘优先保留；否则纯黑为背景；其余按饱和度与 sensitivity 比较。
func IsForeground(r, g, b, edge uint8, sensitivity float64) bool {
	if edge > EdgeThreshold {
		return true
	}

	maxC := max(r, g, b)
	if maxC == 0 {
		return false
	}
	minC := min(r, g, b)

	saturation := float64(maxC-minC) / float64(maxC)
	return saturation > sensitivity
}

// Decision 逐像素的前景/背景判定，尺寸与源图一致
type Decision struct {
	Width  int
	Height int
	fg     []bool
}

// Count 返回前景像素数量
func (d *Decision) Count() int {
	n := 0
	for _, v := range d.fg {
		if v {
			n++
		}
	}
	return n
}

// Classify 根据梯度场和参数对每个像素做判定。
// 判定只依赖像素自身颜色、其梯度值和 sensitivity，与处理顺序无关。
func Classify(img *image.NRGBA, field *image.Gray, opts Options, workers int) *Decision {
	opts = opts.WithDefaults()
	w, h := img.Rect.Dx(), img.Rect.Dy()
	d := &Decision{Width: w, Height: h, fg: make([]bool, w*h)}

	forEachBand(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			src := img.Pix[y*img.Stride:]
			edges := field.Pix[y*field.Stride:]
			out := d.fg[y*w : (y+1)*w]
			for x := range out {
				if opts.Border == BorderBackground && onBorder(x, y, w, h) {
					continue
				}
				p := src[x*4 : x*4+3 : x*4+3]
				out[x] = IsForeground(p[0], p[1], p[2], edges[x], opts.Sensitivity)
			}
		}
	})

	return d
}

func onBorder(x, y, w, h int) bool {
	return x == 0 || y == 0 || x == w-1 || y == h-1
}
