package segment

import (
	"image"
	"math"
)

// gradientGain Sobel 幅值放大系数
const gradientGain = 1.5

// Gradient 计算每个像素的边缘强度，结果与输入同尺寸。
//
// 亮度取 R、G、B 的算术平均（忽略 alpha），对内部像素做 3x3 Sobel，
// 幅值 = clamp(round(sqrt(Gx²+Gy²) × 1.5), 0, 255)。
// 最外圈像素不计算，保持为 0。
func Gradient(img *image.NRGBA, workers int) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	field := image.NewGray(img.Rect)
	if w < 3 || h < 3 {
		return field
	}

	lum := luminance(img, workers)

	forEachBand(h, workers, func(y0, y1 int) {
		for y := max(y0, 1); y < min(y1, h-1); y++ {
			up, mid, down := (y-1)*w, y*w, (y+1)*w
			row := y * field.Stride
			for x := 1; x < w-1; x++ {
				tl, tc, tr := lum[up+x-1], lum[up+x], lum[up+x+1]
				ml, mr := lum[mid+x-1], lum[mid+x+1]
				bl, bc, br := lum[down+x-1], lum[down+x], lum[down+x+1]

				gx := -tl - 2*ml - bl + tr + 2*mr + br
				gy := -tl - 2*tc - tr + bl + 2*bc + br

				mag := math.Sqrt(gx*gx+gy*gy) * gradientGain
				field.Pix[row+x] = clampUint8(mag)
			}
		}
	})

	return field
}

// luminance 生成只读亮度平面，行优先，步长为宽度
func luminance(img *image.NRGBA, workers int) []float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	lum := make([]float64, w*h)
	forEachBand(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			src := img.Pix[y*img.Stride : y*img.Stride+w*4]
			dst := lum[y*w : (y+1)*w]
			for x := range dst {
				p := src[x*4 : x*4+3 : x*4+3]
				dst[x] = (float64(p[0]) + float64(p[1]) + float64(p[2])) / 3
			}
		}
	})
	return lum
}

func clampUint8(v float64) uint8 {
	if v >= 255 {
		return 255
	}
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return uint8(math.RoundToEven(v))
}
