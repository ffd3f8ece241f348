package segment

import "image"

// ApplyMask 将背景像素的 alpha 置 0，前景像素保持原 alpha。
// RGB 通道不做任何修改。
func ApplyMask(img *image.NRGBA, d *Decision, workers int) {
	w := img.Rect.Dx()
	forEachBand(d.Height, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+w*4]
			fg := d.fg[y*w : (y+1)*w]
			for x, keep := range fg {
				if !keep {
					row[x*4+3] = 0
				}
			}
		}
	})
}
