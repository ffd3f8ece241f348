package segment

import "fmt"

// DefaultSensitivity 默认饱和度阈值
const DefaultSensitivity = 0.15

// EdgeThreshold 梯度强度高于该值的像素一律视为前景
const EdgeThreshold = 128

// Border 决定最外圈像素（不计算梯度）的处理方式
type Border string

const (
	// BorderBackground 外圈一律视为背景，alpha 置 0
	BorderBackground Border = "background"
	// BorderClassify 外圈按梯度 0 走分类规则
	BorderClassify Border = "classify"
)

// Options 单次调用的分割参数，调用方构造后不再修改
type Options struct {
	Sensitivity float64 `json:"sensitivity"`
	Border      Border  `json:"border"`
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{Sensitivity: DefaultSensitivity, Border: BorderBackground}
}

// WithDefaults 用默认值补齐未设置的字段
func (o Options) WithDefaults() Options {
	if o.Sensitivity == 0 {
		o.Sensitivity = DefaultSensitivity
	}
	if o.Border == "" {
		o.Border = BorderBackground
	}
	return o
}

// Validate 校验参数范围，零值字段按默认值处理
func (o Options) Validate() error {
	o = o.WithDefaults()
	// NaN 与任何值比较都为 false，必须写成区间内的正向判断
	if !(o.Sensitivity > 0 && o.Sensitivity <= 1) {
		return fmt.Errorf("sensitivity must be in (0, 1], got %v", o.Sensitivity)
	}
	switch o.Border {
	case BorderBackground, BorderClassify:
	default:
		return fmt.Errorf("unknown border policy %q", o.Border)
	}
	return nil
}
