// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package scoring

import "math"

// DefaultTolerance 默认容差（百分比）
const DefaultTolerance = 5.0

// Score 根据提交重量与参考重量计算得分，范围 [0, 100]，保留两位小数
//
// 偏差百分比 = |submitted - reference| / reference * 100
// 得分 = max(0, 100 - 偏差百分比 / tolerance * 100)
//
// submitted 或 reference 为 0 时得分为 0。舍入使用 math.Round（0.5 远离零）。
func Score(submitted, reference, tolerance float64) float64 {
	if submitted == 0 || reference == 0 || !finite(submitted) || !finite(reference) {
		return 0
	}
	if tolerance <= 0 || !finite(tolerance) {
		tolerance = DefaultTolerance
	}

	deviation := math.Abs(submitted-reference) / math.Abs(reference) * 100
	raw := 100 - deviation/tolerance*100
	if raw <= 0 {
		return 0
	}
	return math.Round(raw*100) / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
