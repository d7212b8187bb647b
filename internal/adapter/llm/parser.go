package llm

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github-trending/internal/domain"
)

var (
	fencedRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	// 可打印 ASCII 之下的控制符加上 C1 区段，模型输出偶尔会混进来
	controlCharRe = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
)

// rawAnalysis 宽松接收模型输出，字段全部收成 any，类型不对就按字段降级，
// 不能因为一个字段的类型怪就丢掉整段结果
// worthwhile 有两种写法：提示词要求 is_worthwhile，序列化输出用 worthwhile
type rawAnalysis struct {
	Summary       any `json:"summary"`
	KeyFeatures   any `json:"key_features"`
	TechStack     any `json:"tech_stack"`
	UseCases      any `json:"use_cases"`
	LearningValue any `json:"learning_value"`
	Score         any `json:"score"`
	Worthwhile    any `json:"is_worthwhile"`
	WorthwhileAlt any `json:"worthwhile"`
	Reason        any `json:"reason"`
}

// parseAnalysis 把模型的原始输出解释成结构化分析
// 三种提取策略依次尝试，全部失败时返回占位结果和 false，绝不报错
func parseAnalysis(raw string) (*domain.AIAnalysis, bool) {
	for _, candidate := range jsonCandidates(raw) {
		var parsed rawAnalysis
		if err := json.Unmarshal([]byte(stripControlChars(candidate)), &parsed); err != nil {
			continue
		}
		worthwhile := parsed.Worthwhile
		if worthwhile == nil {
			worthwhile = parsed.WorthwhileAlt
		}
		return &domain.AIAnalysis{
			Summary:       coerceString(parsed.Summary),
			KeyFeatures:   coerceList(parsed.KeyFeatures),
			TechStack:     coerceList(parsed.TechStack),
			UseCases:      coerceList(parsed.UseCases),
			LearningValue: domain.NormalizeLearningValue(coerceString(parsed.LearningValue)),
			Score:         coerceScore(parsed.Score),
			Worthwhile:    coerceBool(worthwhile),
			Reason:        coerceString(parsed.Reason),
		}, true
	}
	return placeholderAnalysis(), false
}

// jsonCandidates 依次产出三种策略的候选文本：
// 整段原文、第一个围栏代码块、第一段配平的花括号子串
func jsonCandidates(raw string) []string {
	candidates := []string{strings.TrimSpace(raw)}
	if m := fencedRe.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if braced := balancedBraces(raw); braced != "" {
		candidates = append(candidates, braced)
	}
	return candidates
}

// balancedBraces 从第一个左花括号起向后扫，配平后截取
func balancedBraces(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func stripControlChars(s string) string {
	return controlCharRe.ReplaceAllString(s, "")
}

// placeholderAnalysis 是解码彻底失败时的固定兜底结果
func placeholderAnalysis() *domain.AIAnalysis {
	return &domain.AIAnalysis{
		Summary:       domain.ParseFailedSummary,
		KeyFeatures:   []string{},
		TechStack:     []string{},
		UseCases:      []string{},
		LearningValue: domain.LearningMedium,
		Score:         5.0,
		Worthwhile:    false,
		Reason:        "AI 返回结果解析失败",
	}
}

// coerceString 只认真正的字符串，其他类型一律按缺失处理
func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// coerceList 把标量元素转成裁剪过的文本
// 不是列表就给空列表；空值元素和嵌套结构直接丢掉
func coerceList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		switch el := item.(type) {
		case string:
			s = el
		case float64:
			if el == 0 {
				continue
			}
			s = strconv.FormatFloat(el, 'f', -1, 64)
		case bool:
			if !el {
				continue
			}
			s = "true"
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// coerceScore 接受数字和数字字符串，钳制到 [0,10]，解析不了给 5.0
func coerceScore(v any) float64 {
	switch s := v.(type) {
	case float64:
		return clampScore(s)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return clampScore(f)
		}
	}
	return 5.0
}

func clampScore(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return 5.0
	case f < 0:
		return 0
	case f > 10:
		return 10
	}
	return f
}

// coerceBool 接受原生布尔、数字真值和 true/yes/1 几种文本写法
func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true
		}
	case float64:
		return b != 0
	}
	return false
}
