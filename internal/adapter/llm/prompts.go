package llm

import (
	"fmt"

	"github-trending/internal/domain"
)

// README 超过这个字符数就截断后再进提示词
const readmePromptLimit = 15000

const systemPrompt = `你是一个经验丰富的技术专家，擅长分析和解读开源项目。

你的任务是阅读 GitHub 项目的 README 内容，对其进行分析和评估。

分析要求：
1. 准确理解项目的核心价值和功能
2. 识别项目使用的技术栈
3. 评估项目对开发者的学习价值
4. 给出客观的评分和判断

输出格式：必须严格按照 JSON 格式输出，不要包含任何额外的文字说明。`

const analysisPromptTemplate = `请分析以下 GitHub 项目，并按照 JSON 格式输出分析结果。

【项目信息】
- 仓库名: %s
- 描述: %s
- 编程语言: %s
- 星标数: %d
- 今日新增: %d

【README 内容】
%s

请按以下 JSON 格式输出（不要添加任何其他文字）：
{
  "summary": "项目核心价值的一句话概括",
  "key_features": ["功能1", "功能2", "功能3"],
  "tech_stack": ["技术1", "技术2", "技术3"],
  "use_cases": ["使用场景1", "使用场景2"],
  "learning_value": "high/medium/low",
  "score": 8.5,
  "is_worthwhile": true,
  "reason": "值得/不值得深入了解的原因"
}

评分标准：
- 9-10分: 革命性项目，强烈推荐关注
- 7-8分: 优秀项目，值得学习
- 5-6分: 有一定价值，可选择性关注
- 3-4分: 普通项目，价值有限
- 1-2分: 不推荐关注`

// buildAnalysisPrompt 组装单个仓库的分析提示词
// README 按字符数截断，缺失的字段用占位文本补上
func buildAnalysisPrompt(repo *domain.TrendingRepo, readme string) string {
	if r := []rune(readme); len(r) > readmePromptLimit {
		readme = string(r[:readmePromptLimit]) + "\n\n... (内容已截断)"
	}
	if readme == "" {
		readme = "无 README 内容"
	}

	description := repo.Description
	if description == "" {
		description = "无描述"
	}
	language := repo.Language
	if language == "" {
		language = "未知"
	}

	return fmt.Sprintf(analysisPromptTemplate,
		repo.FullName(),
		description,
		language,
		repo.Stars,
		repo.TodayStars,
		readme,
	)
}
