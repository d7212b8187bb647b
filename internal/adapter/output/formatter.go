package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github-trending/internal/common"
	"github-trending/internal/domain"
)

// 支持的输出格式
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Formatter 把榜单条目渲染成各种输出格式
type Formatter struct {
	nowFunc func() time.Time
}

func NewFormatter() *Formatter {
	return &Formatter{nowFunc: time.Now}
}

// Render 按格式名渲染，空格式当 table 处理
func (f *Formatter) Render(repos []*domain.TrendingRepo, format string) (string, error) {
	switch format {
	case FormatTable, "":
		return f.renderTable(repos), nil
	case FormatJSON:
		return f.renderJSON(repos)
	case FormatMarkdown:
		return f.renderMarkdown(repos), nil
	case FormatCSV:
		return f.renderCSV(repos)
	default:
		return "", common.NewError(common.ErrCodeConfig,
			fmt.Sprintf("不认识的输出格式 %q，可选: table, json, markdown, csv", format))
	}
}

// WriteFile 渲染后落盘，目录不存在就建出来
func (f *Formatter) WriteFile(repos []*domain.TrendingRepo, format, path string) error {
	content, err := f.Render(repos, format)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return common.WrapError(common.ErrCodeOutput, "创建输出目录", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return common.WrapError(common.ErrCodeOutput, "写出结果文件", err)
	}
	return nil
}

// renderTable 终端表格。带分析结果时多出评分和学习价值两列，
// 末尾附一段分析摘要
func (f *Formatter) renderTable(repos []*domain.TrendingRepo) string {
	if len(repos) == 0 {
		return "没有找到任何仓库\n"
	}

	hasAI := false
	for _, repo := range repos {
		if repo.Analysis != nil {
			hasAI = true
			break
		}
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	if hasAI {
		fmt.Fprintln(w, "#\t仓库\t语言\t⭐ 星标\t评分\t学习价值\t简介")
	} else {
		fmt.Fprintln(w, "#\t仓库\t语言\t⭐ 星标\t描述")
	}

	for i, repo := range repos {
		stars := formatStars(repo.Stars, repo.TodayStars)
		if hasAI {
			score, learning, brief := "-", "-", truncate(repo.Description, 40)
			if a := repo.Analysis; a != nil {
				score = fmt.Sprintf("%.1f", a.Score)
				learning = a.LearningValue
				brief = truncate(a.Summary, 40)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				i+1, truncate(repo.FullName(), 40), repo.Language, stars, score, learning, brief)
		} else {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				i+1, truncate(repo.FullName(), 40), repo.Language, stars, truncate(repo.Description, 40))
		}
	}
	w.Flush()

	if summary := analysisSummary(repos); summary != "" {
		buf.WriteString("\n")
		buf.WriteString(summary)
	}
	return buf.String()
}

// analysisSummary 表格末尾的汇总，只统计带结果的条目
func analysisSummary(repos []*domain.TrendingRepo) string {
	analyzed, worthwhile := 0, 0
	var totalScore float64
	model := ""
	techCounts := map[string]int{}

	for _, repo := range repos {
		a := repo.Analysis
		if a == nil {
			continue
		}
		analyzed++
		totalScore += a.Score
		if a.Worthwhile {
			worthwhile++
		}
		if model == "" && a.Model != "" {
			model = a.Model
		}
		for _, tech := range a.TechStack {
			techCounts[tech]++
		}
	}
	if analyzed == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("📊 AI 分析摘要\n")
	fmt.Fprintf(&sb, "  分析项目数: %d\n", analyzed)
	fmt.Fprintf(&sb, "  高价值推荐: %d (%.1f%%)\n", worthwhile, float64(worthwhile)*100/float64(analyzed))
	fmt.Fprintf(&sb, "  平均评分: %.1f/10\n", totalScore/float64(analyzed))
	if model != "" {
		fmt.Fprintf(&sb, "  使用模型: %s\n", model)
	}
	if len(techCounts) > 0 {
		sb.WriteString("  热门技术栈:\n")
		for _, tc := range topTech(techCounts, 5) {
			fmt.Fprintf(&sb, "    • %s: %d\n", tc.name, tc.count)
		}
	}
	return sb.String()
}

type techCount struct {
	name  string
	count int
}

// topTech 出现次数降序取前 n，同次数按名字排，结果才稳定
func topTech(counts map[string]int, n int) []techCount {
	ranked := make([]techCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, techCount{name: name, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// renderJSON 完整字段的 JSON，带时间戳和数量的信封
func (f *Formatter) renderJSON(repos []*domain.TrendingRepo) (string, error) {
	if repos == nil {
		repos = []*domain.TrendingRepo{}
	}

	payload := struct {
		Timestamp    time.Time              `json:"timestamp"`
		Count        int                    `json:"count"`
		Repositories []*domain.TrendingRepo `json:"repositories"`
	}{
		Timestamp:    f.nowFunc(),
		Count:        len(repos),
		Repositories: repos,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", common.WrapError(common.ErrCodeOutput, "序列化 JSON", err)
	}
	return string(data) + "\n", nil
}

// renderMarkdown 开头一张总览管道表，后面每个仓库一节详情
func (f *Formatter) renderMarkdown(repos []*domain.TrendingRepo) string {
	var sb strings.Builder
	sb.WriteString("# GitHub Trending\n\n")
	fmt.Fprintf(&sb, "*抓取时间: %s*\n", f.nowFunc().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "*项目数量: %d*\n\n", len(repos))

	sb.WriteString("| # | 仓库 | 语言 | ⭐ 星标 | 今日 | 评分 |\n")
	sb.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for i, repo := range repos {
		score := "-"
		if repo.Analysis != nil {
			score = fmt.Sprintf("%.1f", repo.Analysis.Score)
		}
		fmt.Fprintf(&sb, "| %d | [%s](%s) | %s | %s | +%d | %s |\n",
			i+1, repo.FullName(), repo.CanonicalURL(), repo.Language,
			groupDigits(repo.Stars), repo.TodayStars, score)
	}

	for i, repo := range repos {
		sb.WriteString("\n---\n\n")
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, repo.FullName())
		fmt.Fprintf(&sb, "**⭐ %s** (+%d today) | **语言:** %s\n\n",
			groupDigits(repo.Stars), repo.TodayStars, repo.Language)
		if repo.Description != "" {
			sb.WriteString(repo.Description + "\n\n")
		}

		a := repo.Analysis
		if a == nil {
			continue
		}
		fmt.Fprintf(&sb, "**AI 评分:** %.1f/10 | **学习价值:** %s\n\n", a.Score, a.LearningValue)
		fmt.Fprintf(&sb, "**简介:** %s\n\n", a.Summary)
		if len(a.KeyFeatures) > 0 {
			sb.WriteString("**核心功能:**\n")
			for _, feature := range a.KeyFeatures {
				fmt.Fprintf(&sb, "- %s\n", feature)
			}
			sb.WriteString("\n")
		}
		if len(a.TechStack) > 0 {
			fmt.Fprintf(&sb, "**技术栈:** %s\n\n", strings.Join(a.TechStack, ", "))
		}
		if len(a.UseCases) > 0 {
			sb.WriteString("**使用场景:**\n")
			for _, useCase := range a.UseCases {
				fmt.Fprintf(&sb, "- %s\n", useCase)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderCSV 表头加数据行，逗号换行交给 encoding/csv 转义
func (f *Formatter) renderCSV(repos []*domain.TrendingRepo) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"仓库名", "描述", "语言", "星标", "Fork", "今日星标", "URL"},
	}
	for _, repo := range repos {
		records = append(records, []string{
			repo.FullName(),
			repo.Description,
			repo.Language,
			strconv.Itoa(repo.Stars),
			strconv.Itoa(repo.Forks),
			strconv.Itoa(repo.TodayStars),
			repo.CanonicalURL(),
		})
	}

	if err := w.WriteAll(records); err != nil {
		return "", common.WrapError(common.ErrCodeOutput, "写出 CSV", err)
	}
	return buf.String(), nil
}

// truncate 按字符截断，超长补省略号
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// groupDigits 千位加逗号，12345 -> 12,345
func groupDigits(n int) string {
	if n < 0 {
		return "-" + groupDigits(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}

	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

// formatStars 星标总数带今日增量，比如 12,345 ↑210
func formatStars(stars, today int) string {
	s := groupDigits(stars)
	if today > 0 {
		s += fmt.Sprintf(" ↑%d", today)
	}
	return s
}
