package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github-trending/internal/common"
	"github-trending/internal/domain"
)

// 条目容器选择器，按新旧页面结构排列
// 同一页面内部结构一致，第一个命中的选择器就取全部条目
var entrySelectors = []string{
	"article.Box-row",
	"article[data-test-id='repo-row']",
	"div.Box-row",
	"li.js-repo-list-item",
}

// 仓库身份链接的候选位置
var identitySelectors = []string{
	"h2 a[href]",
	"h1 a[href]",
	"a[href^='/']",
}

// 描述段落的候选位置
var descriptionSelectors = []string{
	"p.col-9",
	"p.color-fg-muted",
	"p.ws-normal",
	"div[dir='auto']",
	"p[colored-text]",
}

var (
	todayStarsRe = regexp.MustCompile(`(?i)([\d,]+)\s*stars?\s*today`)
	kSuffixRe    = regexp.MustCompile(`(?i)^([\d.]+)k`)
	avatarSizeRe = regexp.MustCompile(`\?s=\d+`)
)

var githubBase = &url.URL{Scheme: "https", Host: "github.com"}

// Parser 把趋势页 HTML 解析成仓库条目
// 单个条目坏掉只会被跳过，不会让整批失败
type Parser struct {
	nowFunc func() time.Time
}

func NewParser() *Parser {
	return &Parser{nowFunc: time.Now}
}

// Parse 解析整页内容，按页面出现顺序返回条目
// 页面上找不到任何条目时返回空切片而不是错误
func (p *Parser) Parse(html string, period domain.Period) ([]*domain.TrendingRepo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeParse, "解析趋势页文档", err)
	}

	entries := findEntries(doc)
	capturedAt := p.nowFunc()

	repos := make([]*domain.TrendingRepo, 0, entries.Length())
	entries.Each(func(_ int, entry *goquery.Selection) {
		if repo := parseEntry(entry, period, capturedAt); repo != nil {
			repos = append(repos, repo)
		}
	})
	return repos, nil
}

// findEntries 按选择器链定位条目容器
// 全部失配时兜底扫 class 里带 Box 或 repo 的 article
func findEntries(doc *goquery.Document) *goquery.Selection {
	for _, sel := range entrySelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return doc.Find("article").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class := s.AttrOr("class", "")
		return strings.Contains(class, "Box") || strings.Contains(class, "repo")
	})
}

// parseEntry 逐字段尽力提取，只有仓库身份解析失败才丢弃该条目
func parseEntry(entry *goquery.Selection, period domain.Period, capturedAt time.Time) *domain.TrendingRepo {
	owner, name, repoURL := extractIdentity(entry)
	if owner == "" || name == "" {
		return nil
	}

	stars, forks := extractCounts(entry)

	repo := &domain.TrendingRepo{
		Owner:        owner,
		Name:         name,
		URL:          repoURL,
		Description:  extractDescription(entry),
		Language:     extractLanguage(entry),
		Stars:        stars,
		Forks:        forks,
		TodayStars:   extractTodayStars(entry),
		Contributors: extractContributors(entry),
		Period:       period,
		CapturedAt:   capturedAt,
	}
	if repo.URL == "" {
		repo.URL = repo.CanonicalURL()
	}
	return repo
}

// extractIdentity 从候选链接里解析 owner/name，取路径的前两段
func extractIdentity(entry *goquery.Selection) (owner, name, repoURL string) {
	for _, sel := range identitySelectors {
		link := entry.Find(sel).First()
		if link.Length() == 0 {
			continue
		}
		href := link.AttrOr("href", "")
		o, n := splitRepoPath(href)
		if o != "" && n != "" {
			return o, n, absoluteURL(href)
		}
	}
	return "", "", ""
}

func splitRepoPath(href string) (string, string) {
	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	}
	parts := strings.Split(strings.Trim(path, "/ "), "/")
	if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1]
	}
	return "", ""
}

func absoluteURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return githubBase.ResolveReference(u).String()
}

// extractDescription 取第一个超过 10 个字符的候选段落
// 长度下限用来挡掉混进候选的统计短文本
func extractDescription(entry *goquery.Selection) string {
	for _, sel := range descriptionSelectors {
		el := entry.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(el.Text())
		if utf8.RuneCountInString(text) > 10 {
			return text
		}
	}
	return ""
}

// extractLanguage 优先读语言标记元素，缺失时退回位置猜测
func extractLanguage(entry *goquery.Selection) string {
	if el := entry.Find("span[itemprop='programmingLanguage']").First(); el.Length() > 0 {
		return strings.TrimSpace(el.Text())
	}
	if el := entry.Find("div[d-flex] > span:nth-child(2)").First(); el.Length() > 0 {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

// extractCounts 从 stargazers/forks 链接的可见文本里取计数
func extractCounts(entry *goquery.Selection) (stars, forks int) {
	entry.Find("a[href*='/stargazers'], a[href*='/forks'], a[href*='/graphs']").Each(func(_ int, link *goquery.Selection) {
		href := link.AttrOr("href", "")
		num := ParseNumber(link.Text())
		switch {
		case strings.Contains(href, "/stargazers"):
			stars = num
		case strings.Contains(href, "/forks"):
			forks = num
		}
	})
	return stars, forks
}

// extractTodayStars 在星标徽标区找 "N stars today" 字样
func extractTodayStars(entry *goquery.Selection) int {
	today := 0
	entry.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		class := span.AttrOr("class", "")
		if !strings.Contains(class, "d-inline") && !strings.Contains(class, "float-sm-right") {
			return true
		}
		if m := todayStarsRe.FindStringSubmatch(span.Text()); m != nil {
			today = ParseNumber(m[1])
			return false
		}
		return true
	})
	return today
}

// extractContributors 收集贡献者头像地址，最多保留 5 个
func extractContributors(entry *goquery.Selection) []string {
	var avatars []string
	entry.Find("a[href*='/users/']").Each(func(_ int, link *goquery.Selection) {
		img := link.Find("img").First()
		if img.Length() == 0 {
			return
		}
		src := img.AttrOr("src", "")
		if src == "" {
			return
		}
		if !strings.Contains(src, "avatar") && !strings.Contains(src, "u/") {
			return
		}
		avatars = append(avatars, CanonicalAvatarURL(src))
	})
	if len(avatars) > 5 {
		avatars = avatars[:5]
	}
	return avatars
}

// CanonicalAvatarURL 去掉头像地址里的尺寸参数
func CanonicalAvatarURL(src string) string {
	return avatarSizeRe.ReplaceAllString(src, "")
}

// ParseNumber 解析宽松格式的计数文本
// "1.2k" 按千倍换算，"3,400" 去掉分隔逗号，任何一步失败都返回 0
func ParseNumber(text string) int {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")

	if m := kSuffixRe.FindStringSubmatch(text); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0
		}
		return int(f * 1000)
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}
