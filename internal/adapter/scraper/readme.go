package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"

	"github-trending/internal/common"
	"github-trending/internal/domain"
)

// README 候选文件名，按常见程度排列
var readmeNames = []string{
	"README.md",
	"readme.md",
	"README.MD",
	"README.rst",
	"README.txt",
	"README",
}

var readmeBranches = []string{"main", "master"}

const (
	readmeRequestTimeout  = 15 * time.Second
	readmeTruncationMark  = "\n\n... (内容已截断)"
	readmeCodeInlineLimit = 100
)

var multiNewlineRe = regexp.MustCompile(`\n{3,}`)

// ReadmeFetcher 实现了 port.ReadmeSource 接口
// 按 raw 文件 -> GitHub API -> 页面反提取 的顺序拿 README
// 每次网络尝试前先过令牌桶，允许小突发但压住总请求量
type ReadmeFetcher struct {
	client   *Client
	gh       *github.Client
	bucket   *common.TokenBucket
	baseURL  string
	maxBytes int
}

// NewReadmeFetcher 构建 README 抓取器
// token 为空时 API 这一级走匿名调用，受 60 次/小时的官方限额
func NewReadmeFetcher(client *Client, token string, level domain.DetailLevel, bucket *common.TokenBucket) *ReadmeFetcher {
	var gh *github.Client
	if token == "" {
		gh = github.NewClient(nil)
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		gh = github.NewClient(oauth2.NewClient(context.Background(), ts))
	}
	return &ReadmeFetcher{
		client:   client,
		gh:       gh,
		bucket:   bucket,
		baseURL:  "https://github.com",
		maxBytes: level.Budget(),
	}
}

// FetchReadme 逐级降级获取 README，任何一级成功都会做清洗和截断
// 三级全部失败才返回错误
func (f *ReadmeFetcher) FetchReadme(ctx context.Context, owner, name string) (string, error) {
	if content := f.fetchRaw(ctx, owner, name); content != "" {
		return f.cleanContent(content), nil
	}
	if content := f.fetchViaAPI(ctx, owner, name); content != "" {
		return f.cleanContent(content), nil
	}
	if content := f.fetchFromHTML(ctx, owner, name); content != "" {
		return f.cleanContent(content), nil
	}
	return "", common.NewError(common.ErrCodeReadme, fmt.Sprintf("获取 %s/%s 的 README 失败", owner, name))
}

// fetchRaw 逐个探测 分支 x 文件名 的 raw 地址，拿到第一个非空内容就停
func (f *ReadmeFetcher) fetchRaw(ctx context.Context, owner, name string) string {
	for _, branch := range readmeBranches {
		for _, file := range readmeNames {
			rawURL := fmt.Sprintf("%s/%s/%s/raw/%s/%s", f.baseURL, owner, name, branch, file)

			f.bucket.WaitForToken(1)
			reqCtx, cancel := context.WithTimeout(ctx, readmeRequestTimeout)
			content, err := f.client.get(reqCtx, rawURL)
			cancel()
			if err == nil && content != "" {
				return content
			}
			if ctx.Err() != nil {
				return ""
			}
		}
	}
	return ""
}

// fetchViaAPI 走 GetReadme 接口，内容按 base64 解码
func (f *ReadmeFetcher) fetchViaAPI(ctx context.Context, owner, name string) string {
	f.bucket.WaitForToken(1)
	reqCtx, cancel := context.WithTimeout(ctx, readmeRequestTimeout)
	defer cancel()

	readme, _, err := f.gh.Repositories.GetReadme(reqCtx, owner, name, nil)
	if err != nil {
		return ""
	}
	content, err := readme.GetContent()
	if err != nil {
		return ""
	}
	return content
}

// fetchFromHTML 兜底方案：从仓库主页的 README 渲染区反提取出近似 Markdown
func (f *ReadmeFetcher) fetchFromHTML(ctx context.Context, owner, name string) string {
	f.bucket.WaitForToken(1)
	page, err := f.client.get(ctx, fmt.Sprintf("%s/%s/%s", f.baseURL, owner, name))
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}

	article := doc.Find("article").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class := s.AttrOr("class", "")
		return strings.Contains(class, "markdown-body") || strings.Contains(class, "readme")
	}).First()
	if article.Length() == 0 {
		return ""
	}
	return rebuildMarkdown(article)
}

// rebuildMarkdown 把渲染后的 README 还原成带结构标记的纯文本
// 超长的 code 元素多半是整块代码，直接跳过
func rebuildMarkdown(article *goquery.Selection) string {
	var lines []string
	article.Find("p, h1, h2, h3, li, code").Each(func(_ int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(el) {
		case "h1":
			lines = append(lines, "# "+text)
		case "h2":
			lines = append(lines, "## "+text)
		case "h3":
			lines = append(lines, "### "+text)
		case "li":
			lines = append(lines, "- "+text)
		case "code":
			if utf8.RuneCountInString(text) < readmeCodeInlineLimit {
				lines = append(lines, "`"+text+"`")
			}
		default:
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return strings.TrimSpace(article.Text())
	}
	return strings.Join(lines, "\n\n")
}

// cleanContent 压缩连续空行、裁剪行首尾空白，再按档位预算截断
// 截断时尽量退到换行处断开，但至少保留八成预算
func (f *ReadmeFetcher) cleanContent(content string) string {
	content = multiNewlineRe.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")

	if f.maxBytes > 0 && len(content) > f.maxBytes {
		cutAt := f.maxBytes
		for cutAt > 0 && !utf8.RuneStart(content[cutAt]) {
			cutAt--
		}
		cut := content[:cutAt]
		if idx := strings.LastIndex(cut, "\n"); idx > f.maxBytes*8/10 {
			cut = cut[:idx]
		}
		content = cut + readmeTruncationMark
	}
	return strings.TrimSpace(content)
}
