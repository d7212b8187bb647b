package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-trending/internal/domain"
)

// modernTrendingPage 模拟当前版本的趋势页结构
// 三个条目中第二个缺少身份链接，解析时应该被跳过
const modernTrendingPage = `<!DOCTYPE html>
<html lang="en">
<body>
<main>
<div class="Box">
<article class="Box-row">
  <h2 class="h3 lh-condensed">
    <a href="/anthropics/claude-code">anthropics / claude-code</a>
  </h2>
  <p class="col-9 color-fg-muted my-1 pr-4">An agentic coding tool that lives in your terminal.</p>
  <div class="f6 color-fg-muted mt-2">
    <span class="d-inline-block ml-0 mr-3">
      <span itemprop="programmingLanguage">TypeScript</span>
    </span>
    <a class="Link--muted d-inline-block mr-3" href="/anthropics/claude-code/stargazers">1.2k</a>
    <a class="Link--muted d-inline-block mr-3" href="/anthropics/claude-code/forks">342</a>
    <span class="d-inline-block mr-3">
      Built by
      <a href="/users/alice"><img class="avatar mb-1" src="https://avatars.githubusercontent.com/u/101?s=40" alt="@alice"></a>
      <a href="/users/bob"><img class="avatar mb-1" src="https://avatars.githubusercontent.com/u/102?s=40" alt="@bob"></a>
    </span>
    <span class="d-inline-block float-sm-right">120 stars today</span>
  </div>
</article>
<article class="Box-row">
  <span>Ad slot, no repository link here</span>
  <p class="col-9 color-fg-muted my-1 pr-4">This block should never become a repository entry.</p>
</article>
<article class="Box-row">
  <h2 class="h3 lh-condensed">
    <a href="/golang/go">golang / go</a>
  </h2>
  <p class="color-fg-muted my-1 pr-4">The Go programming language</p>
  <div class="f6 color-fg-muted mt-2">
    <a class="Link--muted d-inline-block mr-3" href="/golang/go/stargazers">15,420</a>
    <a class="Link--muted d-inline-block mr-3" href="/golang/go/forks">1,024</a>
    <span class="d-inline-block mr-3">
      Built by
      <a href="/users/u1"><img class="avatar" src="https://avatars.githubusercontent.com/u/1?s=40"></a>
      <a href="/users/u2"><img class="avatar" src="https://avatars.githubusercontent.com/u/2?s=40"></a>
      <a href="/users/u3"><img class="avatar" src="https://avatars.githubusercontent.com/u/3?s=40"></a>
      <a href="/users/u4"><img class="avatar" src="https://avatars.githubusercontent.com/u/4?s=40"></a>
      <a href="/users/u5"><img class="avatar" src="https://avatars.githubusercontent.com/u/5?s=40"></a>
      <a href="/users/u6"><img class="avatar" src="https://avatars.githubusercontent.com/u/6?s=40"></a>
      <a href="/users/u7"><img class="avatar" src="https://avatars.githubusercontent.com/u/7?s=40"></a>
    </span>
  </div>
</article>
</div>
</main>
</body>
</html>`

// legacyTrendingPage 模拟旧版结构：div.Box-row 容器加 h1 大标题
const legacyTrendingPage = `<html>
<body>
<div class="Box-row">
  <h1 class="h3 lh-condensed">
    <a href="https://github.com/rust-lang/rust">rust-lang / rust</a>
  </h1>
  <div dir="auto">Empowering everyone to build reliable and efficient software.</div>
  <span itemprop="programmingLanguage">Rust</span>
  <a href="/rust-lang/rust/stargazers">98,765</a>
  <span class="d-inline-block float-sm-right">56 stars today</span>
</div>
</body>
</html>`

// fallbackPage 所有已知容器选择器都失配，只能靠 class 兜底扫描
const fallbackPage = `<html>
<body>
<article class="pinned repo-item">
  <h2><a href="/torvalds/linux">torvalds / linux</a></h2>
  <p class="ws-normal">Linux kernel source tree mirror used by everyone.</p>
</article>
</body>
</html>`

func newFixedParser(ts time.Time) *Parser {
	p := NewParser()
	p.nowFunc = func() time.Time { return ts }
	return p
}

func TestParser_Parse_现代页面(t *testing.T) {
	capturedAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	p := newFixedParser(capturedAt)

	repos, err := p.Parse(modernTrendingPage, domain.PeriodDaily)
	require.NoError(t, err)

	// 三个条目里有一个缺身份链接，整批解析仍然成功
	require.Len(t, repos, 2)

	first := repos[0]
	assert.Equal(t, "anthropics", first.Owner)
	assert.Equal(t, "claude-code", first.Name)
	assert.Equal(t, "https://github.com/anthropics/claude-code", first.URL)
	assert.Equal(t, "An agentic coding tool that lives in your terminal.", first.Description)
	assert.Equal(t, "TypeScript", first.Language)
	assert.Equal(t, 1200, first.Stars)
	assert.Equal(t, 342, first.Forks)
	assert.Equal(t, 120, first.TodayStars)
	assert.Equal(t, []string{
		"https://avatars.githubusercontent.com/u/101",
		"https://avatars.githubusercontent.com/u/102",
	}, first.Contributors)
	assert.Equal(t, domain.PeriodDaily, first.Period)
	assert.Equal(t, capturedAt, first.CapturedAt)

	second := repos[1]
	assert.Equal(t, "golang/go", second.FullName())
	assert.Equal(t, 15420, second.Stars)
	assert.Equal(t, 1024, second.Forks)
	assert.Equal(t, 0, second.TodayStars, "没有 stars today 徽标时应为 0")
	assert.Equal(t, "", second.Language, "缺语言标记时留空")
	assert.Len(t, second.Contributors, 5, "头像最多保留 5 个")
}

func TestParser_Parse_旧版页面(t *testing.T) {
	p := newFixedParser(time.Now())

	repos, err := p.Parse(legacyTrendingPage, domain.PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, repos, 1)

	repo := repos[0]
	assert.Equal(t, "rust-lang", repo.Owner)
	assert.Equal(t, "rust", repo.Name)
	assert.Equal(t, "https://github.com/rust-lang/rust", repo.URL)
	assert.Equal(t, "Empowering everyone to build reliable and efficient software.", repo.Description)
	assert.Equal(t, "Rust", repo.Language)
	assert.Equal(t, 98765, repo.Stars)
	assert.Equal(t, 56, repo.TodayStars)
	assert.Equal(t, domain.PeriodWeekly, repo.Period)
}

func TestParser_Parse_兜底扫描(t *testing.T) {
	p := newFixedParser(time.Now())

	repos, err := p.Parse(fallbackPage, domain.PeriodDaily)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "torvalds/linux", repos[0].FullName())
	assert.Equal(t, "Linux kernel source tree mirror used by everyone.", repos[0].Description)
}

func TestParser_Parse_空页面(t *testing.T) {
	p := newFixedParser(time.Now())

	tests := []struct {
		name string
		html string
	}{
		{"完全空白", ""},
		{"没有条目的页面", "<html><body><h1>Trending</h1></body></html>"},
		{"残缺标签", "<div><p>broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, err := p.Parse(tt.html, domain.PeriodDaily)
			assert.NoError(t, err)
			assert.Empty(t, repos)
		})
	}
}

func TestParser_Parse_描述长度下限(t *testing.T) {
	// 第一个候选命中的是统计短文本，应该继续试下一个候选
	page := `<html><body>
<article class="Box-row">
  <h2><a href="/short/desc"></a></h2>
  <p class="col-9">1.2k stars</p>
  <p class="ws-normal">A proper description longer than the cutoff.</p>
</article>
</body></html>`

	p := newFixedParser(time.Now())
	repos, err := p.Parse(page, domain.PeriodDaily)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "A proper description longer than the cutoff.", repos[0].Description)
}

func TestParser_Parse_中文描述按字符数计(t *testing.T) {
	// 12 个汉字按字节算远超限，按字符数算也过线
	page := `<html><body>
<article class="Box-row">
  <h2><a href="/cn/project"></a></h2>
  <p class="col-9">一个非常好用的命令行工具</p>
</article>
</body></html>`

	p := newFixedParser(time.Now())
	repos, err := p.Parse(page, domain.PeriodDaily)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "一个非常好用的命令行工具", repos[0].Description)
}

func TestSplitRepoPath(t *testing.T) {
	tests := []struct {
		name      string
		href      string
		wantOwner string
		wantName  string
	}{
		{"相对路径", "/anthropics/claude-code", "anthropics", "claude-code"},
		{"完整地址", "https://github.com/golang/go", "golang", "go"},
		{"带尾斜杠", "/rust-lang/rust/", "rust-lang", "rust"},
		{"带子路径只取前两段", "/golang/go/tree/master/src", "golang", "go"},
		{"带查询参数", "/owner/repo?tab=readme", "owner", "repo"},
		{"单段路径", "/explore", "", ""},
		{"登录跳转链接", "/login?return_to=trending", "", ""},
		{"空路径", "/", "", ""},
		{"空字符串", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, name := splitRepoPath(tt.href)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"纯数字", "342", 342},
		{"千位分隔逗号", "15,420", 15420},
		{"k 后缀", "1.2k", 1200},
		{"大写 K 后缀", "2.5K", 2500},
		{"整数 k", "36k", 36000},
		{"k 后缀带尾随文本", "12k stars", 12000},
		{"前后空白", "  88  ", 88},
		{"空字符串", "", 0},
		{"非数字文本", "N/A", 0},
		{"只有后缀", "k", 0},
		{"小数没有后缀", "3.14", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumber(tt.text))
		})
	}
}

func TestCanonicalAvatarURL(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "去掉尺寸参数",
			src:  "https://avatars.githubusercontent.com/u/9919?s=40",
			want: "https://avatars.githubusercontent.com/u/9919",
		},
		{
			name: "更大的尺寸值",
			src:  "https://avatars.githubusercontent.com/u/1?s=460",
			want: "https://avatars.githubusercontent.com/u/1",
		},
		{
			name: "没有尺寸参数时原样返回",
			src:  "https://avatars.githubusercontent.com/u/9919",
			want: "https://avatars.githubusercontent.com/u/9919",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalAvatarURL(tt.src))
		})
	}
}
