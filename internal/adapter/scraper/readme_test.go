package scraper

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-github/v53/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-trending/internal/common"
	"github-trending/internal/config"
	"github-trending/internal/domain"
)

// newTestReadmeFetcher 把 raw、API、页面三级全部指向同一个模拟服务器
// 重试次数压到零，令牌桶放大到不会阻塞
func newTestReadmeFetcher(t *testing.T, handler http.HandlerFunc, level domain.DetailLevel) *ReadmeFetcher {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient, err := NewClient(config.ScraperConfig{
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 0,
		UserAgents: []string{"test-agent/1.0"},
	}, nil)
	require.NoError(t, err)

	gh := github.NewClient(nil)
	apiBase, _ := url.Parse(server.URL + "/")
	gh.BaseURL = apiBase

	return &ReadmeFetcher{
		client:   httpClient,
		gh:       gh,
		bucket:   common.NewTokenBucket(10000, 10000),
		baseURL:  server.URL,
		maxBytes: level.Budget(),
	}
}

func TestReadmeFetcher_Raw文件命中(t *testing.T) {
	fetcher := newTestReadmeFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/anthropics/claude-code/raw/main/README.md" {
			fmt.Fprint(w, "# Claude Code\n\n\n\nAn agentic coding tool.\n")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, domain.DetailStandard)

	content, err := fetcher.FetchReadme(context.Background(), "anthropics", "claude-code")
	require.NoError(t, err)
	// 连续空行被压成一个空行，首尾空白去掉
	assert.Equal(t, "# Claude Code\n\nAn agentic coding tool.", content)
}

func TestReadmeFetcher_Raw按候选顺序探测(t *testing.T) {
	var probes []string
	fetcher := newTestReadmeFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		probes = append(probes, r.URL.Path)
		if r.URL.Path == "/o/r/raw/master/README.rst" {
			fmt.Fprint(w, "Fallback readme content here.")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, domain.DetailStandard)

	content, err := fetcher.FetchReadme(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, "Fallback readme content here.", content)

	// main 分支 6 个文件名全探完，master 分支探到第 4 个命中
	require.Len(t, probes, 10)
	assert.Equal(t, "/o/r/raw/main/README.md", probes[0])
	assert.Equal(t, "/o/r/raw/main/README", probes[5])
	assert.Equal(t, "/o/r/raw/master/README.rst", probes[9])
}

func TestReadmeFetcher_API降级(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("# From API\n\nHello from the API tier."))

	fetcher := newTestReadmeFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/o/r/readme" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"type":"file","name":"README.md","encoding":"base64","content":%q}`, encoded)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, domain.DetailStandard)

	content, err := fetcher.FetchReadme(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, "# From API\n\nHello from the API tier.", content)
}

func TestReadmeFetcher_页面反提取降级(t *testing.T) {
	repoPage := `<html><body>
<article class="markdown-body entry-content">
  <h1>Project</h1>
  <p>A short intro paragraph.</p>
  <h2>Install</h2>
  <li>step one</li>
  <li>step two</li>
  <code>go install example.com/project@latest</code>
</article>
</body></html>`

	fetcher := newTestReadmeFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/o/r":
			fmt.Fprint(w, repoPage)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, domain.DetailStandard)

	content, err := fetcher.FetchReadme(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, "# Project\n\nA short intro paragraph.\n\n## Install\n\n- step one\n\n- step two\n\n`go install example.com/project@latest`", content)
}

func TestReadmeFetcher_页面反提取跳过长代码块(t *testing.T) {
	longCode := strings.Repeat("x", 120)
	repoPage := `<html><body>
<article class="readme">
  <p>Paragraph kept as is.</p>
  <code>` + longCode + `</code>
</article>
</body></html>`

	fetcher := newTestReadmeFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/o/r" {
			fmt.Fprint(w, repoPage)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, domain.DetailStandard)

	content, err := fetcher.FetchReadme(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.Equal(t, "Paragraph kept as is.", content)
}

func TestReadmeFetcher_三级全部失败(t *testing.T) {
	var calls atomic.Int32
	fetcher := newTestReadmeFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, domain.DetailBrief)

	content, err := fetcher.FetchReadme(context.Background(), "ghost", "missing")
	require.Error(t, err)
	assert.Empty(t, content)
	assert.Equal(t, common.ErrCodeReadme, common.CodeOf(err))
	assert.Contains(t, err.Error(), "ghost/missing")
	// 12 个 raw 候选 + 1 次 API + 1 次页面
	assert.Equal(t, int32(14), calls.Load())
}

func TestReadmeFetcher_上下文取消中断探测(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := newTestReadmeFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			cancel()
		}
		w.WriteHeader(http.StatusNotFound)
	}, domain.DetailBrief)

	_, err := fetcher.FetchReadme(ctx, "o", "r")
	require.Error(t, err)
	// 取消后不应把 12 个 raw 候选探完
	assert.Less(t, calls.Load(), int32(12))
}

func TestNewReadmeFetcher(t *testing.T) {
	client, err := NewClient(config.ScraperConfig{
		BaseURL:    "https://github.com/trending",
		Timeout:    time.Second,
		UserAgents: []string{"ua"},
	}, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		level domain.DetailLevel
		want  int
	}{
		{"无令牌走匿名 API", "", domain.DetailBrief, 2000},
		{"带令牌", "ghp_test_token", domain.DetailDeep, 20000},
		{"未知档位按标准档", "", domain.DetailLevel("unknown"), 8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewReadmeFetcher(client, tt.token, tt.level, common.NewTokenBucket(1, 3))
			require.NotNil(t, f)
			assert.NotNil(t, f.gh)
			assert.Equal(t, "https://github.com", f.baseURL)
			assert.Equal(t, tt.want, f.maxBytes)
		})
	}
}

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name     string
		maxBytes int
		input    string
		want     string
	}{
		{
			name:     "压缩连续空行",
			maxBytes: 2000,
			input:    "line1\n\n\n\n\nline2",
			want:     "line1\n\nline2",
		},
		{
			name:     "裁剪行内空白",
			maxBytes: 2000,
			input:    "  line1  \n\t line2 \t\nline3  ",
			want:     "line1\nline2\nline3",
		},
		{
			name:     "短内容不截断",
			maxBytes: 2000,
			input:    "short readme",
			want:     "short readme",
		},
		{
			name:     "超限在换行处截断",
			maxBytes: 100,
			input:    strings.Repeat("x", 95) + "\n" + strings.Repeat("y", 50),
			want:     strings.Repeat("x", 95) + readmeTruncationMark,
		},
		{
			name:     "八成预算内没有换行就硬切",
			maxBytes: 100,
			input:    strings.Repeat("a", 150),
			want:     strings.Repeat("a", 100) + readmeTruncationMark,
		},
		{
			name:     "换行太靠前时不回退",
			maxBytes: 100,
			input:    strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 100),
			want:     strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 49) + readmeTruncationMark,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &ReadmeFetcher{maxBytes: tt.maxBytes}
			assert.Equal(t, tt.want, f.cleanContent(tt.input))
		})
	}
}

func TestCleanContent_截断不破坏多字节字符(t *testing.T) {
	f := &ReadmeFetcher{maxBytes: 100}

	// 每个汉字 3 字节，100 不是 3 的倍数，硬切必须退到字符边界
	got := f.cleanContent(strings.Repeat("好", 60))
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, readmeTruncationMark))
	assert.Equal(t, strings.Repeat("好", 33)+readmeTruncationMark, got)
}
