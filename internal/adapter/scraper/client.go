package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github-trending/internal/common"
	"github-trending/internal/config"
	"github-trending/internal/domain"
)

// Client 抓取端 HTTP 客户端：随机 UA、可选代理、429/5xx 重试
type Client struct {
	httpClient  *http.Client
	trendingURL string
	userAgents  []string
	maxRetries  int
	limiter     *common.RateLimiter
}

// NewClient 构建抓取客户端
// limiter 由调用方创建并在所有打向同一站点的调用间共享
func NewClient(cfg config.ScraperConfig, limiter *common.RateLimiter) (*Client, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, common.WrapError(common.ErrCodeConfig, fmt.Sprintf("代理地址不合法 %q", cfg.Proxy), err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		trendingURL: cfg.BaseURL,
		userAgents:  cfg.UserAgents,
		maxRetries:  cfg.MaxRetries,
		limiter:     limiter,
	}, nil
}

// FetchTrendingPage 拉取趋势榜 HTML
// language 走 language 查询参数；since 只在非 daily 时带上
func (c *Client) FetchTrendingPage(ctx context.Context, language string, period domain.Period) (string, error) {
	u, err := url.Parse(c.trendingURL)
	if err != nil {
		return "", common.WrapError(common.ErrCodeConfig, fmt.Sprintf("趋势页地址不合法 %q", c.trendingURL), err)
	}
	q := u.Query()
	if language != "" {
		q.Set("language", language)
	}
	if period != "" && period != domain.PeriodDaily {
		q.Set("since", string(period))
	}
	u.RawQuery = q.Encode()

	// 打页面前先过共享限速窗口
	if c.limiter != nil {
		c.limiter.Acquire()
	}
	return c.get(ctx, u.String())
}

// get 发送一次带随机 UA 的 GET
// 429 和 5xx 按指数退避重试，其他非 200 状态立即失败
func (c *Client) get(ctx context.Context, rawURL string) (string, error) {
	var body string
	var permanent error

	err := common.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			permanent = err
			return nil
		}
		req.Header.Set("User-Agent", c.randomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("DNT", "1")
		req.Header.Set("Upgrade-Insecure-Requests", "1")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			body = string(data)
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("服务端返回 %d", resp.StatusCode)
		default:
			permanent = common.NewError(common.ErrCodeScrape, fmt.Sprintf("请求 %s 返回 %d", rawURL, resp.StatusCode))
			return nil
		}
	},
		common.WithMaxRetries(c.maxRetries),
		common.WithInitialDelay(time.Second),
	)
	if err != nil {
		return "", common.WrapError(common.ErrCodeScrape, fmt.Sprintf("请求 %s", rawURL), err)
	}
	if permanent != nil {
		return "", permanent
	}
	return body, nil
}

func (c *Client) randomUserAgent() string {
	if len(c.userAgents) == 0 {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return c.userAgents[rand.IntN(len(c.userAgents))]
}
