package scraper

import (
	"context"

	"github-trending/internal/domain"
)

// TrendingScraper 实现了 port.TrendingSource 接口
// 组合抓取客户端和解析器，对外只暴露领域对象
type TrendingScraper struct {
	client *Client
	parser *Parser
}

func NewTrendingScraper(client *Client, parser *Parser) *TrendingScraper {
	return &TrendingScraper{client: client, parser: parser}
}

// FetchTrending 抓取并解析趋势榜
// limit 大于零时只保留榜单前 limit 个条目
func (s *TrendingScraper) FetchTrending(ctx context.Context, language string, period domain.Period, limit int) ([]*domain.TrendingRepo, error) {
	html, err := s.client.FetchTrendingPage(ctx, language, period)
	if err != nil {
		return nil, err
	}

	repos, err := s.parser.Parse(html, period)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(repos) > limit {
		repos = repos[:limit]
	}
	return repos, nil
}
