package aicache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github-trending/internal/common"
	"github-trending/internal/domain"
	"github-trending/internal/port"
)

// cacheEntry 是落盘的 JSON 结构
type cacheEntry struct {
	RepoName    string             `json:"repo_name"`
	CachedAt    time.Time          `json:"cached_at"`
	ContentHash string             `json:"content_hash"`
	Analysis    *domain.AIAnalysis `json:"analysis"`
}

// Stats 汇总缓存目录的占用情况
// 损坏到解析不出来的文件计入 Expired，和 ClearExpired 的清扫口径一致
type Stats struct {
	Entries    int
	Valid      int
	Expired    int
	TotalBytes int64
	Dir        string
}

// FileCache 实现了 port.AnalysisCache 接口
// 每条分析结果存一个 JSON 文件，文件名由仓库名和内容摘要共同推导，
// 同一个仓库的 README 变了就会落到新文件上
// 读写都是尽力而为，缓存层故障绝不打断分析主流程
type FileCache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	nowFunc func() time.Time
}

// New 构建文件缓存，dir 为空和 ttl 非正时落回默认值
func New(dir string, ttl time.Duration, enabled bool) *FileCache {
	if dir == "" {
		dir = ".ai_cache"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &FileCache{
		dir:     dir,
		ttl:     ttl,
		enabled: enabled,
		nowFunc: time.Now,
	}
}

// Get 按主题和内容查缓存
// 文件缺失、内容损坏、条目过期都按未命中处理
// 读路径不做删除，过期文件留给 ClearExpired 统一清扫
func (c *FileCache) Get(subject, content string) *domain.AIAnalysis {
	if !c.enabled {
		return nil
	}

	data, err := os.ReadFile(c.entryPath(subject, content))
	if err != nil {
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	if c.nowFunc().Sub(entry.CachedAt) > c.ttl {
		return nil
	}
	return entry.Analysis
}

// Set 写入一条分析结果，任何失败只记日志不上抛
func (c *FileCache) Set(subject, content string, analysis *domain.AIAnalysis) {
	if !c.enabled || analysis == nil {
		return
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		log.Printf("创建缓存目录 %s 失败: %v", c.dir, err)
		return
	}

	entry := cacheEntry{
		RepoName:    subject,
		CachedAt:    c.nowFunc(),
		ContentHash: contentDigest(content),
		Analysis:    analysis,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		log.Printf("序列化缓存条目失败: %v", err)
		return
	}
	if err := os.WriteFile(c.entryPath(subject, content), data, 0o644); err != nil {
		log.Printf("写入缓存文件失败: %v", err)
	}
}

// ClearAll 删除目录下的全部缓存条目，返回删掉的数量
func (c *FileCache) ClearAll() (int, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, common.WrapError(common.ErrCodeCache, "扫描缓存目录", err)
	}

	removed := 0
	for _, f := range files {
		if os.Remove(f) == nil {
			removed++
		}
	}
	return removed, nil
}

// ClearExpired 清掉过期和无法解析的条目，保留仍在 TTL 内的
func (c *FileCache) ClearExpired() (int, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, common.WrapError(common.ErrCodeCache, "扫描缓存目录", err)
	}

	now := c.nowFunc()
	removed := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var entry cacheEntry
		if err := json.Unmarshal(data, &entry); err == nil && now.Sub(entry.CachedAt) <= c.ttl {
			continue
		}
		if os.Remove(f) == nil {
			removed++
		}
	}
	return removed, nil
}

// Stats 统计条目数、有效/过期分布和占用字节数
func (c *FileCache) Stats() Stats {
	stats := Stats{Dir: c.dir}
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return stats
	}

	now := c.nowFunc()
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()

		data, err := os.ReadFile(f)
		if err != nil {
			stats.Expired++
			continue
		}
		var entry cacheEntry
		if err := json.Unmarshal(data, &entry); err == nil && now.Sub(entry.CachedAt) <= c.ttl {
			stats.Valid++
		} else {
			stats.Expired++
		}
	}
	return stats
}

// WriteOnly 把缓存包成只写模式: Get 永远未命中，Set 照常落盘
// 用于强制重新分析但仍要刷新缓存内容的场景
type WriteOnly struct {
	Inner port.AnalysisCache
}

func (w WriteOnly) Get(subject, content string) *domain.AIAnalysis {
	return nil
}

func (w WriteOnly) Set(subject, content string, analysis *domain.AIAnalysis) {
	w.Inner.Set(subject, content, analysis)
}

func (c *FileCache) entryPath(subject, content string) string {
	return filepath.Join(c.dir, cacheKey(subject, content)+".json")
}

// cacheKey 把 主题:内容摘要 再过一遍 SHA-256，取前 16 个十六进制字符做文件名
func cacheKey(subject, content string) string {
	seed := subject + ":" + contentDigest(content)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}

// contentDigest 用 xxhash 给内容算短摘要，取前 8 个十六进制字符
func contentDigest(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))[:8]
}
