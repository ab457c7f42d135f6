package datagram

import (
	"net"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// sourceLimiter 每个发送方 IP 一个令牌桶
// 缓存满时淘汰最久未出现的发送方
type sourceLimiter struct {
	limit rate.Limit
	burst int
	cache *lru.Cache[string, *rate.Limiter]
}

// newSourceLimiter 未启用限流时返回 nil
func newSourceLimiter(perSecond float64, burst, size int) (*sourceLimiter, error) {
	if perSecond <= 0 {
		return nil, nil
	}
	if burst <= 0 {
		burst = 1
	}
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, err
	}
	return &sourceLimiter{limit: rate.Limit(perSecond), burst: burst, cache: cache}, nil
}

// Allow 当前是否允许处理来自 addr 的请求
func (s *sourceLimiter) Allow(addr net.Addr) bool {
	if s == nil {
		return true
	}
	key := sourceKey(addr)
	lim, ok := s.cache.Get(key)
	if !ok {
		lim = rate.NewLimiter(s.limit, s.burst)
		s.cache.Add(key, lim)
	}
	return lim.Allow()
}

// Len 跟踪中的发送方数量
func (s *sourceLimiter) Len() int {
	if s == nil {
		return 0
	}
	return s.cache.Len()
}

func sourceKey(addr net.Addr) string {
	if ua, ok := addr.(*net.UDPAddr); ok {
		return ua.IP.String()
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}
