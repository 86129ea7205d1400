package middleware

import (
	"log"
	"net"
	"net/url"
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/user/flixplay/internal/config"
)

// OriginPolicy 跨域来源策略：精确列表 + 正则模式 + 内网来源
// 这是部署策略而非业务逻辑，全部来自配置
type OriginPolicy struct {
	exact        map[string]struct{}
	patterns     []*regexp.Regexp
	allowPrivate bool
}

// NewOriginPolicy 从配置编译来源策略
// 非法的正则在启动时报错并跳过，不会留到请求路径上
func NewOriginPolicy(cfg *config.Config) *OriginPolicy {
	p := &OriginPolicy{
		exact:        make(map[string]struct{}, len(cfg.AllowedOrigins)),
		allowPrivate: cfg.AllowPrivateNetwork,
	}
	for _, o := range cfg.AllowedOrigins {
		p.exact[o] = struct{}{}
	}
	for _, expr := range cfg.AllowedOriginExprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Printf("忽略非法的来源模式 %q: %v", expr, err)
			continue
		}
		p.patterns = append(p.patterns, re)
	}
	return p
}

// Allowed 判断来源是否放行
func (p *OriginPolicy) Allowed(origin string) bool {
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return p.allowPrivate && isPrivateOrigin(origin)
}

// isPrivateOrigin 判断来源 host 是否为回环或 RFC1918 内网地址
func isPrivateOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	ip := net.ParseIP(u.Hostname())
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}

// CORS 跨域中间件
// 来源判定是本项目的策略（精确 + 正则 + 内网三路），挂进 AllowOriginFunc；
// 预检、响应头和 Vary 的细节交给 gin-contrib/cors。
// 无 Origin 的请求（curl、同源）直接放行，不在允许范围内的来源返回 403。
func CORS(policy *OriginPolicy) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  policy.Allowed,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
