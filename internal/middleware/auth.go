package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/user/flixplay/internal/model"
	"github.com/user/flixplay/internal/store"
	"github.com/user/flixplay/internal/utils"
)

// identityCacheTTL 通过校验的身份短暂缓存，避免热路径反复查用户存储
// TTL 要足够短，用户被删除后旧 Token 很快失效
const identityCacheTTL = time.Minute

// cachedIdentity 缓存条目随身份一起记录 Token 的过期时刻，
// 命中时复核，缓存不能让过期 Token 多活哪怕一秒
type cachedIdentity struct {
	identity  model.Identity
	expiresAt time.Time
}

// Claims JWT 声明
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// RequireAuth 必须登录中间件，只接受 Authorization: Bearer
func RequireAuth(jwtSecret string, users *store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, jwtSecret, users, false)
	}
}

// RequireStreamAuth 流媒体专用登录中间件
// 原生 video 元素无法携带自定义头，额外接受 ?token= 查询参数，
// 两条路径都走同一套校验逻辑
func RequireStreamAuth(jwtSecret string, users *store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, jwtSecret, users, true)
	}
}

// RequireAdmin 管理员权限中间件
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok || !identity.IsAdmin {
			utils.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// authenticate 统一认证入口
// 签名、有效期、用户存在性三类失败对调用方统一折叠为 401，
// 具体原因只进运营日志
func authenticate(c *gin.Context, jwtSecret string, users *store.UserStore, allowQueryToken bool) {
	tokenString := extractToken(c, allowQueryToken)
	if tokenString == "" {
		utils.Unauthorized(c, "access token required")
		c.Abort()
		return
	}

	// 短 TTL 缓存命中则跳过解析和存储查询，过期时刻仍须复核
	if cached, ok := utils.CacheGet("auth:" + tokenString); ok {
		entry := cached.(cachedIdentity)
		if time.Now().Before(entry.expiresAt) {
			setIdentity(c, entry.identity)
			c.Next()
			return
		}
		utils.CacheDelete("auth:" + tokenString)
	}

	claims, err := parseClaims(tokenString, jwtSecret)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Printf("认证失败: Token 已过期 (path=%s)", c.Request.URL.Path)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			log.Printf("认证失败: Token 签名非法 (path=%s ip=%s)", c.Request.URL.Path, c.ClientIP())
		default:
			log.Printf("认证失败: Token 不合法: %v (path=%s)", err, c.Request.URL.Path)
		}
		utils.Unauthorized(c, "unauthorized")
		c.Abort()
		return
	}

	// 已删除用户的 Token 视同无效
	user, ok := users.FindByID(claims.UserID)
	if !ok {
		log.Printf("认证失败: Token 对应用户不存在 (user_id=%s)", claims.UserID)
		utils.Unauthorized(c, "unauthorized")
		c.Abort()
		return
	}

	identity := user.Identity()
	if claims.ExpiresAt != nil {
		cacheIdentity(tokenString, identity, claims.ExpiresAt.Time)
	}
	setIdentity(c, identity)
	c.Next()
}

// cacheIdentity 写入身份缓存
// TTL 不超过 Token 剩余有效期，缓存条目绝不比 Token 本身活得久
func cacheIdentity(token string, identity model.Identity, expiresAt time.Time) {
	ttl := identityCacheTTL
	if until := time.Until(expiresAt); until < ttl {
		ttl = until
	}
	if ttl <= 0 {
		return
	}
	utils.CacheSet("auth:"+token, cachedIdentity{identity: identity, expiresAt: expiresAt}, ttl)
}

// extractToken 从 Bearer 头（以及流媒体路径的查询参数）提取 Token
func extractToken(c *gin.Context, allowQueryToken bool) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if allowQueryToken {
		return c.Query("token")
	}
	return ""
}

// parseClaims 解析并校验 Token
func parseClaims(tokenString, jwtSecret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// setIdentity 将用户身份存入上下文
func setIdentity(c *gin.Context, identity model.Identity) {
	c.Set("identity", identity)
}

// GetIdentity 从上下文获取用户身份
func GetIdentity(c *gin.Context) (model.Identity, bool) {
	v, exists := c.Get("identity")
	if !exists {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}

// GenerateToken 生成 JWT Token
func GenerateToken(user *model.User, jwtSecret string, expiry time.Duration) (string, error) {
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
