// Package security 提供API密钥认证
// 配置中只保存密钥的 SHA-256 哈希，请求携带明文密钥
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/paiban/shiftplan/pkg/errors"
	"github.com/paiban/shiftplan/pkg/logger"
)

var (
	ErrMissingAPIKey     = errors.New("缺少API密钥")
	ErrInvalidAPIKey     = errors.New("无效的API密钥")
	ErrExpiredAPIKey     = errors.New("API密钥已过期")
	ErrInsufficientScope = errors.New("API密钥权限不足")
)

// 权限范围
const (
	ScopeRead  = "plan:read"  // 排班计算、校验、统计和查询
	ScopeWrite = "plan:write" // 按周排班并写入数据库
	ScopeAll   = "*"
)

// APIKey 配置中的API密钥
type APIKey struct {
	Name      string     `yaml:"name" json:"name" validate:"required"`
	Hash      string     `yaml:"hash" json:"-" validate:"required,len=64,hexadecimal"`
	Scopes    []string   `yaml:"scopes" json:"scopes" validate:"dive,oneof=plan:read plan:write *"`
	ExpiresAt *time.Time `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
	Disabled  bool       `yaml:"disabled" json:"disabled"`
}

// IsValid 检查密钥在 now 时是否可用
func (k *APIKey) IsValid(now time.Time) bool {
	if k.Disabled {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}

// HasScope 检查密钥是否有某权限，写权限包含读权限
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope || s == ScopeAll || (s == ScopeWrite && scope == ScopeRead) {
			return true
		}
	}
	return false
}

// KeyStore 按哈希索引的密钥集合，创建后只读
type KeyStore struct {
	keys []*APIKey
	now  func() time.Time
}

// NewKeyStore 由配置创建密钥集合
func NewKeyStore(keys []APIKey) *KeyStore {
	s := &KeyStore{now: time.Now}
	for i := range keys {
		k := keys[i]
		k.Hash = strings.ToLower(k.Hash)
		s.keys = append(s.keys, &k)
	}
	return s
}

// Len 返回密钥数量
func (s *KeyStore) Len() int {
	return len(s.keys)
}

// Authenticate 校验明文密钥并检查权限
func (s *KeyStore) Authenticate(key, scope string) (*APIKey, error) {
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	hash := []byte(HashKey(key))

	var found *APIKey
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare(hash, []byte(k.Hash)) == 1 {
			found = k
		}
	}
	switch {
	case found == nil:
		return nil, ErrInvalidAPIKey
	case !found.IsValid(s.now()):
		return nil, ErrExpiredAPIKey
	case !found.HasScope(scope):
		return found, ErrInsufficientScope
	}
	return found, nil
}

// GenerateKey 生成随机密钥，返回明文和写入配置的哈希
func GenerateKey() (key, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	key = "sp_" + base64.RawURLEncoding.EncodeToString(buf)
	return key, HashKey(key), nil
}

// HashKey 计算密钥哈希
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ExtractAPIKey 从请求中提取API密钥
func ExtractAPIKey(r *http.Request) string {
	// 1. 从 Authorization header
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// 2. 从 X-API-Key header
	return r.Header.Get("X-API-Key")
}

// RequiredScope 返回访问某路径需要的权限，空字符串表示公开
func RequiredScope(r *http.Request) string {
	switch {
	case !strings.HasPrefix(r.URL.Path, "/api/"):
		return ""
	case r.Method == http.MethodOptions:
		return ""
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		return ScopeRead
	case r.Method == http.MethodPost && (strings.HasPrefix(r.URL.Path, "/api/v1/plan/") || strings.HasPrefix(r.URL.Path, "/api/v1/stats/")):
		// 无状态计算，不写数据库
		return ScopeRead
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/v1/weeks/"):
		if dryRun := r.URL.Query().Get("dry_run"); dryRun == "true" || dryRun == "1" {
			return ScopeRead
		}
		return ScopeWrite
	default:
		return ScopeWrite
	}
}

// Middleware API密钥认证中间件
func Middleware(store *KeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := RequiredScope(r)
			if scope == "" {
				next.ServeHTTP(w, r)
				return
			}

			key, err := store.Authenticate(ExtractAPIKey(r), scope)
			if err != nil {
				code := apperrors.CodeUnauthorized
				if errors.Is(err, ErrInsufficientScope) {
					code = apperrors.CodeForbidden
				}
				logger.WithContext(r.Context()).Warn().
					Str("path", r.URL.Path).
					Str("scope", scope).
					Err(err).
					Msg("API认证失败")
				writeError(w, apperrors.New(code, err.Error()))
				return
			}

			logger.WithContext(r.Context()).Debug().Str("api_key", key.Name).Msg("API认证通过")
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	if err.Code == apperrors.CodeUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="shiftplan"`)
	}
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
	})
}
