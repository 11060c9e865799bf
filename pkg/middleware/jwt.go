package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Issuer はnotifyhubが発行するトークンのiss。
const Issuer = "notifyhub"

// DefaultTokenTTL はGenerateJWTで有効期限を省略した場合の有効期間。
const DefaultTokenTTL = 24 * time.Hour

// contextKeyUsername は認証済みユーザー名を保持するGinコンテキストのキー。
const contextKeyUsername = "username"

// JWTClaims はnotifyhubのアクセストークンが運ぶクレーム。
type JWTClaims struct {
	jwt.RegisteredClaims
	// Username は通知の宛先となるユーザー名。
	Username string `json:"username"`
}

// 401応答のメッセージ。
var (
	msgMissingHeader = "Authorizationヘッダーが必要です"
	msgNotBearer     = "Bearer トークン形式が不正です"
	msgBadToken      = "トークンが無効です"
)

// GenerateJWT はusername宛てのHS256トークンに署名する。ttlが0以下ならDefaultTokenTTL。
func GenerateJWT(secret, username string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	issuedAt := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}).SignedString([]byte(secret))
	return signed, errors.Wrap(err, "sign jwt")
}

// JWTAuth はBearerトークンを検証し、成功時にユーザー名をコンテキストへ載せる。
func JWTAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	keyFunc := func(*jwt.Token) (any, error) { return key, nil }

	return func(c *gin.Context) {
		raw, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			unauthorized(c, msg)
			return
		}

		var claims JWTClaims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil || claims.Username == "" {
			unauthorized(c, msgBadToken)
			return
		}

		SetUsername(c, claims.Username)
		c.Next()
	}
}

// bearerToken はヘッダー値からトークン部分を取り出す。失敗時は応答メッセージを返す。
func bearerToken(header string) (token, msg string) {
	if header == "" {
		return "", msgMissingHeader
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", msgNotBearer
	}
	return token, ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// SetUsername は認証済みユーザー名をGinコンテキストに設定する。
func SetUsername(c *gin.Context, username string) {
	c.Set(contextKeyUsername, username)
}

// GetUsername は認証済みユーザー名を返す。未認証なら空文字列。
func GetUsername(c *gin.Context) string {
	return c.GetString(contextKeyUsername)
}
