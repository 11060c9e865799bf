package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// parseClaims はテスト用にトークンを検証してクレームを取り出す。
func parseClaims(t *testing.T, tokenStr string) *JWTClaims {
	t.Helper()
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Fatalf("トークンのパースに失敗: %v", err)
	}
	if !token.Valid {
		t.Fatal("トークンが無効")
	}
	return claims
}

// signClaims は任意のクレームでトークンに署名する。
func signClaims(t *testing.T, claims JWTClaims) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return tokenStr
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("ユーザー名と発行者が設定されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "alice", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}
		claims := parseClaims(t, tokenStr)
		if claims.Username != "alice" {
			t.Errorf("Username = %q, want %q", claims.Username, "alice")
		}
		if claims.Subject != "alice" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "alice")
		}
		if claims.Issuer != Issuer {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
		}
	})

	t.Run("有効期限を省略すると24時間後になること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := GenerateJWT(testSecret, "bob", 0)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}
		claims := parseClaims(t, tokenStr)

		expected := before.Add(DefaultTokenTTL)
		if d := claims.ExpiresAt.Time.Sub(expected); d < -time.Minute || d > time.Minute {
			t.Errorf("ExpiresAt = %v, want around %v", claims.ExpiresAt.Time, expected)
		}
	})

	t.Run("空のユーザー名はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := GenerateJWT(testSecret, "", time.Hour); err == nil {
			t.Error("エラーが返されるべき")
		}
	})

	t.Run("署名アルゴリズムがHS256であること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "carol", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}
		token, _, err := new(jwt.Parser).ParseUnverified(tokenStr, &JWTClaims{})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if token.Method.Alg() != "HS256" {
			t.Errorf("署名アルゴリズム = %q, want %q", token.Method.Alg(), "HS256")
		}
	})
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	newRouter := func(captured *string) *gin.Engine {
		router := gin.New()
		router.Use(JWTAuth(testSecret))
		router.GET("/test", func(c *gin.Context) {
			if captured != nil {
				*captured = GetUsername(c)
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("有効なトークンでユーザー名がコンテキストに設定されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "alice", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		var captured string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if captured != "alice" {
			t.Errorf("username = %q, want %q", captured, "alice")
		}
	})

	otherSecret, err := GenerateJWT("different-secret", "mallory", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
	}
	validToken, err := GenerateJWT(testSecret, "alice", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
	}
	expired := signClaims(t, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			Issuer:    Issuer,
		},
		Username: "alice",
	})
	wrongIssuer := signClaims(t, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
		Username: "alice",
	})
	noUsername := signClaims(t, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    Issuer,
		},
	})

	tests := []struct {
		name      string
		header    string
		wantError string
	}{
		{"Authorizationヘッダーが無い場合", "", "Authorizationヘッダーが必要です"},
		{"Bearer接頭辞が無い場合", validToken, "Bearer トークン形式が不正です"},
		{"不正なトークン文字列の場合", "Bearer invalid-token-string", "トークンが無効です"},
		{"異なるシークレットで署名された場合", "Bearer " + otherSecret, "トークンが無効です"},
		{"期限切れの場合", "Bearer " + expired, "トークンが無効です"},
		{"発行者が異なる場合", "Bearer " + wrongIssuer, "トークンが無効です"},
		{"ユーザー名が無い場合", "Bearer " + noUsername, "トークンが無効です"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name+"は401が返ること", func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(nil).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスボディのパースに失敗: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

// TestGetUsername はGetUsername関数を検証する。
func TestGetUsername(t *testing.T) {
	t.Parallel()

	t.Run("設定済みのユーザー名を取得できること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		SetUsername(c, "alice")
		if got := GetUsername(c); got != "alice" {
			t.Errorf("GetUsername() = %q, want %q", got, "alice")
		}
	})

	t.Run("未設定の場合は空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetUsername(c); got != "" {
			t.Errorf("GetUsername() = %q, want empty string", got)
		}
	})
}
