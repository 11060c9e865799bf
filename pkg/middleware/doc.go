// Package middleware はnotifyhubのHTTP APIで使用するGinミドルウェアを提供する。
//
// JWT認証トークンの発行と検証、zapによるリクエストログ、パニックリカバリ、
// CORS設定を含む。
package middleware
