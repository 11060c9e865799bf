// Package httpclient はnotifyhubのHTTP APIを呼び出すクライアントを提供する。
//
// JSONの送受信とBearerトークンの付与を共通化し、通知一覧、削除、
// カーソル、ロールアップルール、内部送信APIの型付きメソッドを持つ。
// notifyctlコマンドや他サービスからの通知送信に使用する。
package httpclient
