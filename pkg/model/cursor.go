package model

// Cursor はユーザーごと・用途ごとの最終既読位置（通知ID）を表す。
type Cursor struct {
	// Key はカーソル名。
	Key string `json:"key"`
	// Value は最後に確認した通知ID。
	Value int64 `json:"value"`
}
