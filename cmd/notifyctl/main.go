// notifyctl はnotifyhubのHTTP APIを操作するコマンドラインツール。
package main

import (
	"fmt"
	"os"
)

// Version はビルド時に-ldflagsで上書きされる。
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
