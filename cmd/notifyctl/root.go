package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/nao1215/notifyhub/pkg/httpclient"
	"github.com/spf13/cobra"
)

// globalOptions は全サブコマンド共通のフラグ。
type globalOptions struct {
	server string
	token  string
	output string
}

func (o *globalOptions) client() *httpclient.Client {
	return httpclient.New(o.server, httpclient.WithToken(o.token))
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "notifyctl",
		Short:         "notifyhub の通知・カーソル・ロールアップルールを操作する",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("NOTIFYHUB_SERVER", "http://localhost:8086"), "APIのベースURL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("NOTIFYHUB_TOKEN"), "Bearerトークン")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "出力形式 (text, json)")

	root.AddCommand(tokenCmd())
	root.AddCommand(listCmd(opts))
	root.AddCommand(sendCmd(opts))
	root.AddCommand(deleteCmd(opts))
	root.AddCommand(cursorCmd(opts))
	root.AddCommand(rulesCmd(opts))
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// printJSON はvをインデント付きJSONで出力する。
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
