package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nao1215/notifyhub/pkg/httpclient"
	"github.com/nao1215/notifyhub/pkg/middleware"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "開発用にJWTトークンを発行する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := middleware.GenerateJWT(secret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", envOr("JWT_SECRET", "dev-secret-key"), "署名に使うシークレット")
	cmd.Flags().DurationVar(&ttl, "ttl", middleware.DefaultTokenTTL, "有効期間")
	return cmd
}

func listCmd(opts *globalOptions) *cobra.Command {
	var (
		noRollup bool
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "通知一覧を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := opts.client().ListNotifications(cmd.Context(), !noRollup, limit)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), items)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tCREATED\tUNSEEN\tGROUPED\tMESSAGE")
			for _, n := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%d\t%s\n",
					n.ID, n.Category, n.CreatedAt.Format(time.RFC3339), n.Unseen, len(n.Children), n.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&noRollup, "no-rollup", false, "ロールアップせずに表示する")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "表示件数の上限")
	return cmd
}

func sendCmd(opts *globalOptions) *cobra.Command {
	var props []string
	cmd := &cobra.Command{
		Use:   "send <username> <category> <message>",
		Short: "内部送信APIで通知を追加する",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}
			id, err := opts.client().Send(cmd.Context(), httpclient.SendRequest{
				Username:   args[0],
				Category:   args[1],
				Message:    args[2],
				Properties: properties,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&props, "property", "p", nil, "key=value形式のプロパティ（複数指定可）")
	return cmd
}

// parseProperties はkey=value形式の指定をmapにする。
func parseProperties(in []string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for _, kv := range in {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid property %q: want key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

func deleteCmd(opts *globalOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "通知を削除する",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("削除するIDを指定するか --all を指定してください")
			}
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return errors.Errorf("invalid id %q", a)
				}
				ids = append(ids, id)
			}
			return opts.client().DeleteNotifications(cmd.Context(), ids...)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "表示中の全通知を削除する")
	return cmd
}

func cursorCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "カーソルを操作する",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "カーソルの値を表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client().GetCursor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Value)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "カーソルの値を書き込む",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return errors.Errorf("invalid value %q", args[1])
			}
			return opts.client().SetCursor(cmd.Context(), args[0], v)
		},
	})
	return cmd
}

func rulesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "ロールアップルールを操作する",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "ルール一覧を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, err := opts.client().ListRules(cmd.Context())
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), rs)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tMAX_SIZE\tMAX_DURATION\tMATCH_ON")
			for _, r := range rs {
				m := r.ToModel()
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Category, m.MaxSize, m.MaxDuration, m.MatchOn)
			}
			return w.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <category>",
		Short: "ルールを表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.client().GetRule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	})
	cmd.AddCommand(rulesPutCmd(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <category>",
		Short: "ルールを削除する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().DeleteRule(cmd.Context(), args[0])
		},
	})
	return cmd
}

func rulesPutCmd(opts *globalOptions) *cobra.Command {
	var (
		maxSize     int
		maxDuration time.Duration
		matchOn     string
	)
	cmd := &cobra.Command{
		Use:   "put <category>",
		Short: "ルールを作成または置き換える",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().PutRule(cmd.Context(), httpclient.Rule{
				Category:      args[0],
				MaxSize:       maxSize,
				MaxDurationMS: maxDuration.Milliseconds(),
				MatchOn:       matchOn,
			})
		},
	}
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "1グループにまとめる最大件数")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "シード通知から遡る時間幅（例: 20m）")
	cmd.Flags().StringVar(&matchOn, "match-on", "", "照合するプロパティ名")
	return cmd
}
