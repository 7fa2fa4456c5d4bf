package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/internal/pipeline"
	"github.com/shouni/go-story-kit/pkg/domain"
)

var (
	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration
	tokenGrant int64
)

// tokenCmd は、開発用のアクセストークンを発行するのだ。
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "開発用のアクセストークンを発行するのだ。",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := pipeline.IssueToken(cmd.Context(), cfg, domain.Principal{ID: tokenUser, Email: tokenEmail}, tokenTTL, tokenGrant)
		if err != nil {
			return fmt.Errorf("トークンの発行に失敗したのだ: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVarP(&tokenUser, "user", "u", config.DefaultLocalUser, "トークンのユーザー ID なのだ。")
	f.StringVar(&tokenEmail, "email", "", "トークンに含めるメールアドレスなのだ。")
	f.DurationVar(&tokenTTL, "ttl", config.DefaultTokenTTL, "トークンの有効期間なのだ。")
	f.Int64Var(&tokenGrant, "grant", 0, "ユーザーに付与するクレジット数なのだ。")
}
