package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/pkg/token"
)

var flagUser string

// 用户身份由上游系统管理，这里只为本地调试签发访问令牌。
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for a user id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Conf
		tok, err := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours).GenerateToken(flagUser)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagUser, "user", "", "user id to embed in the token")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
