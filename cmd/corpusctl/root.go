package main

import (
	"os"

	"github.com/spf13/cobra"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/pkg/log"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "corpusctl",
	Short: "Load and enqueue pediatric corpus content",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init(flagConfig)
		log.Init(config.Conf.Log.Level, config.Conf.Log.Format, config.Conf.Log.OutputPath)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
	SilenceUsage: true,
}

// Execute 运行根命令，失败时以非零状态退出。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "./configs/config.yaml", "path to the YAML config file")
}
