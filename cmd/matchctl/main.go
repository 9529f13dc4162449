// Package main matchctl 运维命令行：迁移、重新生成、修复与向量回填
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var configDir string
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Match intelligence maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "configs", "directory holding config.yaml")

	root.AddCommand(
		migrateCMD(&configDir),
		regenerateCMD(&configDir),
		reconcileCMD(&configDir),
		backfillCMD(&configDir),
		tokenCMD(&configDir),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
