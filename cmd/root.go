package cmd

import (
	"fmt"
	"os"

	"StemFM/logger"
	"StemFM/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stemfm",
	Short: "StemFM 是分轨排练播放服务",
	Long:  `StemFM 提供多轨同步播放、独奏/静音混音、播放队列与多设备排练会话同步。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(os.Getenv("LOG_LEVEL")),
			OutputPath: os.Getenv("LOG_PATH"),
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
