package cmd

import (
	"StemFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动StemFM服务器",
	Long:  `启动StemFM播放服务的HTTP服务器，提供播放控制API和事件推送`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
