package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lmsctl",
		Short:         "Course LMS maintenance CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configDir, "config", "c", "configs", "配置文件目录")

	rootCmd.AddCommand(newProgressCommand(ctx))
	rootCmd.AddCommand(newCertificatesCommand(ctx))
	rootCmd.AddCommand(newVideoCommand(ctx))

	return rootCmd
}
