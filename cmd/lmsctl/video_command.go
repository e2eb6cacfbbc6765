package main

import (
	"course_lms_backend/internal/util"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newVideoCommand(ctx *commandContext) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Video metadata tools",
	}
	videoCmd.AddCommand(newVideoProbeCommand(ctx))
	videoCmd.AddCommand(newVideoSetDurationCommand(ctx))
	return videoCmd
}

// newVideoProbeCommand 用 ffprobe 读取源文件时长并写回视频记录
func newVideoProbeCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "probe <video-id> <file>",
		Short: "Probe a source file and store its duration on the video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid video id %q", args[0])
			}

			info, err := ctx.probe(args[1])
			if err != nil {
				return err
			}
			seconds := info.DurationSeconds()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s (%dx%d, %s)\n", args[1], util.FormatClockDuration(seconds), info.Width, info.Height, info.Format)
			if dryRun {
				return nil
			}

			tk, err := ctx.services()
			if err != nil {
				return err
			}
			if err := tk.courses.UpdateVideoDuration(cmd.Context(), uint(videoID), seconds); err != nil {
				return err
			}
			fmt.Fprintf(out, "video %d duration set to %d seconds\n", videoID, seconds)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只输出探测结果")
	return cmd
}

// newVideoSetDurationCommand 接受 "SS"、"MM:SS" 或 "HH:MM:SS"
func newVideoSetDurationCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-duration <video-id> <duration>",
		Short: "Store a clock-style duration on the video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid video id %q", args[0])
			}
			seconds, err := util.ParseClockDuration(args[1])
			if err != nil {
				return err
			}

			tk, err := ctx.services()
			if err != nil {
				return err
			}
			if err := tk.courses.UpdateVideoDuration(cmd.Context(), uint(videoID), seconds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "video %d duration set to %d seconds\n", videoID, seconds)
			return nil
		},
	}
}
