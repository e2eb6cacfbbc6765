package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect and repair course progress",
	}

	progressCmd.AddCommand(newProgressReportCommand(ctx))
	progressCmd.AddCommand(newProgressRecomputeCommand(ctx))

	return progressCmd
}

func newProgressReportCommand(ctx *commandContext) *cobra.Command {
	var courseID uint
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show every learner's progress in a course",
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := ctx.services()
			if err != nil {
				return err
			}
			rows, err := tk.progressRepo.ListCourseProgressByCourse(cmd.Context(), courseID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No progress recorded")
				return nil
			}

			table := make([][]string, 0, len(rows))
			for _, cp := range rows {
				table = append(table, []string{
					strconv.FormatUint(uint64(cp.UserID), 10),
					fmt.Sprintf("%.1f%%", cp.ProgressPercentage),
					yesNo(cp.QuizPassed),
					yesNo(cp.IsCompleted),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"User", "Progress", "Quiz", "Completed"}, table, 0, 1))
			return nil
		},
	}
	cmd.Flags().UintVar(&courseID, "course", 0, "课程ID")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func newProgressRecomputeCommand(ctx *commandContext) *cobra.Command {
	var userID, courseID uint
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute a learner's course progress and retry certificate issuance",
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := ctx.services()
			if err != nil {
				return err
			}
			cp, err := tk.progress.RecomputeCourseProgress(cmd.Context(), userID, courseID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d course %d: %.1f%% completed=%s\n",
				userID, courseID, cp.ProgressPercentage, yesNo(cp.IsCompleted))
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "用户ID")
	cmd.Flags().UintVar(&courseID, "course", 0, "课程ID")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
