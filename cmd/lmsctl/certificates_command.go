package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

const stampLayout = "2006-01-02 15:04"

func newCertificatesCommand(ctx *commandContext) *cobra.Command {
	certCmd := &cobra.Command{
		Use:   "certificates",
		Short: "List issued certificates and regenerate their documents",
	}

	certCmd.AddCommand(newCertificatesListCommand(ctx))
	certCmd.AddCommand(newCertificatesRepublishCommand(ctx))

	return certCmd
}

func newCertificatesListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently issued certificates",
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := ctx.services()
			if err != nil {
				return err
			}
			certs, err := tk.certRepo.ListAll(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(certs) == 0 {
				fmt.Fprintln(out, "No certificates issued")
				return nil
			}

			rows := make([][]string, 0, len(certs))
			for _, c := range certs {
				score := "-"
				if c.QuizScore != nil {
					score = fmt.Sprintf("%.1f", *c.QuizScore)
				}
				document := c.DocumentURL
				if document == "" {
					document = "(missing)"
				}
				rows = append(rows, []string{
					c.Code,
					strconv.FormatUint(uint64(c.UserID), 10),
					strconv.FormatUint(uint64(c.CourseID), 10),
					c.IssuedAt.Format(stampLayout),
					score,
					document,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Code", "User", "Course", "Issued", "Score", "Document"}, rows, 1, 2, 4))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "最多显示条数")
	return cmd
}

func newCertificatesRepublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "republish <code>",
		Short: "Render and upload a certificate document again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := ctx.services()
			if err != nil {
				return err
			}
			cert, err := tk.certificates.Republish(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", cert.Code, cert.DocumentURL)
			return nil
		},
	}
}
