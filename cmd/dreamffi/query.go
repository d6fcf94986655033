package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/dreamffi/internal/session"
)

func newTypeInfoCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "typeinfo <environment.dme> <type-path>",
		Short: "Print the type-info document for one type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := flags.openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer sess.Close()

			doc, err := sess.ExportTypeInfo(args[1])
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), doc)
		},
	}
}

func newFilesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "files <environment.dme>",
		Short: "Print every file the parse read, numbered from 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := flags.openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer sess.Close()

			files, err := sess.FileList()
			if err != nil {
				return err
			}
			for i, f := range files {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d: %q\n", i+1, f); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// newDocumentCmd prints the document produced by one session export.
func newDocumentCmd(flags *globalFlags, use, short string, export func(*session.Session) ([]byte, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <environment.dme>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := flags.openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer sess.Close()

			doc, err := export(sess)
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), doc)
		},
	}
}
