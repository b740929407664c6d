package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/pocket/internal/linter"
	"github.com/agentic-research/pocket/internal/writeback"
)

var errCheckFailed = errors.New("syntax errors found")

func checkCmd(a *app) *cobra.Command {
	var lint bool
	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Report syntax errors using the parser for each file's language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, name := range args {
				src, err := readSource(cmd, name)
				if err != nil {
					return err
				}
				tag := a.langs.Resolve(name)
				if !writeback.Checkable(tag) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: no checker for %s, skipped\n", name, tag)
					continue
				}
				errs := writeback.Check(src, tag, name)
				for _, e := range errs {
					failed = true
					fmt.Fprintln(cmd.OutOrStdout(), e.Error())
				}
				if len(errs) > 0 || !lint {
					continue
				}
				if !linter.Lintable(tag) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: no lint rules for %s\n", name, tag)
					continue
				}
				diags, err := linter.Lint(cmd.Context(), src, tag)
				if err != nil {
					return err
				}
				for _, d := range diags {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, d)
				}
			}
			if failed {
				return errCheckFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&lint, "lint", false, "Also report lint warnings for files that parse")
	return cmd
}

func fmtCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <file>...",
		Short: "Format Go, HCL and JSON files",
		Long:  "Format Go, HCL and JSON files. The result is printed unless --write is set.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				src, err := os.ReadFile(name)
				if err != nil {
					return err
				}
				tag := a.langs.Resolve(name)
				if !writeback.Formattable(tag) {
					return fmt.Errorf("%s: no formatter for %s", name, tag)
				}
				out, ok := writeback.Format(src, tag)
				if !ok {
					return fmt.Errorf("%s: does not parse", name)
				}
				if !write {
					_, _ = cmd.OutOrStdout().Write(out)
					continue
				}
				if bytes.Equal(out, src) {
					continue
				}
				if err := os.WriteFile(name, out, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "formatted", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	return cmd
}
