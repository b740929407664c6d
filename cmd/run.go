package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/pocket/internal/console"
	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/session"
)

func runCmd(a *app) *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "run (<project-path> <file> | --lang <tag> -)",
		Short: "Run a JavaScript or PHP file and print its console output",
		Long: `Run a file of a project, or code read from stdin with "-".

JavaScript runs in an embedded interpreter. PHP is sent to the configured
Piston execution service.`,
		Example: `  pocket run PocketCodeStudio/demo js/app.js
  echo '<?php echo 1;' | pocket run --lang php -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				code string
				tag  lang.Tag
			)
			switch {
			case len(args) == 1 && args[0] == "-":
				if language == "" {
					return fmt.Errorf("--lang is required when reading from stdin")
				}
				src, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				code, tag = string(src), lang.Tag(language)
			case len(args) == 2:
				m, err := a.manager()
				if err != nil {
					return err
				}
				if code, tag, err = projectFile(cmd, m, args[0], args[1]); err != nil {
					return err
				}
				if language != "" {
					tag = lang.Tag(language)
				}
			default:
				return fmt.Errorf("want <project-path> <file> or - with --lang")
			}

			out := cmd.OutOrStdout()
			res := a.dispatcher().Run(cmd.Context(), code, tag, func(e console.Entry) {
				w := out
				if e.Kind == console.Error {
					w = cmd.ErrOrStderr()
				}
				fmt.Fprintf(w, "[%s] %s\n", e.Kind, e.Text)
			})
			if !res.Success {
				return res.Err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "lang", "", "Language tag (javascript or php); overrides the file extension")
	return cmd
}

// projectFile opens a project and returns a file's content and language.
func projectFile(cmd *cobra.Command, m *session.Manager, project, file string) (string, lang.Tag, error) {
	if _, err := m.OpenProject(cmd.Context(), project); err != nil {
		return "", lang.None, err
	}
	s, _ := m.Current()
	id, ok := s.Tree.Lookup(file)
	if !ok {
		return "", lang.None, fmt.Errorf("%s: %w", file, session.ErrNoNode)
	}
	n, _ := s.Tree.Find(id)
	switch {
	case n.IsFolder():
		return "", lang.None, fmt.Errorf("%s is a folder", file)
	case !n.Loaded:
		return "", lang.None, fmt.Errorf("%s: %w", file, session.ErrNotLoaded)
	}
	return n.Content, n.Language, nil
}

// readSource reads a host file, or stdin for "-".
func readSource(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
