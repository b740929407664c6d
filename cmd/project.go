package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/pocket/api"
)

func newProjectCmd(a *app) *cobra.Command {
	var template string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a project under the document root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if template == "" {
				proj, err := m.CreateProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s at %s\n", proj.Name, proj.Path)
				return nil
			}
			proj, err := m.CreateFromTemplate(cmd.Context(), args[0], template)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s at %s from %s\n", proj.Name, proj.Path, template)
			s, _ := m.Current()
			printTree(cmd.OutOrStdout(), s.Tree.Snapshot(), 1)
			return nil
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", "", "Scaffold the project from a catalog template")
	return cmd
}

func openCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Open a project, record it as recent and print its tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			proj, err := m.OpenProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s, _ := m.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", proj.Name, proj.Path)
			printTree(cmd.OutOrStdout(), s.Tree.Snapshot(), 1)
			return nil
		},
	}
}

func treeCmd(a *app) *cobra.Command {
	var (
		asJSON, flat bool
		find         string
	)
	cmd := &cobra.Command{
		Use:   "tree <path>",
		Short: "Print a project's tree as text, JSON or a flat path list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if _, err := m.OpenProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			s, _ := m.Current()
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s.Tree.Snapshot())
			case find != "":
				for _, e := range s.Tree.Search(find) {
					fmt.Fprintln(out, e.Path)
				}
			case flat:
				for _, e := range s.Tree.Flatten() {
					fmt.Fprintln(out, e.Path)
				}
			default:
				printTree(out, s.Tree.Snapshot(), 0)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tree as JSON")
	cmd.Flags().BoolVar(&flat, "flat", false, "Print one file path per line")
	cmd.Flags().StringVar(&find, "find", "", "Print only file paths whose name or path contains this text, ignoring case")
	cmd.MarkFlagsMutuallyExclusive("json", "flat", "find")
	return cmd
}

func recentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			list, err := m.RecentProjects(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent projects.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPATH\tLAST OPENED")
			for _, p := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Path, p.LastOpened.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "rename <path> <name>",
			Short: "Rename a recent-projects entry without touching its files",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := a.manager()
				if err != nil {
					return err
				}
				return m.RenameProjectEntry(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:     "rm <path>",
			Aliases: []string{"remove"},
			Short:   "Forget a project; its files stay on disk",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := a.manager()
				if err != nil {
					return err
				}
				return m.DeleteProjectEntry(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func templatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the project templates in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			list := m.Templates().List()
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No templates. Set templates in the config file to a directory of *.hcl files.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%d files\t%s\n", t.Name, len(t.Files), t.Description)
			}
			return w.Flush()
		},
	}
}

func printTree(w io.Writer, nodes []api.FileNode, depth int) {
	for _, n := range nodes {
		for i := 0; i < depth; i++ {
			fmt.Fprint(w, "  ")
		}
		if n.Type == "folder" {
			fmt.Fprintf(w, "%s/\n", n.Name)
			printTree(w, n.Children, depth+1)
			continue
		}
		fmt.Fprintln(w, n.Name)
	}
}
