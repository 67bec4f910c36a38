package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/gforms"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List experiment definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			list, err := c.GetExperiments(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return writeList(cmd.OutOrStdout(), list)
			}
			return writeTable(cmd.OutOrStdout(), []string{"NAME", "DISABLED", "STANDARD", "CUSTOM"}, list,
				func(e *experiment.Experiment) []any {
					return []any{e.Name, e.Disabled, len(e.StandardQuestions), len(e.CustomQuestions)}
				})
		},
	}
}

func newResponsesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "responses",
		Short: "List submitted responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			list, err := c.GetResponses(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				return writeList(cmd.OutOrStdout(), list)
			}
			return writeTable(cmd.OutOrStdout(), []string{"#", "NAME", "ANSWERED"}, list,
				indexed(func(i int, e *experiment.Experiment) []any {
					return []any{i + 1, e.Name, fmt.Sprintf("%d/%d", answered(e), questionCount(e))}
				}))
		},
	}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file.json|->",
		Short: "Add an experiment definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readExperiment(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			if err := c.AddExperiment(ctx, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q\n", e.Name)
			return nil
		},
	}
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "update <file.json|->",
		Short: "Replace the experiment definition with the same name",
		Long: `Replace the stored definition whose name matches the file's name.

With --dry-run the definitions document is fetched and the change is printed
as a line diff; nothing is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readExperiment(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			if dryRun {
				current, err := c.GetExperiments(ctx)
				if err != nil {
					return err
				}
				diff, found, err := previewUpdate(current, e)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case !found:
					fmt.Fprintf(out, "no experiment named %q; update would change nothing\n", e.Name)
				case diff == "":
					fmt.Fprintln(out, "no changes")
				default:
					fmt.Fprint(out, diff)
				}
				return nil
			}

			if err := c.UpdateExperiment(ctx, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %q\n", e.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resulting diff without sending the update")
	return cmd
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file.json|->",
		Short: "Submit a filled-in experiment as a response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readExperiment(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			if err := c.SubmitResponse(ctx, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted response to %q\n", e.Name)
			return nil
		},
	}
}

func newToggleCmd(opts *rootOptions) *cobra.Command {
	var disabled bool
	cmd := &cobra.Command{
		Use:   "toggle <name>",
		Short: "Enable or disable an experiment",
		Long: `Set the disabled flag of one experiment. Disabled experiments stay listed
but their questionnaire refuses respondents.

  expctl toggle "Coffee Survey" --disabled
  expctl toggle "Coffee Survey" --disabled=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			list, err := c.GetExperiments(ctx)
			if err != nil {
				return err
			}
			e := experiment.Find(list, args[0])
			if e == nil {
				return fmt.Errorf("no experiment named %q", args[0])
			}
			if e.Disabled == disabled {
				fmt.Fprintf(cmd.OutOrStdout(), "%q already has disabled=%t\n", e.Name, disabled)
				return nil
			}
			e.Disabled = disabled
			if err := c.UpdateExperiment(ctx, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q disabled=%t\n", e.Name, disabled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&disabled, "disabled", false, "disable the experiment")
	return cmd
}

func newExportFormCmd(opts *rootOptions) *cobra.Command {
	var (
		publish     bool
		credentials string
	)
	cmd := &cobra.Command{
		Use:   "export-form <name>",
		Short: "Export an experiment as a Google Form",
		Long: `Print the Google Forms API requests that recreate an experiment as a form.

With --publish the form is created through the Forms API using the given
credentials file (or Application Default Credentials when omitted).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			list, err := c.GetExperiments(ctx)
			if err != nil {
				return err
			}
			e := experiment.FindFold(list, args[0])
			if e == nil {
				return fmt.Errorf("no experiment named %q", args[0])
			}

			if !publish {
				plan, err := gforms.Build(e)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}

			p, err := gforms.NewPublisher(ctx, gforms.Config{CredentialsFile: credentials}, nil)
			if err != nil {
				return err
			}
			res, err := p.Publish(ctx, e)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "form %s\nrespond at %s\n", res.FormID, res.ResponderURI)
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "create the form through the Google Forms API")
	cmd.Flags().StringVar(&credentials, "credentials", "", "Google credentials JSON file")
	return cmd
}

// readExperiment decodes one experiment from path, or from stdin for "-".
func readExperiment(stdin io.Reader, path string) (*experiment.Experiment, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var e experiment.Experiment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if strings.TrimSpace(e.Name) == "" {
		return nil, fmt.Errorf("%s: experiment name is required", path)
	}
	return &e, nil
}

func writeList(w io.Writer, list []*experiment.Experiment) error {
	data, err := experiment.MarshalList(list)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func writeTable(w io.Writer, header []string, list []*experiment.Experiment, row func(*experiment.Experiment) []any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, e := range list {
		cells := row(e)
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = fmt.Sprint(c)
		}
		fmt.Fprintln(tw, strings.Join(parts, "\t"))
	}
	return tw.Flush()
}

// indexed adapts a row function that needs the position in the list.
func indexed(fn func(int, *experiment.Experiment) []any) func(*experiment.Experiment) []any {
	i := -1
	return func(e *experiment.Experiment) []any {
		i++
		return fn(i, e)
	}
}

func questionCount(e *experiment.Experiment) int {
	return len(e.StandardQuestions) + len(e.CustomQuestions)
}

func answered(e *experiment.Experiment) int {
	n := 0
	e.EachQuestion(func(_ experiment.Collection, _ int, q experiment.Question) {
		if strings.TrimSpace(q.Base().Answer) != "" {
			n++
		}
	})
	return n
}
