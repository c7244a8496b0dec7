package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tierklinik-dobersberg/apis/pkg/cli"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/report"
)

func TokensCommand(root *cli.Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens [query]",
		Short: "Print the tokens of a filter query",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range filterql.Tokenize(args[0], nil) {
				fmt.Printf("%-10s %-12s %4d-%-4d %q\n", t.Kind, t.State, t.Start, t.End, t.Text)
			}
		},
	}

	return cmd
}

func ParseCommand(root *cli.Root) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "parse [query]",
		Short: "Parse a filter query and print the resulting filter tree",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			q, err := filterql.Parse(args[0])
			if err != nil {
				logrus.Fatal(err)
			}

			if debug {
				spew.Dump(q.Filters)
				return
			}

			if q.IsEmpty() {
				fmt.Println("(empty filter)")
				return
			}

			for _, n := range q.Filters {
				fmt.Println(n.String())
			}
		},
	}

	f := cmd.Flags()
	{
		f.BoolVar(&debug, "debug", false, "Dump the complete filter tree")
	}

	return cmd
}

func ToggleCommand(root *cli.Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle [query] [key] [value]",
		Short: "Add the term key:value to a query or remove it if present",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			result, ok := filterql.ToggleTerm(args[0], args[1], args[2])
			if !ok {
				logrus.Fatalf("cannot toggle %s:%s in %q", args[1], args[2], args[0])
			}

			fmt.Println(result)
		},
	}

	return cmd
}

func GrepCommand(root *cli.Root) *cobra.Command {
	var (
		opts     matcher.Options
		asHTML   bool
		title    string
		maxCount int
	)

	cmd := &cobra.Command{
		Use:   "grep [query] [files...]",
		Short: "Filter logcat output read from files or stdin",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			q, err := filterql.Parse(args[0])
			if err != nil {
				logrus.Fatal(err)
			}

			m, err := matcher.CompileQuery(q, opts)
			if err != nil {
				logrus.Fatal(err)
			}

			var readers []io.Reader
			for _, name := range args[1:] {
				file, err := os.Open(name)
				if err != nil {
					logrus.Fatal(err)
				}
				defer file.Close()

				readers = append(readers, file)
			}
			if len(readers) == 0 {
				readers = append(readers, os.Stdin)
			}

			msgs, err := logcat.NewReader(io.MultiReader(readers...)).ReadAll()
			if err != nil {
				logrus.Warnf("some lines could not be decoded: %s", err)
			}

			var matches []*logcat.Message
			for _, msg := range msgs {
				if m.Matches(msg) {
					matches = append(matches, msg)
				}
			}

			total := len(matches)
			if maxCount > 0 && len(matches) > maxCount {
				matches = matches[:maxCount]
			}

			if asHTML {
				html, err := report.HTML(report.Report{
					Title:    title,
					Query:    q.String(),
					Total:    total,
					Messages: matches,
				})
				if err != nil {
					logrus.Fatal(err)
				}

				fmt.Println(html)
				return
			}

			for _, msg := range matches {
				fmt.Println(strings.ReplaceAll(msg.Line(), "\n", "\n\t"))
			}
		},
	}

	f := cmd.Flags()
	{
		f.BoolVar(&opts.MatchCase, "match-case", false, "Match string keys case-sensitive")
		f.StringSliceVar(&opts.ProjectApplicationIDs, "project-app", nil, "Application IDs selected by package:mine")
		f.BoolVar(&asHTML, "html", false, "Render an HTML report instead of plain lines")
		f.StringVar(&title, "title", "", "The title of the HTML report")
		f.IntVarP(&maxCount, "max-count", "m", 0, "Stop after this many matches")
	}

	return cmd
}
