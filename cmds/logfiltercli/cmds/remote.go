package cmds

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tierklinik-dobersberg/apis/pkg/cli"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/services/filters"
	"google.golang.org/protobuf/types/known/structpb"
)

type remote struct {
	root   *cli.Root
	client connect.HTTPClient
	server string
}

// invoke calls procedure on the filter service.
func (r *remote) invoke(ctx context.Context, procedure string, values map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(values)
	if err != nil {
		return nil, err
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](
		r.client,
		strings.TrimSuffix(r.server, "/")+procedure,
	)

	res, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}

	return res.Msg, nil
}

// call invokes procedure on the filter service and prints the response.
func (r *remote) call(procedure string, values map[string]any) {
	res, err := r.invoke(r.root.Context(), procedure, values)
	if err != nil {
		logrus.Fatal(err)
	}

	r.root.Print(res)
}

func newRemote(root *cli.Root, server string) *remote {
	return &remote{
		root:   root,
		client: cli.NewInsecureHttp2Client(),
		server: server,
	}
}

func RemoteCommand(root *cli.Root) *cobra.Command {
	r := newRemote(root, "")

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running logfilter service",
	}

	cmd.PersistentFlags().StringVar(&r.server, "server", "http://localhost:8080", "The base URL of the logfilter service")

	cmd.AddCommand(
		&cobra.Command{
			Use:  "parse [query]",
			Args: cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				r.call(filters.ParseProcedure, map[string]any{"query": args[0]})
			},
		},
		&cobra.Command{
			Use:  "complete [query]",
			Args: cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				r.call(filters.CompleteProcedure, map[string]any{"query": args[0]})
			},
		},
		&cobra.Command{
			Use:   "toggle [query] [key] [value]",
			Short: "Add or remove a key:value term",
			Args:  cobra.ExactArgs(3),
			Run: func(cmd *cobra.Command, args []string) {
				r.call(filters.ToggleTermProcedure, map[string]any{"query": args[0], "key": args[1], "value": args[2]})
			},
		},
		&cobra.Command{
			Use:  "terms [query]",
			Args: cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				r.call(filters.CountTermsProcedure, map[string]any{"query": args[0]})
			},
		},
		remoteQueryCommand(r),
		remotePushCommand(r),
		remoteHistoryCommand(r),
		remoteSavedCommand(r),
	)

	return cmd
}

func remoteQueryCommand(r *remote) *cobra.Command {
	var (
		pageSize int
		page     int
		sort     []string
		from     string
		to       string
	)

	cmd := &cobra.Command{
		Use:  "query [query]",
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var query string
			if len(args) == 1 {
				query = args[0]
			}

			sortValues := make([]any, len(sort))
			for idx, s := range sort {
				sortValues[idx] = s
			}

			r.call(filters.QueryMessagesProcedure, map[string]any{
				"query":    query,
				"pageSize": pageSize,
				"page":     page,
				"sort":     sortValues,
				"from":     from,
				"to":       to,
			})
		},
	}

	f := cmd.Flags()
	{
		f.IntVar(&pageSize, "page-size", 0, "The number of messages per page")
		f.IntVar(&page, "page", 0, "The page to return")
		f.StringSliceVar(&sort, "sort", nil, "Sort by timestamp, level, tag or pid. Prefix with - for descending order")
		f.StringVar(&from, "from", "", "Only messages at or after this time")
		f.StringVar(&to, "to", "", "Only messages at or before this time")
	}

	return cmd
}

func remotePushCommand(r *remote) *cobra.Command {
	return &cobra.Command{
		Use:   "push [files...]",
		Short: "Upload logcat output read from files or stdin",
		Run: func(cmd *cobra.Command, args []string) {
			var readers []io.Reader
			for _, name := range args {
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

			blob, err := io.ReadAll(io.MultiReader(readers...))
			if err != nil {
				logrus.Fatal(err)
			}

			r.call(filters.PushMessagesProcedure, map[string]any{"text": string(blob)})
		},
	}
}

func remoteHistoryCommand(r *remote) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently used filters",
		Run: func(cmd *cobra.Command, args []string) {
			r.call(filters.RecentFiltersProcedure, map[string]any{"limit": limit})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of filters to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Show the default filter",
		Run: func(cmd *cobra.Command, args []string) {
			r.call(filters.DefaultFilterProcedure, map[string]any{})
		},
	})

	return cmd
}

func remoteSavedCommand(r *remote) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved filters",
		Run: func(cmd *cobra.Command, args []string) {
			r.call(filters.ListSavedFiltersProcedure, map[string]any{})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:  "save [name] [query]",
			Args: cobra.ExactArgs(2),
			Run: func(cmd *cobra.Command, args []string) {
				r.call(filters.SaveFilterProcedure, map[string]any{
					"name":  args[0],
					"query": args[1],
				})
			},
		},
		&cobra.Command{
			Use:  "delete [name]",
			Args: cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				r.call(filters.DeleteSavedFilterProcedure, map[string]any{"name": args[0]})
			},
		},
	)

	return cmd
}
