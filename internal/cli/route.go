package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRouteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "route <path>",
		Short: "Ask the route guard what happens when the tab opens a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			decision := a.Router.Resolve(a.Session.Snapshot(), args[0])
			return json.NewEncoder(cmd.OutOrStdout()).Encode(decision)
		},
	}
}

func newRequestCmd(opts *rootOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "request <method> <path>",
		Short: "Send an authenticated request to the expense API",
		Long: "Send a request through the gateway. The access token of the tab is attached,\n" +
			"a 401 triggers one refresh and one resend. Use --data @file to read the body from a file.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			path := args[1]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			var body any
			if data != "" {
				raw, err := readData(data)
				if err != nil {
					return err
				}
				body = raw
			}

			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Gateway.Do(cmd.Context(), method, path, body)
			if err != nil {
				return err
			}

			if resp.StatusCode != http.StatusNoContent {
				out := cmd.OutOrStdout()
				out.Write(resp.Body)
				if len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body, or @file")
	return cmd
}

func readData(data string) ([]byte, error) {
	if !strings.HasPrefix(data, "@") {
		return []byte(data), nil
	}

	name := strings.TrimPrefix(data, "@")
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read body file: %w", err)
	}
	return raw, nil
}
