package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var (
	queryServer string
	queryPort   int
)

var queryCmd = &cobra.Command{
	Use:   "query <address>",
	Short: "ask a running geocode proxy for the coordinates of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := queryURL(queryServer, queryPort, args[0])
		fmt.Fprintf(cmd.ErrOrStderr(), "GET %s\n", target)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		return query(ctx, target, cmd.OutOrStdout())
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringVarP(&queryServer, "server", "s", "localhost", "proxy server address")
	f.IntVarP(&queryPort, "port", "p", 8088, "proxy server port")

	rootCmd.AddCommand(queryCmd)
}

func queryURL(server string, port int, address string) string {
	u := url.URL{
		Scheme:   "http",
		Host:     fmt.Sprintf("%s:%d", server, port),
		Path:     "/",
		RawQuery: url.Values{"address": {address}}.Encode(),
	}
	return u.String()
}

// query prints the proxy's status line and body. Non-2xx answers are not errors, the body
// already explains them.
func query(ctx context.Context, target string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error querying geoproxy: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading geoproxy response body: %w", err)
	}
	fmt.Fprintf(out, "%d %s\n", resp.StatusCode, body)
	return nil
}
