package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var stateURL string

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Fetch live world state from a running server (loopback only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u := strings.TrimRight(strings.TrimSpace(stateURL), "/") + "/admin/v1/state"
		cl := &http.Client{Timeout: 5 * time.Second}
		resp, err := cl.Get(u)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(b)))
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return nil
	},
}

func init() {
	stateCmd.Flags().StringVar(&stateURL, "url", "http://127.0.0.1:8080", "server base url")
}
