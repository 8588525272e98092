package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/bidwatch/internal/indexing/listener"
)

var serverAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the listeners of a running instance",
	Run:   runStatus,
}

var restartCmd = &cobra.Command{
	Use:   "restart [kind]",
	Short: "Restart one listener of a running instance, keeping its checkpoint",
	Args:  cobra.ExactArgs(1),
	Run:   runRestart,
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, restartCmd} {
		c.Flags().StringVar(&serverAddr, "addr", "", "base URL of the running instance (default http://localhost:<server.port>)")
		rootCmd.AddCommand(c)
	}
}

func baseURL() string {
	if serverAddr != "" {
		return serverAddr
	}
	cfg := loadConfig()
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
}

func request(method, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, baseURL()+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, body)
	}
	return body, nil
}

func runStatus(cmd *cobra.Command, args []string) {
	body, err := request(http.MethodGet, "/listeners/health")
	if err != nil {
		slog.Error("Failed to query listeners", "error", err)
		os.Exit(1)
	}

	var health []listener.Health
	if err := json.Unmarshal(body, &health); err != nil {
		slog.Error("Failed to decode listener health", "error", err)
		os.Exit(1)
	}
	printHealth(health...)
}

func runRestart(cmd *cobra.Command, args []string) {
	body, err := request(http.MethodPost, "/listeners/"+args[0]+"/restart")
	if err != nil {
		slog.Error("Failed to restart listener", "kind", args[0], "error", err)
		os.Exit(1)
	}

	var h listener.Health
	if err := json.Unmarshal(body, &h); err != nil {
		slog.Error("Failed to decode listener health", "error", err)
		os.Exit(1)
	}
	printHealth(h)
}

func printHealth(health ...listener.Health) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "LISTENER\tSTATE\tLISTENING\tLEDGER\tBREAKER")
	for _, h := range health {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n",
			h.Kind, h.State, h.IsListening, h.LastProcessedBlock, h.CircuitBreaker.State)
	}
	_ = w.Flush()
}
