package probe

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SafeMPC/claim-signer/internal/config"
	"github.com/SafeMPC/claim-signer/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("probe",
		newLiveness(),
		newReadiness(),
	)
}

func newLiveness() *cobra.Command {
	return &cobra.Command{
		Use:   "liveness",
		Short: "Checks the server liveness endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			probe("/-/healthy")
		},
	}
}

func newReadiness() *cobra.Command {
	return &cobra.Command{
		Use:   "readiness",
		Short: "Checks the server readiness endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			probe("/-/ready")
		},
	}
}

// probe hits a management endpoint on the local server and exits non-zero on
// anything but 200, for use as a container health check.
func probe(path string) {
	cfg := config.DefaultServerConfigFromEnv()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost" + cfg.Echo.ListenAddress + path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(string(body))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
