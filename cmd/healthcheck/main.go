// Command healthcheck probes the matching server for container health checks.
// With -ready it hits /readyz instead of /healthz, so orchestrators can gate
// traffic on engine warm-up rather than bare liveness.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	ready := flag.Bool("ready", false, "probe /readyz instead of /healthz")
	timeout := flag.Duration("timeout", 8*time.Second, "probe timeout")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "10000"
	}

	endpoint := "/healthz"
	if *ready {
		endpoint = "/readyz"
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s%s", port, endpoint))
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe %s failed: %v\n", endpoint, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "probe %s returned %d\n", endpoint, resp.StatusCode)
		os.Exit(1)
	}
}
