// hornetctl is a thin HTTP client CLI over hornetd's API: inspecting
// incidents, ingesting test events, reviewing registered agents and
// playbooks, and recording an operator's oversight decision on a
// proposed action.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient() *client {
	return &client{
		baseURL: getEnv("HORNET_API_URL", "http://localhost:8080"),
		apiKey:  os.Getenv("HORNET_API_KEY"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

func printJSON(data []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(pretty.String())
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	c := newClient()
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "health":
		runHealth(c)
	case "incidents":
		runIncidents(c, args)
	case "get":
		runGet(c, args)
	case "ingest":
		runIngest(c, args)
	case "agents":
		runAgents(c)
	case "playbooks":
		runPlaybooks(c)
	case "thresholds":
		runThresholds(c)
	case "metrics":
		runMetrics(c)
	case "approve":
		runApprove(c, args)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `hornetctl <command> [flags]

Commands:
  health                                     check hornetd's health
  incidents [--state=] [--limit=]            list incidents
  get <incident_id>                          show one incident in full
  ingest --file=<path> [--type=] [--severity=]  ingest a test event
  agents                                     list registered agents
  playbooks                                  list registered playbooks
  thresholds                                 show detection thresholds
  metrics                                    show dispatcher counters
  approve <incident_id> <action_id> [--reject] [--justification=]`)
}

func runHealth(c *client) {
	data, status, err := c.do(http.MethodGet, "/health", nil)
	if err != nil {
		fail("health check failed: %v", err)
	}
	if status >= 400 {
		fail("hornetd reported status %d", status)
	}
	printJSON(data)
}

func runIncidents(c *client, args []string) {
	fs := flag.NewFlagSet("incidents", flag.ExitOnError)
	state := fs.String("state", "", "filter by incident state")
	limit := fs.Int("limit", 0, "maximum results")
	fs.Parse(args)

	path := "/api/v1/incidents"
	sep := "?"
	if *state != "" {
		path += sep + "state=" + *state
		sep = "&"
	}
	if *limit > 0 {
		path += fmt.Sprintf("%slimit=%d", sep, *limit)
	}

	data, status, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		fail("listing incidents failed: %v", err)
	}
	if status >= 400 {
		printJSON(data)
		os.Exit(1)
	}
	printJSON(data)
}

func runGet(c *client, args []string) {
	if len(args) < 1 {
		fail("usage: hornetctl get <incident_id>")
	}
	data, status, err := c.do(http.MethodGet, "/api/v1/incidents/"+args[0], nil)
	if err != nil {
		fail("fetching incident failed: %v", err)
	}
	if status >= 400 {
		printJSON(data)
		os.Exit(1)
	}
	printJSON(data)
}

func runIngest(c *client, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "path to a JSON event payload")
	eventType := fs.String("type", "", "event_type override")
	severity := fs.String("severity", "", "severity override")
	fs.Parse(args)

	var payload map[string]any
	if *file != "" {
		raw, err := os.ReadFile(*file)
		if err != nil {
			fail("reading event file: %v", err)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			fail("parsing event file: %v", err)
		}
	} else {
		payload = map[string]any{}
	}
	if *eventType != "" {
		payload["event_type"] = *eventType
	}
	if *severity != "" {
		payload["severity"] = *severity
	}

	data, status, err := c.do(http.MethodPost, "/api/v1/events", payload)
	if err != nil {
		fail("ingesting event failed: %v", err)
	}
	if status >= 400 {
		printJSON(data)
		os.Exit(1)
	}
	printJSON(data)
}

func runAgents(c *client) {
	data, status, err := c.do(http.MethodGet, "/health/agents", nil)
	if err != nil {
		fail("listing agents failed: %v", err)
	}
	if status >= 400 {
		printJSON(data)
		os.Exit(1)
	}
	printJSON(data)
}

func runPlaybooks(c *client) {
	data, status, err := c.do(http.MethodGet, "/api/v1/config/playbooks", nil)
	if err != nil {
		fail("listing playbooks failed: %v", err)
	}
	if status >= 400 {
		printJSON(data)
		os.Exit(1)
	}
	printJSON(data)
}

func runThresholds(c *client) {
	data, status, err := c.do(http.MethodGet, "/api/v1/config/thresholds", nil)
	if err != nil {
		fail("fetching thresholds failed: %v", err)
	}
	if status >= 400 {
		printJSON(data)
		os.Exit(1)
	}
	printJSON(data)
}

func runMetrics(c *client) {
	data, status, err := c.do(http.MethodGet, "/metrics", nil)
	if err != nil {
		fail("fetching metrics failed: %v", err)
	}
	if status >= 400 {
		fail("hornetd reported status %d", status)
	}
	fmt.Print(string(data))
}

func runApprove(c *client, args []string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	reject := fs.Bool("reject", false, "reject instead of approving")
	justification := fs.String("justification", "", "operator justification")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 2 {
		fail("usage: hornetctl approve <incident_id> <action_id> [--reject] [--justification=]")
	}
	incidentID, actionID := rest[0], rest[1]

	responseType := "approve"
	if *reject {
		responseType = "reject"
	}
	body := map[string]any{
		"action_id":      actionID,
		"response_type":  responseType,
		"justification":  *justification,
	}

	data, status, err := c.do(http.MethodPost, "/api/v1/incidents/"+incidentID+"/action", body)
	if err != nil {
		fail("recording decision failed: %v", err)
	}
	if status >= 400 {
		printJSON(data)
		os.Exit(1)
	}
	printJSON(data)
}
