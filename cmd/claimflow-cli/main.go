// Package main provides a CLI for interacting with the claimflow server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL  string
	configPath string

	// start flags
	customerID string
	startedBy  string

	// resume flags
	actor   string
	updates []string

	// list flags
	listStatus    string
	listCustomer  string
	listStartedBy string
)

// Config represents the CLI configuration
type Config struct {
	ServerURL string `json:"server_url"`
}

func main() {
	// Root command
	rootCmd := &cobra.Command{
		Use:   "claimflow-cli",
		Short: "ClaimFlow CLI",
		Long:  "Command-line interface for interacting with the claimflow server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load config if the server URL was not explicitly provided
			if serverURL == "" {
				loadConfig()
			}
			if serverURL == "" {
				serverURL = "http://localhost:8080"
			}
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	// Workflow commands
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new workflow instance",
		Run:   startWorkflow,
	}
	startCmd.Flags().StringVar(&customerID, "customer", "", "Customer identifier")
	startCmd.Flags().StringVar(&startedBy, "by", "", "Who is starting the workflow")

	resumeCmd := &cobra.Command{
		Use:   "resume [id]",
		Short: "Resume a paused workflow instance with input",
		Args:  cobra.ExactArgs(1),
		Run:   resumeWorkflow,
	}
	resumeCmd.Flags().StringVar(&actor, "actor", "", "Who is supplying the input")
	resumeCmd.Flags().StringArrayVar(&updates, "set", nil, "Input as key=value, repeatable")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow instances",
		Run:   listWorkflows,
	}
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&listCustomer, "customer", "", "Filter by customer")
	listCmd.Flags().StringVar(&listStartedBy, "by", "", "Filter by who started the workflow")

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Get a workflow instance",
		Args:  cobra.ExactArgs(1),
		Run:   getWorkflow,
	}

	historyCmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show the event log for a workflow instance",
		Args:  cobra.ExactArgs(1),
		Run:   getHistory,
	}

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List instances waiting on human input",
		Run:   listPending,
	}

	rootCmd.AddCommand(startCmd, resumeCmd, listCmd, getCmd, historyCmd, pendingCmd)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig loads the CLI configuration
func loadConfig() {
	// If a config path is specified, use it
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".claimflow", "cli-config.json")
		}
	}

	// If the config file doesn't exist, return
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return
	}

	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Printf("Warning: Failed to read config file: %v\n", err)
		return
	}

	// Parse the config
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		fmt.Printf("Warning: Failed to parse config file: %v\n", err)
		return
	}

	if serverURL == "" {
		serverURL = config.ServerURL
	}
}

// startWorkflow starts a new workflow instance
func startWorkflow(cmd *cobra.Command, args []string) {
	if customerID == "" || startedBy == "" {
		fmt.Println("Error: --customer and --by are required")
		os.Exit(1)
	}

	reqBody, err := json.Marshal(map[string]string{
		"customer_id": customerID,
		"started_by":  startedBy,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/workflows", serverURL),
		"application/json",
		bytes.NewBuffer(reqBody),
	)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp, http.StatusCreated)
}

// resumeWorkflow resumes a paused workflow instance
func resumeWorkflow(cmd *cobra.Command, args []string) {
	if actor == "" {
		fmt.Println("Error: --actor is required")
		os.Exit(1)
	}

	bag := make(map[string]interface{}, len(updates))
	for _, pair := range updates {
		key, value, ok := splitKeyValue(pair)
		if !ok {
			fmt.Printf("Error: invalid --set value %q, expected key=value\n", pair)
			os.Exit(1)
		}
		bag[key] = value
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"actor":   actor,
		"updates": bag,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/workflows/%s/human-step", serverURL, args[0]),
		"application/json",
		bytes.NewBuffer(reqBody),
	)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp, http.StatusOK)
}

// listWorkflows lists workflow instances
func listWorkflows(cmd *cobra.Command, args []string) {
	query := url.Values{}
	if listStatus != "" {
		query.Set("status", listStatus)
	}
	if listCustomer != "" {
		query.Set("customer_id", listCustomer)
	}
	if listStartedBy != "" {
		query.Set("started_by", listStartedBy)
	}

	endpoint := fmt.Sprintf("%s/api/v1/workflows", serverURL)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	resp, err := http.Get(endpoint)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp, http.StatusOK)
}

// getWorkflow gets a workflow instance
func getWorkflow(cmd *cobra.Command, args []string) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workflows/%s", serverURL, args[0]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp, http.StatusOK)
}

// getHistory shows the event log for a workflow instance
func getHistory(cmd *cobra.Command, args []string) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workflows/%s/history", serverURL, args[0]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp, http.StatusOK)
}

// listPending lists instances waiting on human input
func listPending(cmd *cobra.Command, args []string) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workflows/pending-human", serverURL))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp, http.StatusOK)
}

// splitKeyValue splits a key=value pair
func splitKeyValue(pair string) (string, string, bool) {
	parts := strings.SplitN(pair, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// printResponse pretty-prints the response body and exits on unexpected status
func printResponse(resp *http.Response, wantStatus int) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode != wantStatus {
		fmt.Printf("Error: %s\n", body)
		os.Exit(1)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}
