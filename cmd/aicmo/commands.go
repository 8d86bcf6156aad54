package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aicmo/aicmo/internal/config"
)

// --- register ---

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a user and get an API token",
	Long: `Register a user with the local server and print the issued API token.

Export the token as AICMO_API_TOKEN for the other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		if email == "" {
			return fmt.Errorf("--email is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client := &apiClient{
			baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
			httpClient: &http.Client{Timeout: 10 * time.Second},
		}

		resp, err := client.post(cmd.Context(), "/register", map[string]string{
			"email":       email,
			"displayName": name,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Registered user %s", result["userId"])
		fmt.Printf("export AICMO_API_TOKEN=%s\n", result["token"])
		return nil
	},
}

func init() {
	registerCmd.Flags().String("email", "", "email address for the new user")
	registerCmd.Flags().String("name", "", "display name for the new user")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a chat message to the assistant",
	Long: `Send a chat message to the assistant.

Examples:
  aicmo chat "Draft three taglines for our launch"
  aicmo chat --agent content --context personal "Write a LinkedIn post about my talk"
  aicmo chat --conversation 4f1c... "Make the second one shorter"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		conversationID, _ := cmd.Flags().GetString("conversation")
		contextType, _ := cmd.Flags().GetString("context")
		agent, _ := cmd.Flags().GetString("agent")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/chat", map[string]string{
			"message":        message,
			"conversationId": conversationID,
			"contextType":    contextType,
			"agentType":      agent,
		})
		if err != nil {
			return err
		}

		var result struct {
			Reply  string `json:"reply"`
			Action *struct {
				Type   string         `json:"type"`
				Params map[string]any `json:"params"`
			} `json:"action"`
			ConversationID string `json:"conversationId"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Reply)
		if result.Action != nil {
			params, _ := json.Marshal(result.Action.Params)
			fmt.Fprintf(os.Stderr, "\n%s %s %s\n", colorize(colorCyan, "action:"), result.Action.Type, params)
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", colorize(colorBold, "conversation:"), result.ConversationID)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("conversation", "", "conversation id to continue")
	chatCmd.Flags().String("context", "company", "profile context: personal or company")
	chatCmd.Flags().String("agent", "", "persona: cmo, content, growth, or developer")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profile contexts",
}

var profileInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize profile contexts from a JSON file or flags",
	Long: `Initialize profile contexts.

Either pass a JSON file with "personal", "company", and "business" keys,
or use --name/--profession for a quick company setup:
  aicmo profile init --file profile.json
  aicmo profile init --name "Breezy" --profession "VP of Marketing"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")
		profession, _ := cmd.Flags().GetString("profession")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var resp *http.Response
		switch {
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			resp, err = client.postRaw(cmd.Context(), "/profile", "application/json", data)
			if err != nil {
				return err
			}
		case name != "" || profession != "":
			var perr error
			resp, perr = client.post(cmd.Context(), "/profile", map[string]any{
				"company": map[string]string{
					"name":       name,
					"profession": profession,
				},
			})
			if perr != nil {
				return perr
			}
		default:
			return fmt.Errorf("either --file or --name/--profession is required")
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Profile initialized")
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show profile contexts as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}

		var contexts any
		if err := decodeJSON(resp, &contexts); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(contexts)
	},
}

var profileImportResumeCmd = &cobra.Command{
	Use:   "import-resume <file.pdf>",
	Short: "Import career history from a PDF resume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading resume: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postRaw(cmd.Context(), "/profile/resume", "application/pdf", data)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Resume imported into personal context")
		return nil
	},
}

func init() {
	profileInitCmd.Flags().String("file", "", "JSON file with profile contexts")
	profileInitCmd.Flags().String("name", "", "user name for a quick company setup")
	profileInitCmd.Flags().String("profession", "", "profession for a quick company setup")

	profileCmd.AddCommand(profileInitCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileImportResumeCmd)
}

// --- actions ---

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Run actions and inspect the audit log",
}

var actionsRunCmd = &cobra.Command{
	Use:   "run <type>",
	Short: "Execute an action directly",
	Long: `Execute an action directly, bypassing the chat flow.

Examples:
  aicmo actions run scrape_url --params '{"url":"https://example.com"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paramsStr, _ := cmd.Flags().GetString("params")

		params := map[string]any{}
		if paramsStr != "" {
			if err := json.Unmarshal([]byte(paramsStr), &params); err != nil {
				return fmt.Errorf("invalid --params JSON: %w", err)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/actions", map[string]any{
			"actionType": args[0],
			"params":     params,
		})
		if err != nil {
			return err
		}

		var result struct {
			Success  bool   `json:"success"`
			Result   string `json:"result"`
			Error    string `json:"error"`
			ActionID string `json:"actionId"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Success {
			printSuccess("Action %s completed", result.ActionID)
			if result.Result != "" {
				fmt.Println(result.Result)
			}
		} else {
			printError("Action %s failed: %s", result.ActionID, result.Error)
		}
		return nil
	},
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent action records",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/actions?limit=%d", limit))
		if err != nil {
			return err
		}

		var records []struct {
			ID        string `json:"id"`
			Type      string `json:"type"`
			Status    string `json:"status"`
			CreatedAt string `json:"createdAt"`
		}
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No actions found.")
			return nil
		}

		for _, rec := range records {
			status := rec.Status
			switch status {
			case "completed":
				status = colorize(colorGreen, status)
			case "failed":
				status = colorize(colorRed, status)
			}
			fmt.Printf("%s  %-10s  %s  %s\n",
				colorize(colorCyan, rec.ID[:8]),
				rec.Type,
				status,
				rec.CreatedAt,
			)
		}
		return nil
	},
}

func init() {
	actionsRunCmd.Flags().String("params", "", "action parameters as a JSON object")
	actionsListCmd.Flags().Int("limit", 20, "maximum number of records to list")

	actionsCmd.AddCommand(actionsRunCmd)
	actionsCmd.AddCommand(actionsListCmd)
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Browse conversation history",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/conversations?limit=%d", limit))
		if err != nil {
			return err
		}

		var conversations []struct {
			ID           string `json:"id"`
			ContextType  string `json:"contextType"`
			Title        string `json:"title"`
			MessageCount int    `json:"messageCount"`
		}
		if err := decodeJSON(resp, &conversations); err != nil {
			return err
		}

		if len(conversations) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		for _, c := range conversations {
			fmt.Printf("%s  %-8s  %3d msgs  %s\n",
				colorize(colorCyan, c.ID[:8]),
				c.ContextType,
				c.MessageCount,
				c.Title,
			)
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a full conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations/"+args[0])
		if err != nil {
			return err
		}

		var conversation struct {
			ID       string `json:"id"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := decodeJSON(resp, &conversation); err != nil {
			return err
		}

		for _, m := range conversation.Messages {
			fmt.Printf("%s %s\n\n", colorize(colorBold, "["+m.Role+"]"), m.Content)
		}
		return nil
	},
}

func init() {
	conversationsListCmd.Flags().Int("limit", 20, "maximum number of conversations to list")

	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Revert a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
