package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nit2312/NyaySarthi/internal/backend"
	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/config"
	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
	"github.com/Nit2312/NyaySarthi/internal/storage"
)

// newBackendClient talks to the remote backend directly, sharing the
// server's secrets file so a login here is picked up by a running server.
var newBackendClient = func() (*backend.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return backend.New(backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Tokens:  config.OpenSecrets(cfg.SecretsPath()),
	}), nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- auth ---

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the legal-research backend",
	Long: `Log in to the legal-research backend and store the bearer token.

The password is read from --password, or from the first line of stdin.

Examples:
  nyay login --username advocate@example.com
  echo "$PASSWORD" | nyay login -u advocate@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if username == "" {
			return fmt.Errorf("--username is required")
		}
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		client, err := newBackendClient()
		if err != nil {
			return err
		}
		ctx := cmdContext(cmd)
		if err := client.Login(ctx, username, password); err != nil {
			return err
		}

		if u, err := client.Me(ctx); err == nil && u.Name != "" {
			printSuccess("Logged in as %s", u.Name)
		} else {
			printSuccess("Logged in as %s", username)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringP("username", "u", "", "backend account email")
	loginCmd.Flags().String("password", "", "backend password (prompted on stdin when empty)")
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored backend token",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		if err := client.Logout(); err != nil {
			return err
		}
		printSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in backend user",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		u, err := client.Me(cmdContext(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s <%s>\n", colorize(colorBold, u.Name), u.Email)
		if u.Role != "" {
			fmt.Fprintf(out, "  role: %s\n", u.Role)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the local server and the remote backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		healthy := true

		if local, err := newAPIClient(); err != nil {
			printStatus("Local", "%v", err)
			healthy = false
		} else if resp, err := local.get(ctx, "/health"); err != nil {
			printStatus("Local", "unreachable")
			healthy = false
		} else {
			var body map[string]string
			if err := decodeJSON(resp, &body); err != nil {
				printStatus("Local", "%v", err)
				healthy = false
			} else {
				printStatus("Local", "%s", body["status"])
			}
		}

		remote, err := newBackendClient()
		if err != nil {
			return err
		}
		status, err := remote.Health(ctx)
		if err != nil {
			printStatus("Backend", "%v", err)
			healthy = false
		} else {
			printStatus("Backend", "%s", status)
		}

		if !healthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

// --- precedents ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search case law",
	Long: `Search case law. Results are ordered by similarity, highest first.

Examples:
  nyay search right to privacy
  nyay search "anticipatory bail" --court "Supreme Court of India" --from 2010 --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		court, _ := cmd.Flags().GetString("court")
		from, _ := cmd.Flags().GetInt("from")
		to, _ := cmd.Flags().GetInt("to")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmdContext(cmd), "/precedents/search", map[string]any{
			"query":     strings.Join(args, " "),
			"court":     court,
			"year_from": from,
			"year_to":   to,
			"limit":     limit,
		})
		if err != nil {
			return err
		}

		var results []domain.Precedent
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, results)
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No precedents found.")
			return nil
		}
		for _, p := range results {
			printPrecedentLine(out, p)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("court", "", "restrict to one court")
	searchCmd.Flags().Int("from", 0, "earliest judgment year")
	searchCmd.Flags().Int("to", 0, "latest judgment year")
	searchCmd.Flags().Int("limit", 0, "maximum number of results (server default when 0)")
	searchCmd.Flags().Bool("json", false, "print raw JSON")
}

var precedentCmd = &cobra.Command{
	Use:   "precedent <id>",
	Short: "Show one precedent in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/precedents/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var p domain.Precedent
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), p)
		}
		printPrecedentDetail(cmd.OutOrStdout(), p)
		return nil
	},
}

func init() {
	precedentCmd.Flags().Bool("json", false, "print raw JSON")
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Toggle the favorite flag of a precedent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmdContext(cmd), "/precedents/"+url.PathEscape(args[0])+"/favorite", nil)
		if err != nil {
			return err
		}
		var p domain.Precedent
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		if p.IsFavorite {
			printSuccess("Added %s to favorites", p.Title)
		} else {
			printSuccess("Removed %s from favorites", p.Title)
		}
		return nil
	},
}

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List favorite precedents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPrecedents(cmd, "/precedents/favorites", "No favorites yet.")
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently added cases",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return listPrecedents(cmd, fmt.Sprintf("/recent-cases?limit=%d", limit), "No recent cases.")
	},
}

func init() {
	recentCmd.Flags().Int("limit", 10, "maximum number of cases")
}

func listPrecedents(cmd *cobra.Command, path, empty string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.get(cmdContext(cmd), path)
	if err != nil {
		return err
	}
	var list []domain.Precedent
	if err := decodeJSON(resp, &list); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, empty)
		return nil
	}
	for _, p := range list {
		printPrecedentLine(out, p)
	}
	return nil
}

var courtsCmd = &cobra.Command{
	Use:   "courts",
	Short: "List courts known to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/courts")
		if err != nil {
			return err
		}
		var courts []domain.Court
		if err := decodeJSON(resp, &courts); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range courts {
			fmt.Fprint(out, colorize(colorBold, c.Name))
			if c.Jurisdiction != "" {
				fmt.Fprintf(out, "  (%s)", c.Jurisdiction)
			}
			if c.Location != "" {
				fmt.Fprintf(out, "  %s", c.Location)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

// --- chat ---

type chatSession struct {
	client *apiClient
	id     string
	out    io.Writer
}

func openChat(ctx context.Context, client *apiClient, sessionID, precedentID string, out io.Writer) (*chatSession, error) {
	if sessionID != "" {
		return &chatSession{client: client, id: sessionID, out: out}, nil
	}

	body := map[string]any{}
	if precedentID != "" {
		body["precedent_id"] = precedentID
	}
	resp, err := client.post(ctx, "/sessions", body)
	if err != nil {
		return nil, err
	}
	var opened struct {
		Session   chat.Session      `json:"session"`
		Precedent *domain.Precedent `json:"precedent"`
	}
	if err := decodeJSON(resp, &opened); err != nil {
		return nil, err
	}

	cs := &chatSession{client: client, id: opened.Session.ID, out: out}
	if opened.Precedent != nil {
		// Scoped sessions start with the assistant's greeting.
		resp, err := client.get(ctx, "/sessions/"+cs.id+"/messages")
		if err != nil {
			return nil, err
		}
		var log []domain.Message
		if err := decodeJSON(resp, &log); err != nil {
			return nil, err
		}
		for _, m := range log {
			cs.printMessage(m)
		}
	}
	return cs, nil
}

func (cs *chatSession) ask(ctx context.Context, text string) error {
	resp, err := cs.client.post(ctx, "/sessions/"+cs.id+"/messages", map[string]any{
		"content": text,
		"wait":    true,
	})
	if err != nil {
		return err
	}
	var sent struct {
		Message domain.Message  `json:"message"`
		Reply   *domain.Message `json:"reply"`
	}
	if err := decodeJSON(resp, &sent); err != nil {
		return err
	}
	if sent.Reply != nil {
		cs.printMessage(*sent.Reply)
	}
	return nil
}

func (cs *chatSession) printMessage(m domain.Message) {
	label := colorize(colorCyan, "you")
	if m.Role == domain.RoleAssistant {
		label = colorize(colorGreen, "nyay")
	}
	fmt.Fprintf(cs.out, "%s> %s\n", label, m.Content)
	printCitations(cs.out, m.Sources)
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the legal assistant",
	Long: `Ask the legal assistant. With a message, sends it and prints the reply;
without one, starts an interactive session (empty line or /quit to leave).

Examples:
  nyay chat "What are the grounds for anticipatory bail?"
  nyay chat --precedent 1234
  nyay chat --session 5b1c... "And in Maharashtra?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		precedentID, _ := cmd.Flags().GetString("precedent")
		if sessionID != "" && precedentID != "" {
			return fmt.Errorf("--session and --precedent are mutually exclusive")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmdContext(cmd)
		cs, err := openChat(ctx, client, sessionID, precedentID, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if len(args) > 0 {
			if err := cs.ask(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			printStatus("Session", "%s", cs.id)
			return nil
		}

		printStep("Session %s (empty line or /quit to leave)", cs.id)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(os.Stderr, colorize(colorCyan, "you> "))
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" || line == "/quit" {
				break
			}
			if err := cs.ask(ctx, line); err != nil {
				printError("%v", err)
			}
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().String("session", "", "continue an existing session")
	chatCmd.Flags().String("precedent", "", "start a session about this precedent")
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and manage chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/sessions")
		if err != nil {
			return err
		}
		var sessions []chat.Session
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No open sessions.")
			return nil
		}
		for _, s := range sessions {
			state := "idle"
			if s.Pending {
				state = colorize(colorYellow, "pending")
			}
			scope := "general"
			if s.PrecedentID != "" {
				scope = "precedent " + s.PrecedentID
			}
			fmt.Fprintf(out, "%s  %s  %s  %s\n", colorize(colorCyan, s.ID), s.CreatedAt.Local().Format(time.DateTime), scope, state)
		}
		return nil
	},
}

var sessionsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted conversation logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), fmt.Sprintf("/sessions/history?limit=%d", limit))
		if err != nil {
			return err
		}
		var records []storage.SessionRecord
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range records {
			fmt.Fprintf(out, "%s  %s  %d messages\n", colorize(colorCyan, r.ID), r.CreatedAt.Local().Format(time.DateTime), r.MessageCount)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the message log of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/sessions/"+url.PathEscape(args[0])+"/messages")
		if err != nil {
			return err
		}
		var log []domain.Message
		if err := decodeJSON(resp, &log); err != nil {
			return err
		}
		cs := &chatSession{id: args[0], out: cmd.OutOrStdout()}
		for _, m := range log {
			cs.printMessage(m)
		}
		return nil
	},
}

var sessionsCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmdContext(cmd), "/sessions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Closed session %s", args[0])
		return nil
	},
}

func init() {
	sessionsHistoryCmd.Flags().Int("limit", 20, "maximum number of logs")
	sessionsCmd.AddCommand(sessionsHistoryCmd, sessionsShowCmd, sessionsCloseCmd)
}

// --- jobs ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document for analysis",
	Long: `Upload a PDF, DOC, DOCX, or TXT document for analysis.

Examples:
  nyay upload ./judgment.pdf
  nyay upload ./petition.docx --wait`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, _ := cmd.Flags().GetString("ref")
		wait, _ := cmd.Flags().GetBool("wait")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmdContext(cmd)
		resp, err := client.upload(ctx, args[0], ref)
		if err != nil {
			return err
		}
		var job domain.UploadJob
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}
		printSuccess("Queued job %s (%s)", job.ID, job.Filename)
		if !wait {
			return nil
		}

		job, err = waitForJob(ctx, client, job.ID, 500*time.Millisecond)
		if err != nil {
			return err
		}
		printJob(cmd.OutOrStdout(), job)
		if job.Status == domain.JobError {
			return fmt.Errorf("analysis failed: %s", job.LastError)
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("ref", "", "client reference; re-uploading the same reference returns the existing job")
	uploadCmd.Flags().Bool("wait", false, "wait for the analysis to finish and print it")
}

func waitForJob(ctx context.Context, client *apiClient, id string, every time.Duration) (domain.UploadJob, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		resp, err := client.get(ctx, "/jobs/"+url.PathEscape(id))
		if err != nil {
			return domain.UploadJob{}, err
		}
		var job domain.UploadJob
		if err := decodeJSON(resp, &job); err != nil {
			return domain.UploadJob{}, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJobLine(w io.Writer, j domain.UploadJob) {
	fmt.Fprintf(w, "%s  %-10s  %-30s  %s\n",
		colorize(colorCyan, j.ID),
		colorize(jobStatusColor(j.Status), string(j.Status)),
		truncate(j.Filename, 30),
		humanBytes(j.SizeBytes),
	)
}

func printJob(w io.Writer, j domain.UploadJob) {
	printJobLine(w, j)
	if j.LastError != "" {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorRed, "error:"), j.LastError)
	}
	a := j.Result
	if a == nil {
		return
	}
	fmt.Fprintf(w, "\n%s\n", a.Summary)
	if len(a.KeyTerms) > 0 {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Key terms:"), strings.Join(a.KeyTerms, ", "))
	}
	if a.Metadata.Court != "" {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Court:"), a.Metadata.Court)
	}
	if a.Metadata.CaseNumber != "" {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Case number:"), a.Metadata.CaseNumber)
	}
	for _, kp := range a.KeyPoints {
		fmt.Fprintf(w, "  • %s\n", kp)
	}
	for _, issue := range a.LegalIssues {
		fmt.Fprintf(w, "  ? %s\n", issue)
	}
	if len(a.Citations) > 0 {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Citations:"), strings.Join(a.Citations, "; "))
	}
	if a.Confidence > 0 {
		fmt.Fprintf(w, "  %s %.0f%%\n", colorize(colorBold, "Confidence:"), a.Confidence*100)
	}
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return strconv.FormatFloat(float64(n)/(1<<20), 'f', 1, 64) + " MB"
	case n >= 1<<10:
		return strconv.FormatFloat(float64(n)/(1<<10), 'f', 1, 64) + " KB"
	default:
		return strconv.FormatInt(n, 10) + " B"
	}
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List and manage document jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/jobs")
		if err != nil {
			return err
		}
		var list []domain.UploadJob
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No jobs.")
			return nil
		}
		for _, j := range list {
			printJobLine(out, j)
		}
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one job and its analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/jobs/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var job domain.UploadJob
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}
		printJob(cmd.OutOrStdout(), job)
		return nil
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts and byte totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/jobs/stats")
		if err != nil {
			return err
		}
		var s jobs.Stats
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		printStatus("Total", "%d", s.Total)
		printStatus("Completed", "%d", s.Completed)
		printStatus("Failed", "%d", s.Failed)
		printStatus("In flight", "%d", s.InFlight)
		printStatus("Bytes", "%s of %s processed", humanBytes(s.ProcessedBytes), humanBytes(s.TotalBytes))
		return nil
	},
}

var jobsSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Mark a job as the one being inspected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return jobAction(cmd, "POST", args[0], "/select", "Selected job %s")
	},
}

var jobsRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a job",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return jobAction(cmd, "DELETE", args[0], "", "Removed job %s")
	},
}

func jobAction(cmd *cobra.Command, method, id, suffix, done string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.do(cmdContext(cmd), method, "/jobs/"+url.PathEscape(id)+suffix, nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil); err != nil {
		return err
	}
	printSuccess(done, id)
	return nil
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream job transitions as they happen",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return watchJobs(cmdContext(cmd), client, cmd.OutOrStdout())
	},
}

func init() {
	jobsCmd.AddCommand(jobsShowCmd, jobsStatsCmd, jobsSelectCmd, jobsRemoveCmd, jobsWatchCmd)
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

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
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

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.ValidKeys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configKeysCmd)
}
