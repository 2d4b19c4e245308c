package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"agent_agency/internal/client"
	"agent_agency/internal/config"
	"agent_agency/internal/domain"
)

// roleColors is a static role -> tview color tag mapping, presentation only.
var roleColors = map[string]string{
	"Market Researcher":            "aqua",
	"Brand Strategist":             "fuchsia",
	"Creative Director":            "yellow",
	"Media Planner":                "lime",
	"Data Analyst":                 "aqua",
	"Content Strategist":           "orange",
	"Customer Insights Specialist": "teal",
	"Implementation Specialist":    "green",
	"Angel Investor":               "gold",
	"Client":                       "white",
	"Orchestrator":                 "gray",
}

type embeddedServer struct {
	cmd *exec.Cmd
}

func main() {
	addr := flag.String("addr", config.APIURL(), "server base URL")
	embedded := flag.Bool("embedded", false, "start the server in the same monitor process lifecycle")
	serverBinary := flag.String("server-bin", "", "path to server binary (optional in embedded mode)")
	dbPath := flag.String("db", "data/embedded.db", "sqlite db path for embedded server")
	flag.Parse()

	api := client.NewAPI(*addr, nil)

	var embeddedProc *embeddedServer
	var err error
	if *embedded {
		embeddedProc, err = startEmbeddedServer(*addr, *serverBinary, *dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start embedded server: %v\n", err)
			os.Exit(1)
		}
		defer embeddedProc.Stop()
	}

	if err := waitHealth(api.BaseURL(), 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "server health check failed: %v\n", err)
		os.Exit(1)
	}

	agents, err := api.AvailableAgents(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load agent catalog: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()
	session := client.NewSession(api, nil)

	selected := make(map[string]bool)

	agentsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	agentsTable.SetTitle("Agents (Enter toggle, pick 2-5)").SetBorder(true)

	goalInput := tview.NewInputField().
		SetLabel("Project goal: ")
	goalInput.SetBorder(true).SetTitle("Enter = start collaboration")

	conversationView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetScrollable(true)
	conversationView.SetTitle("Conversation").SetBorder(true)

	thinkingView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetScrollable(true)
	thinkingView.SetTitle("Thinking").SetBorder(true)

	deliverablesView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetScrollable(true)
	deliverablesView.SetTitle("Deliverables").SetBorder(true)

	feedbackInput := tview.NewInputField().
		SetLabel("Feedback: ")
	feedbackInput.SetBorder(true).SetTitle("narrative; changes separated by ; after | (Enter = submit)")

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf(
		"Connected to %s | F10 quit, Ctrl+V video, Ctrl+R reset, Ctrl+G goal, Ctrl+F feedback",
		api.BaseURL(),
	))

	setStatusUI := func(msg string) {
		statusView.SetText(msg)
	}
	setStatusAsync := func(msg string) {
		app.QueueUpdateDraw(func() {
			statusView.SetText(msg)
		})
	}

	renderAgents := func() {
		agentsTable.Clear()
		headers := []string{"", "Name", "Role"}
		for i, h := range headers {
			agentsTable.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
		}
		for i, a := range agents {
			row := i + 1
			mark := " "
			if selected[a.ID] {
				mark = "x"
			}
			agentsTable.SetCell(row, 0, tview.NewTableCell("["+mark+"]"))
			agentsTable.SetCell(row, 1, tview.NewTableCell(a.Name))
			agentsTable.SetCell(row, 2, tview.NewTableCell(a.Role).SetTextColor(tcell.ColorGray))
		}
	}
	renderAgents()

	render := func(snap client.Snapshot) {
		conversationView.SetText(renderConversation(snap.Conversation))
		conversationView.ScrollToEnd()
		thinkingView.SetText(renderThinking(snap.Thinking))
		thinkingView.ScrollToEnd()
		deliverablesView.SetText(renderDeliverables(snap.Deliverables))

		var parts []string
		parts = append(parts, "phase="+string(snap.Phase))
		if snap.Busy {
			parts = append(parts, "working...")
		}
		if snap.Activity != "" {
			parts = append(parts, snap.Activity)
		}
		switch snap.Video.Status {
		case client.VideoGenerating:
			parts = append(parts, "video: generating")
		case client.VideoReady:
			parts = append(parts, "video: ready at "+snap.Video.DownloadURL)
		case client.VideoFailed:
			parts = append(parts, "video failed: "+snap.Video.Message)
		}
		if snap.ErrorBanner != "" {
			parts = append(parts, "[red]"+snap.ErrorBanner+"[-]")
		}
		statusView.SetText(strings.Join(parts, " | "))
	}

	session.OnUpdate = func(snap client.Snapshot) {
		app.QueueUpdateDraw(func() {
			render(snap)
		})
	}

	startCollaboration := func() {
		goal := strings.TrimSpace(goalInput.GetText())
		ids := make([]string, 0, len(selected))
		for _, a := range agents {
			if selected[a.ID] {
				ids = append(ids, a.ID)
			}
		}
		setStatusUI("Starting collaboration...")
		go func() {
			projectID, err := session.Start(context.Background(), goal, ids)
			if err != nil {
				setStatusAsync("Start failed: " + err.Error())
				return
			}
			setStatusAsync("Collaboration started project=" + projectID)
		}()
	}

	submitFeedback := func() {
		raw := feedbackInput.GetText()
		narrative := raw
		var changes []string
		if idx := strings.Index(raw, "|"); idx >= 0 {
			narrative = raw[:idx]
			for _, change := range strings.Split(raw[idx+1:], ";") {
				changes = append(changes, strings.TrimSpace(change))
			}
		}
		session.EditForm(func(f *client.FeedbackForm) {
			f.Narrative = strings.TrimSpace(narrative)
			if len(changes) > 0 {
				f.Changes = changes
			}
		})
		feedbackInput.SetText("")
		setStatusUI("Submitting feedback...")
		go func() {
			if err := session.SubmitFeedback(context.Background()); err != nil {
				setStatusAsync("Feedback failed: " + err.Error())
				return
			}
			setStatusAsync("Feedback submitted, agents adapting...")
		}()
	}

	agentsTable.SetSelectedFunc(func(row, _ int) {
		if row <= 0 || row > len(agents) {
			return
		}
		id := agents[row-1].ID
		selected[id] = !selected[id]
		renderAgents()
	})

	goalInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		startCollaboration()
	})

	feedbackInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		submitFeedback()
	})

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(agentsTable, 0, 3, true).
		AddItem(goalInput, 3, 0, false)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(conversationView, 0, 3, false).
		AddItem(thinkingView, 0, 2, false).
		AddItem(deliverablesView, 0, 3, false)

	mainLayout := tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(right, 0, 3, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, true).
		AddItem(feedbackInput, 3, 0, false).
		AddItem(statusView, 3, 0, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyCtrlG:
			app.SetFocus(goalInput)
			setStatusUI("Focus -> goal")
			return nil
		case tcell.KeyCtrlF:
			app.SetFocus(feedbackInput)
			setStatusUI("Focus -> feedback")
			return nil
		case tcell.KeyCtrlV:
			setStatusUI("Requesting video...")
			go func() {
				if err := session.RequestVideo(context.Background()); err != nil {
					setStatusAsync("Video request failed: " + err.Error())
					return
				}
				setStatusAsync("Video generation requested")
			}()
			return nil
		case tcell.KeyCtrlR:
			session.Reset()
			goalInput.SetText("")
			feedbackInput.SetText("")
			for id := range selected {
				delete(selected, id)
			}
			renderAgents()
			app.SetFocus(agentsTable)
			setStatusUI("Reset to setup")
			return nil
		case tcell.KeyEscape:
			app.SetFocus(agentsTable)
			setStatusUI("Focus -> agents")
			return nil
		}
		return event
	})

	if err := app.SetRoot(root, true).EnableMouse(true).SetFocus(agentsTable).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func renderConversation(messages []domain.ConversationMessage) string {
	if len(messages) == 0 {
		return "No messages yet"
	}
	var b strings.Builder
	for _, m := range messages {
		color := roleColors[m.AgentRole]
		if color == "" {
			color = "white"
		}
		header := fmt.Sprintf("[%s]%s (%s)[-]", color, m.AgentName, m.AgentRole)
		if m.RespondingTo != "" {
			header += " -> " + m.RespondingTo
		}
		b.WriteString(fmt.Sprintf("%s  round=%d %s\n", header, m.Round, m.Timestamp.Format("15:04:05")))
		if m.Content.Message != "" {
			b.WriteString("  " + m.Content.Message + "\n")
		}
		if m.Content.Stance != "" {
			b.WriteString("  stance: " + m.Content.Stance + "\n")
		}
		for _, q := range m.Content.QuestionsForTeam {
			b.WriteString("  ? " + q + "\n")
		}
		for _, c := range m.Content.ChallengesRaised {
			b.WriteString("  ! " + c + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderThinking(entries []domain.ThinkingEntry) string {
	if len(entries) == 0 {
		return "No thinking yet"
	}
	var b strings.Builder
	for _, e := range entries {
		color := roleColors[e.AgentRole]
		if color == "" {
			color = "white"
		}
		b.WriteString(fmt.Sprintf("[%s]%s[-] %s\n", color, e.AgentName, e.Timestamp.Format("15:04:05")))
		b.WriteString("  " + e.ThinkingProcess + "\n")
		for _, insight := range e.Insights {
			b.WriteString("  * " + insight + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderDeliverables(set domain.DeliverableSet) string {
	if len(set) == 0 {
		return "No deliverables yet"
	}
	var b strings.Builder
	for name, agent := range set {
		b.WriteString(fmt.Sprintf("[::b]%s[-:-:-]\n", name))
		final := agent.Final
		if agent.FeedbackIteration != nil {
			final = agent.FeedbackIteration
			b.WriteString("  (updated after feedback)\n")
		}
		if final != nil {
			if final.Deliverable != "" {
				b.WriteString("  " + final.Deliverable + "\n")
			}
			for key, value := range final.KeyOutputs {
				b.WriteString(fmt.Sprintf("  %s: %s\n", strings.ReplaceAll(key, "_", " "), value))
			}
			for _, rec := range final.Recommendations {
				b.WriteString("  -> " + rec + "\n")
			}
			for _, change := range final.ChangesMade {
				b.WriteString("  ~ " + change + "\n")
			}
		}
		for key, value := range agent.Outputs {
			b.WriteString(fmt.Sprintf("  [gray]%s: %s[-]\n", strings.ReplaceAll(key, "_", " "), value))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func waitHealth(baseURL string, timeout time.Duration) error {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/healthz", nil)
		if err == nil {
			resp, err := httpClient.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode < 300 {
					return nil
				}
			}
		}
		time.Sleep(400 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func startEmbeddedServer(addr string, serverBinary string, dbPath string) (*embeddedServer, error) {
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr: %w", err)
	}
	port := parsed.Port()
	if port == "" {
		return nil, fmt.Errorf("addr must include explicit port, got %q", addr)
	}
	addrArg := ":" + port

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	var cmd *exec.Cmd
	if strings.TrimSpace(serverBinary) != "" {
		cmd = exec.Command(serverBinary, "--addr", addrArg, "--db", dbPath)
	} else {
		self, err := os.Executable()
		if err == nil {
			sibling := filepath.Join(filepath.Dir(self), "server")
			if fileExists(sibling) {
				cmd = exec.Command(sibling, "--addr", addrArg, "--db", dbPath)
			}
		}
		if cmd == nil {
			cmd = exec.Command("go", "run", "./cmd/server", "--addr", addrArg, "--db", dbPath)
			cwd, _ := os.Getwd()
			cmd.Dir = cwd
		}
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start server process: %w", err)
	}
	return &embeddedServer{cmd: cmd}, nil
}

func (e *embeddedServer) Stop() {
	if e == nil || e.cmd == nil || e.cmd.Process == nil {
		return
	}
	_ = e.cmd.Process.Kill()
	_, _ = e.cmd.Process.Wait()
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
