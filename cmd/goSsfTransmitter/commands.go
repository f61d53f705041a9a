package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/i2-open/goSsfTransmitter/internal/catalog"
	"github.com/i2-open/goSsfTransmitter/internal/dispatch"
	"github.com/i2-open/goSsfTransmitter/internal/history"
	"github.com/i2-open/goSsfTransmitter/internal/model"
	"github.com/i2-open/goSsfTransmitter/internal/transmitter"
	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
)

type SetCmd struct {
	Field string `arg:"" enum:"domain,issuer,email,provider,risk,key,kid,jwks" help:"One of domain, issuer, email, provider, risk, key (path to a PKCS8 PEM file), kid or jwks"`
	Value string `arg:"" help:"The new value"`
}

func (s *SetCmd) Run(g *Globals) error {
	data := &g.Data
	value := strings.TrimSpace(s.Value)
	switch s.Field {
	case "domain":
		host, err := transmitter.SanitizeHost(value)
		if err != nil {
			return err
		}
		data.OktaDomain = value
		fmt.Println("Events endpoint: " + transmitter.Endpoint(host))
	case "issuer":
		data.Issuer = value
	case "email":
		data.SubjectEmail = value
	case "provider":
		provider, ok := catalog.Lookup(value)
		if !ok {
			return &catalog.LookupError{ProviderID: value}
		}
		data.ProviderId = provider.ID
		if provider.DefaultIssuer != "" {
			data.Issuer = provider.DefaultIssuer
			fmt.Println("Issuer set to " + provider.DefaultIssuer)
		}
	case "risk":
		risk, err := catalog.ParseRiskLevel(value)
		if err != nil {
			return err
		}
		data.Risk = risk
	case "key":
		pemBytes, err := os.ReadFile(value)
		if err != nil {
			return err
		}
		if err = data.SetKeyPem(pemBytes); err != nil {
			return err
		}
	case "kid":
		data.Kid = value
	case "jwks":
		data.JwksUrl = value
	}
	return data.Save(g)
}

type ShowConfigCmd struct{}

func (s *ShowConfigCmd) Run(g *Globals) error {
	fmt.Print(g.Data.String())
	return nil
}

type ShowProvidersCmd struct{}

func (s *ShowProvidersCmd) Run(g *Globals) error {
	for _, provider := range catalog.Providers() {
		fmt.Printf("%-12s %-28s %s\n", provider.ID, provider.Name, provider.DefaultIssuer)
	}
	return nil
}

type ShowEventsCmd struct {
	Provider string `arg:"" optional:"" help:"Provider id (defaults to the configured provider)"`
}

func (s *ShowEventsCmd) Run(g *Globals) error {
	providerId := s.Provider
	if providerId == "" {
		providerId = g.Data.ProviderId
	}
	provider, ok := catalog.Lookup(providerId)
	if !ok {
		return &catalog.LookupError{ProviderID: providerId}
	}
	fmt.Printf("%s (%s)\n", provider.Name, provider.Description)
	for _, event := range provider.Events {
		fmt.Printf("  %-28s %-7s %-9s %s\n", event.ID, event.Severity, event.Category, event.Label)
		fmt.Printf("  %-28s %s\n", "", event.SchemaURI)
	}
	return nil
}

type ShowScenariosCmd struct{}

func (s *ShowScenariosCmd) Run(g *Globals) error {
	for _, scenario := range catalog.Scenarios() {
		fmt.Printf("%s: %s\n  %s\n", scenario.ID, scenario.Name, scenario.Description)
		for i, step := range scenario.Steps {
			fmt.Printf("  %d. %s/%s (%s) %s\n", i+1, step.ProviderID, step.EventID, step.Risk, step.Description)
		}
	}
	return nil
}

type ShowHistoryCmd struct {
	Full  bool `help:"Print complete records including the SET claims"`
	Limit int  `short:"n" default:"20" help:"Maximum number of records to list"`
}

func (s *ShowHistoryCmd) Run(g *Globals) error {
	records := g.Session.History.Records()
	if len(records) > s.Limit && s.Limit > 0 {
		records = records[:s.Limit]
	}
	if s.Full {
		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		g.GetOutputWriter().WriteBytes(out, true)
		return nil
	}
	if len(records) == 0 {
		fmt.Println("No transmissions recorded.")
		return nil
	}
	for _, record := range records {
		fmt.Println(recordLine(record))
	}
	return nil
}

type ShowStatsCmd struct{}

func (s *ShowStatsCmd) Run(g *Globals) error {
	stats := history.Stats(g.Session.History.Records(), g.Session.Started, time.Now())
	fmt.Printf("Sent this session: %d\n", stats.TotalSent)
	fmt.Printf("Succeeded:         %d\n", stats.Succeeded)
	fmt.Printf("Failed:            %d\n", stats.Failed)
	fmt.Printf("Success rate:      %d%%\n", stats.SuccessRate)
	fmt.Printf("Last sent:         %s\n", stats.LastSentText)
	return nil
}

type ShowQueueCmd struct{}

func (s *ShowQueueCmd) Run(g *Globals) error {
	items := g.Session.Queue.Items()
	if len(items) == 0 {
		fmt.Println("Queue is empty.")
		return nil
	}
	for i, item := range items {
		fmt.Println(itemLine(i, len(items), item))
	}
	fmt.Printf("%d pending\n", g.Session.Queue.PendingCount())
	return nil
}

type ShowCmd struct {
	Config    ShowConfigCmd    `cmd:"" help:"Show the transmitter configuration"`
	Providers ShowProvidersCmd `cmd:"" help:"List the simulated providers"`
	Events    ShowEventsCmd    `cmd:"" help:"List the events of a provider"`
	Scenarios ShowScenariosCmd `cmd:"" help:"List the attack scenarios"`
	History   ShowHistoryCmd   `cmd:"" help:"List transmission records, newest first"`
	Stats     ShowStatsCmd     `cmd:"" help:"Show statistics for this session"`
	Queue     ShowQueueCmd     `cmd:"" help:"Show the bulk queue"`
}

type SendCmd struct {
	Provider string `arg:"" help:"Provider id"`
	Event    string `arg:"" help:"Event id"`
	Risk     string `short:"r" help:"Risk level: low, medium or high (defaults to the configured level, then the event severity)"`
	Email    string `short:"e" help:"Subject email (defaults to the configured subject)"`
}

func (s *SendCmd) Run(g *Globals) error {
	sel, err := g.selection(s.Provider, s.Event, s.Risk, s.Email)
	if err != nil {
		return err
	}
	warnMissing(g)
	record, err := g.Session.Dispatcher.SendOne(context.Background(), sel)
	printRecord(record)
	if err != nil {
		return errors.New("transmission failed")
	}
	return nil
}

type PreviewCmd struct {
	Provider string `arg:"" help:"Provider id"`
	Event    string `arg:"" help:"Event id"`
	Risk     string `short:"r" help:"Risk level: low, medium or high"`
	Email    string `short:"e" help:"Subject email"`
}

func (p *PreviewCmd) Run(g *Globals) error {
	sel, err := g.selection(p.Provider, p.Event, p.Risk, p.Email)
	if err != nil {
		return err
	}
	set, _, _, err := g.Session.Pipeline.Build(sel)
	if err != nil {
		return err
	}
	out := transmitter.Preview(set)
	fmt.Println(out)
	g.GetOutputWriter().WriteString(out+"\n", true)
	return nil
}

type CustomCmd struct {
	Schema   string            `required:"" help:"Event schema URI"`
	Admin    string            `help:"Reason shown to administrators"`
	User     string            `help:"Reason shown to the user"`
	Field    map[string]string `help:"Extra payload member as key=value (repeatable)"`
	Provider string            `default:"custom" help:"Provider id recorded for the event"`
	Risk     string            `short:"r" help:"Risk level: low, medium or high"`
	Email    string            `short:"e" help:"Subject email"`
	Preview  bool              `help:"Print the unsigned SET instead of sending it"`
}

func (c *CustomCmd) Run(g *Globals) error {
	event := catalog.NewCustomEvent(c.Schema, c.Admin, c.User)
	sel := model.Selection{
		ProviderId: c.Provider,
		EventId:    event.ID,
		Email:      c.Email,
		Event:      &event,
	}
	if len(c.Field) > 0 {
		sel.Fields = make(map[string]interface{}, len(c.Field))
		for k, v := range c.Field {
			sel.Fields[k] = v
		}
	}
	if c.Risk != "" {
		risk, err := catalog.ParseRiskLevel(c.Risk)
		if err != nil {
			return err
		}
		sel.Risk = risk
	}

	if c.Preview {
		set, _, _, err := g.Session.Pipeline.Build(sel)
		if err != nil {
			return err
		}
		fmt.Println(transmitter.Preview(set))
		return nil
	}
	warnMissing(g)
	record, err := g.Session.Dispatcher.SendOne(context.Background(), sel)
	printRecord(record)
	if err != nil {
		return errors.New("transmission failed")
	}
	return nil
}

type QueueAddCmd struct {
	Provider string `arg:"" help:"Provider id"`
	Event    string `arg:"" help:"Event id"`
	Risk     string `short:"r" help:"Risk level: low, medium or high"`
	Email    string `short:"e" help:"Subject email"`
	Count    int    `short:"c" default:"1" help:"Number of copies to queue"`
	Fake     bool   `help:"Give every copy a random subject email"`
}

func (q *QueueAddCmd) Run(g *Globals) error {
	sel, err := g.selection(q.Provider, q.Event, q.Risk, q.Email)
	if err != nil {
		return err
	}
	if _, _, err = catalog.Resolve(sel.ProviderId, sel.EventId); err != nil {
		return err
	}
	if q.Count < 1 {
		q.Count = 1
	}
	queue := g.Session.Queue
	if q.Fake {
		items, err := queue.AddFake(sel, q.Count)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %d items with generated subjects.\n", len(items))
		return nil
	}
	for i := 0; i < q.Count; i++ {
		if _, err = queue.Add(sel); err != nil {
			return err
		}
	}
	fmt.Printf("Queued %d item(s); %d pending.\n", q.Count, queue.PendingCount())
	return nil
}

type QueueRemoveCmd struct {
	Id string `arg:"" help:"Work item id (see 'show queue')"`
}

func (q *QueueRemoveCmd) Run(g *Globals) error {
	return g.Session.Queue.Remove(q.Id)
}

type QueueClearCmd struct{}

func (q *QueueClearCmd) Run(g *Globals) error {
	if err := g.Session.Queue.Clear(); err != nil {
		return err
	}
	fmt.Println("Queue cleared.")
	return nil
}

type QueueSendCmd struct {
	Delay time.Duration `short:"d" default:"${bulk_delay}" help:"Pause between items"`
}

func (q *QueueSendCmd) Run(g *Globals) error {
	queue := g.Session.Queue
	pending := queue.PendingCount()
	if pending == 0 {
		fmt.Println("Nothing pending in the queue.")
		return nil
	}
	fmt.Printf("Sending %d item(s) with a %s delay. Press Ctrl-C to stop.\n", pending, q.Delay)
	warnMissing(g)

	release := stopOnInterrupt(queue.Stop)
	summary, err := queue.Send(context.Background(), q.Delay, progressPrinter(pending))
	release()
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

type QueueCmd struct {
	Add    QueueAddCmd    `cmd:"" help:"Add events to the queue"`
	Remove QueueRemoveCmd `cmd:"" help:"Remove a pending item"`
	Clear  QueueClearCmd  `cmd:"" help:"Remove every item"`
	Send   QueueSendCmd   `cmd:"" help:"Send all pending items in order"`
}

type ScenarioCmd struct {
	Id    string        `arg:"" help:"Scenario id (see 'show scenarios')"`
	Delay time.Duration `short:"d" default:"${scenario_delay}" help:"Pause after steps that propagate"`
	Email string        `short:"e" help:"Subject email"`
}

func (s *ScenarioCmd) Run(g *Globals) error {
	scenario, ok := catalog.LookupScenario(s.Id)
	if !ok {
		return fmt.Errorf("unknown scenario %q", s.Id)
	}
	fmt.Printf("Running %s (%d steps). Press Ctrl-C to stop.\n", scenario.Name, len(scenario.Steps))
	warnMissing(g)

	runner := g.Session.Scenarios
	release := stopOnInterrupt(runner.Stop)
	summary, err := runner.Run(context.Background(), scenario, s.Email, s.Delay, progressPrinter(len(scenario.Steps)))
	release()
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

type ReplayCmd struct {
	RecordId string `arg:"" help:"Id of the history record to send again"`
}

func (r *ReplayCmd) Run(g *Globals) error {
	record, err := g.Session.Dispatcher.Replay(context.Background(), r.RecordId)
	if errors.Is(err, dispatch.ErrRecordNotFound) {
		return err
	}
	printRecord(record)
	if err != nil {
		return errors.New("transmission failed")
	}
	return nil
}

type HistoryClearCmd struct {
	Force bool `short:"f" help:"Do not ask for confirmation"`
}

func (h *HistoryClearCmd) Run(g *Globals) error {
	if !h.Force && !ConfirmProceed(fmt.Sprintf("Delete %d records? Y|[n] ", g.Session.History.Len())) {
		return nil
	}
	if err := g.Session.ClearHistory(); err != nil {
		return err
	}
	fmt.Println("History cleared.")
	return nil
}

type HistoryExportCmd struct {
	File string `short:"f" type:"path" help:"Export file (defaults to ssf-history-<ms>.json in the current directory)"`
}

func (h *HistoryExportCmd) Run(g *Globals) error {
	fileName := h.File
	if fileName == "" {
		fileName = history.ExportFileName(time.Now())
	}
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	records := g.Session.History.Records()
	if err = history.Export(file, records); err != nil {
		_ = file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	fmt.Printf("Exported %d records to %s\n", len(records), fileName)
	return nil
}

type HistoryCmd struct {
	Clear  HistoryClearCmd  `cmd:"" help:"Delete all transmission records"`
	Export HistoryExportCmd `cmd:"" help:"Write all transmission records to a JSON file"`
}

type KeysGenerateCmd struct {
	Out  string `type:"path" help:"File for the private key PEM (defaults to issuer-<kid>.pem in SSF_HOME)"`
	Jwks string `type:"path" help:"File for the public JWKS (defaults to jwks.json in SSF_HOME)"`
}

func (k *KeysGenerateCmd) Run(g *Globals) error {
	issuerKey, err := goSet.GenerateIssuerKey()
	if err != nil {
		return err
	}
	jwks, err := goSet.PublicJwks(context.Background(), issuerKey.PrivateKey, issuerKey.Kid)
	if err != nil {
		return err
	}

	home := g.Session.Store.Dir()
	pemFile := k.Out
	if pemFile == "" {
		pemFile = filepath.Join(home, "issuer-"+issuerKey.Kid+".pem")
	}
	jwksFile := k.Jwks
	if jwksFile == "" {
		jwksFile = filepath.Join(home, "jwks.json")
	}
	if err = os.WriteFile(pemFile, issuerKey.Pem, 0600); err != nil {
		return err
	}
	if err = os.WriteFile(jwksFile, jwks, 0644); err != nil {
		return err
	}

	if err = g.Data.SetKeyPem(issuerKey.Pem); err != nil {
		return err
	}
	g.Data.Kid = issuerKey.Kid
	if err = g.Data.Save(g); err != nil {
		return err
	}
	fmt.Printf("Generated key %s\n  private key: %s\n  public JWKS: %s\n", issuerKey.Kid, pemFile, jwksFile)
	fmt.Println("Publish the JWKS where Okta can fetch it and register it for your issuer.")
	fmt.Println(string(jwks))
	g.GetOutputWriter().WriteBytes(jwks, true)
	return nil
}

type KeysCmd struct {
	Generate KeysGenerateCmd `cmd:"" help:"Generate an RSA signing key, save it and write its public JWKS"`
}

type TestCmd struct {
	Domain string `arg:"" optional:"" help:"Okta domain (defaults to the configured domain)"`
}

func (t *TestCmd) Run(g *Globals) error {
	domain := t.Domain
	if domain == "" {
		domain = g.Data.OktaDomain
	}
	result := g.Session.Prober.TestConnection(context.Background(), domain)
	if !result.Reachable {
		return fmt.Errorf("not reachable (%d): %s", result.Status, result.Message)
	}
	fmt.Printf("Reachable (HTTP %d): %s\n", result.Status, result.Message)
	return nil
}

type VerifyCmd struct {
	Url string `help:"JWKS URL (defaults to the configured jwks)"`
	Kid string `help:"Key id to look for (defaults to the configured kid)"`
}

func (v *VerifyCmd) Run(g *Globals) error {
	jwksUrl := v.Url
	if jwksUrl == "" {
		jwksUrl = g.Data.JwksUrl
	}
	kid := v.Kid
	if kid == "" {
		kid = g.Data.Kid
	}
	if jwksUrl == "" || kid == "" {
		return errors.New("a JWKS URL and kid are required; use --url and --kid or 'set jwks' and 'set kid'")
	}
	check := g.Session.Prober.VerifyJwks(context.Background(), jwksUrl, kid)
	if !check.Valid {
		if len(check.Kids) > 0 {
			return fmt.Errorf("%s (found: %s)", check.Message, strings.Join(check.Kids, ", "))
		}
		return errors.New(check.Message)
	}
	fmt.Println(check.Message)
	return nil
}

type ExitCmd struct {
}

func (e *ExitCmd) Run(globals *Globals) error {
	err := globals.Data.Save(globals)
	if err != nil {
		fmt.Println(err.Error())
		if ConfirmProceed("Abort exit? Y|[n] ") {
			return nil
		}
	}
	globals.Session.Close()
	os.Exit(0)
	return nil
}

type HelpCmd struct {
	Command []string `arg:"" optional:"" help:"Show help on command."`
}

// Run shows help.
func (h *HelpCmd) Run(realCtx *kong.Context) error {
	ctx, err := kong.Trace(realCtx.Kong, h.Command)
	if err != nil {
		return err
	}
	if ctx.Error != nil {
		return ctx.Error
	}
	err = ctx.PrintUsage(false)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(realCtx.Stdout)
	return nil
}

func ConfirmProceed(msg string) bool {
	if msg != "" {
		fmt.Print(msg)
	} else {
		fmt.Print("Proceed Y|[n]? ")
	}

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.HasPrefix(line, "Y")
}

// selection applies the configured risk level and provider when the command leaves them empty.
func (g *Globals) selection(providerId, eventId, risk, email string) (model.Selection, error) {
	if providerId == "" {
		providerId = g.Data.ProviderId
	}
	sel := model.Selection{
		ProviderId: providerId,
		EventId:    eventId,
		Risk:       g.Data.Risk,
		Email:      email,
	}
	if risk != "" {
		level, err := catalog.ParseRiskLevel(risk)
		if err != nil {
			return sel, err
		}
		sel.Risk = level
	}
	return sel, nil
}

func warnMissing(g *Globals) {
	if missing := g.Data.Missing(); len(missing) > 0 {
		fmt.Println("Warning: configuration incomplete, missing " + strings.Join(missing, ", "))
	}
}

/*
stopOnInterrupt calls stop when the operator presses Ctrl-C. The returned func must be called once the run ends.
*/
func stopOnInterrupt(stop func()) func() {
	signalCh := make(chan os.Signal, 1)
	doneCh := make(chan struct{})
	signal.Notify(signalCh, os.Interrupt)
	go func() {
		select {
		case <-signalCh:
			fmt.Println("\nStopping after the current item...")
			stop()
		case <-doneCh:
		}
	}()
	return func() {
		signal.Stop(signalCh)
		close(doneCh)
	}
}

func progressPrinter(total int) dispatch.Observer {
	return func(p dispatch.Progress) {
		if p.Index < 0 || !p.Item.Status.IsTerminal() {
			return
		}
		line := itemLine(p.Index, total, p.Item)
		if p.Record != nil && p.Record.Response != nil && p.Record.Response.Hint != "" {
			line += "\n      hint: " + p.Record.Response.Hint
		}
		fmt.Println(line)
	}
}

func itemLine(index, total int, item model.WorkItem) string {
	email := item.Email
	if email == "" {
		email = "(configured subject)"
	}
	line := fmt.Sprintf("[%d/%d] %-8s %s %s/%s %s", index+1, total, item.Status, item.Id, item.ProviderId, item.EventId, email)
	if item.Risk != "" {
		line += " " + string(item.Risk)
	}
	if item.Error != "" {
		line += ": " + item.Error
	}
	return line
}

func printSummary(summary dispatch.Summary) {
	fmt.Println(summaryLine(summary))
}

// summaryLine counts only items that were attempted as sent; a stopped run also reports what it skipped.
func summaryLine(summary dispatch.Summary) string {
	line := fmt.Sprintf("Run %s: %d sent, %d succeeded, %d failed",
		summary.State, summary.Sent(), summary.Succeeded, summary.Failed)
	if unsent := summary.Total - summary.Sent(); unsent > 0 {
		line += fmt.Sprintf(", %d not sent", unsent)
	}
	return line
}

func recordLine(record model.TransmissionRecord) string {
	status := 0
	if record.Response != nil {
		status = record.Response.Status
	}
	return fmt.Sprintf("%s  %s  %-7s %3d  %s / %s  %s  %s",
		record.Time().Format("2006-01-02 15:04:05"),
		record.Id,
		record.Status,
		status,
		record.ProviderName,
		record.EventLabel,
		record.UserEmail,
		record.RiskLevel)
}

func printRecord(record *model.TransmissionRecord) {
	if record == nil {
		return
	}
	fmt.Println(recordLine(*record))
	if record.Jti != "" {
		fmt.Println("  jti: " + record.Jti)
	}
	response := record.Response
	if response == nil || record.Succeeded() {
		return
	}
	if response.Error != "" {
		fmt.Println("  error: " + response.Error)
	}
	if response.ErrorDescription != "" {
		fmt.Println("  description: " + response.ErrorDescription)
	}
	if response.Hint != "" {
		fmt.Println("  hint: " + response.Hint)
	}
}
