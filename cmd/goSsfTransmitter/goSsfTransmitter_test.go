package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/i2-open/goSsfTransmitter/config"
	"github.com/i2-open/goSsfTransmitter/internal/dispatch"
	"github.com/i2-open/goSsfTransmitter/internal/model"
	"github.com/i2-open/goSsfTransmitter/internal/receiver"
	"github.com/i2-open/goSsfTransmitter/internal/store"
	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var testLog = log.New(os.Stdout, "TOOL-TEST: ", log.Ldate|log.Ltime)

const testIssuer = "https://falcon.crowdstrike.com"

type toolSuite struct {
	suite.Suite
	pd      *ParserData
	testDir string
	key     *goSet.IssuerKey
	pemFile string
	srv     *httptest.Server
	app     *receiver.Application
	host    string
}

func (suite *toolSuite) SetupSuite() {
	t := suite.T()
	dir, err := os.MkdirTemp(os.TempDir(), "goSsf-*")
	require.NoError(t, err)
	suite.testDir = dir

	suite.key, err = goSet.GenerateIssuerKey()
	require.NoError(t, err)
	suite.pemFile = filepath.Join(dir, "issuer.pem")
	require.NoError(t, os.WriteFile(suite.pemFile, suite.key.Pem, 0600))

	jwksJSON, err := goSet.PublicJwks(context.Background(), suite.key.PrivateKey, suite.key.Kid)
	require.NoError(t, err)
	jwks, err := goSet.NewJwksFromJSON(jwksJSON)
	require.NoError(t, err)

	suite.srv = httptest.NewUnstartedServer(nil)
	suite.host = suite.srv.Listener.Addr().String()
	suite.app = receiver.NewApplication(receiver.Config{
		Issuer:        testIssuer,
		Audience:      "https://" + suite.host,
		Jwks:          jwks,
		JwksJSON:      jwksJSON,
		RatePerMinute: -1,
	})
	suite.srv.Config.Handler = suite.app.Router
	suite.srv.StartTLS()

	env := config.Config{
		Home:          filepath.Join(dir, "home"),
		Issuer:        "https://my-local-transmitter.com",
		SubjectEmail:  "test-user@example.com",
		HistoryLimit:  100,
		BulkDelay:     time.Millisecond,
		ScenarioDelay: time.Millisecond,
	}
	session, err := NewSession(env, zap.NewNop(), suite.srv.Client())
	require.NoError(t, err)

	cli := &CLI{}
	cli.Session = session
	suite.pd, err = initParser(cli)
	require.NoError(t, err)
	testLog.Println("Test working directory: " + dir)
}

func (suite *toolSuite) TearDownSuite() {
	suite.pd.cli.Session.Close()
	suite.srv.Close()
	_ = os.RemoveAll(suite.testDir)
}

func (suite *toolSuite) executeCommand(cmd string, confirm bool) ([]byte, error) {
	args := strings.Split(cmd, " ")
	var ctx *kong.Context
	ctx, err := suite.pd.parser.Parse(args)

	if err != nil {
		suite.pd.parser.Errorf("%s", err.Error())
		if err, ok := err.(*kong.ParseError); ok {
			log.Println(err.Error())
			_ = err.Context.PrintUsage(false)
		}
		return nil, err
	}

	output := os.Stdout
	input := os.Stdin
	r, w, _ := os.Pipe()
	os.Stdout = w
	resultCh := make(chan []byte)
	go func() {
		resultBytes, _ := io.ReadAll(r)
		resultCh <- resultBytes
	}()

	var ir, iw *os.File
	if confirm {
		ir, iw, _ = os.Pipe()
		os.Stdin = ir
		_, _ = iw.Write([]byte("Y\n"))
		_ = iw.Close()
	}

	err = ctx.Run(&suite.pd.cli.Globals)
	if confirm {
		os.Stdin = input
		_ = ir.Close()
	}
	_ = w.Close()
	os.Stdout = output

	resultBytes := <-resultCh
	_ = r.Close()

	return resultBytes, err
}

func (suite *toolSuite) Test01_SetConfig() {
	t := suite.T()
	for _, cmd := range []string{
		"set domain " + suite.host,
		"set provider crowdstrike",
		"set email alice@example.com",
		"set key " + suite.pemFile,
		"set kid " + suite.key.Kid,
		"set jwks https://" + suite.host + receiver.JwksPath,
	} {
		res, err := suite.executeCommand(cmd, false)
		assert.NoError(t, err, cmd)
		testLog.Printf("%s", res)
	}

	data := suite.pd.cli.Data
	assert.Equal(t, testIssuer, data.Issuer, "provider selection sets its default issuer")
	assert.Equal(t, "crowdstrike", data.ProviderId)
	assert.Empty(t, data.Missing())

	var saved ConfigData
	found, err := suite.pd.cli.Session.Store.Get(store.KeyConfig, &saved)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, suite.key.Kid, saved.Kid)
	assert.Equal(t, string(suite.key.Pem), saved.KeyPem)

	res, err := suite.executeCommand("show config", false)
	assert.NoError(t, err)
	assert.Contains(t, string(res), "https://"+suite.host+"/security/api/v1/security-events")

	_, err = suite.executeCommand("set risk extreme", false)
	assert.Error(t, err)
	_, err = suite.executeCommand("set provider nobody", false)
	assert.Error(t, err)
	_, err = suite.executeCommand("set domain https://user@bad.example.com", false)
	assert.Error(t, err)
}

func (suite *toolSuite) Test02_ShowCatalog() {
	t := suite.T()
	res, err := suite.executeCommand("show providers", false)
	assert.NoError(t, err)
	assert.Contains(t, string(res), "crowdstrike")
	assert.Contains(t, string(res), "netskope")

	res, err = suite.executeCommand("show events zscaler", false)
	assert.NoError(t, err)
	assert.Contains(t, string(res), "dlp-violation")

	res, err = suite.executeCommand("show scenarios", false)
	assert.NoError(t, err)
	assert.Contains(t, string(res), "risk-escalation")
	assert.Contains(t, string(res), "1. crowdstrike/malware-detected (high) Falcon finds malware on the user's laptop.")
}

func (suite *toolSuite) Test03_Preview() {
	t := suite.T()
	res, err := suite.executeCommand("preview crowdstrike malware-detected --risk=medium", false)
	assert.NoError(t, err)
	out := string(res)
	assert.Contains(t, out, "<generated-uuid>")
	assert.Contains(t, out, "https://schemas.okta.com/secevent/okta/event-type/user-risk-change")
	assert.Contains(t, out, "\"current_level\": \"medium\"")
	assert.Empty(t, suite.app.Received(), "preview does not transmit")
}

func (suite *toolSuite) Test04_Send() {
	t := suite.T()
	res, err := suite.executeCommand("send crowdstrike malware-detected --risk=high", false)
	assert.NoError(t, err)
	testLog.Printf("%s", res)
	assert.Contains(t, string(res), "success")

	received := suite.app.Received()
	require.Len(t, received, 1)
	records := suite.pd.cli.Session.History.Records()
	require.Len(t, records, 1)
	assert.Equal(t, received[0].Jti, records[0].Jti)
	assert.Equal(t, "alice@example.com", records[0].UserEmail)

	var saved []model.TransmissionRecord
	found, err := suite.pd.cli.Session.Store.Get(store.KeyHistory, &saved)
	require.NoError(t, err)
	assert.True(t, found, "history is saved after each send")
	assert.Len(t, saved, 1)
}

func (suite *toolSuite) Test05_SendRejected() {
	t := suite.T()
	_, err := suite.executeCommand("set issuer https://somebody-else.example.com", false)
	require.NoError(t, err)

	res, err := suite.executeCommand("send crowdstrike malware-detected", false)
	assert.Error(t, err)
	out := string(res)
	assert.Contains(t, out, "invalid_issuer")
	assert.Contains(t, out, "hint:")

	_, err = suite.executeCommand("set issuer "+testIssuer, false)
	require.NoError(t, err)

	_, err = suite.executeCommand("send crowdstrike not-an-event", false)
	assert.Error(t, err)
	records := suite.pd.cli.Session.History.Records()
	require.NotEmpty(t, records)
	assert.Equal(t, model.RecordError, records[0].Status)
	assert.Equal(t, 0, records[0].Response.Status, "catalog misses never reach the network")
}

func (suite *toolSuite) Test06_Custom() {
	t := suite.T()
	before := len(suite.app.Received())
	res, err := suite.executeCommand("custom --schema=https://example.com/secevent/custom/risk --admin=Admin --user=User --field=ticket=INC-1", false)
	assert.NoError(t, err)
	testLog.Printf("%s", res)
	received := suite.app.Received()
	require.Len(t, received, before+1)
	payload, ok := received[len(received)-1].Set.Events["https://example.com/secevent/custom/risk"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "INC-1", payload["ticket"])
}

func (suite *toolSuite) Test07_Queue() {
	t := suite.T()
	before := len(suite.app.Received())

	_, err := suite.executeCommand("queue add zscaler dlp-violation --count=3 --fake", false)
	assert.NoError(t, err)
	_, err = suite.executeCommand("queue add crowdstrike ioc-match", false)
	assert.NoError(t, err)
	assert.Equal(t, 4, suite.pd.cli.Session.Queue.PendingCount())

	items := suite.pd.cli.Session.Queue.Items()
	_, err = suite.executeCommand("queue remove "+items[3].Id, false)
	assert.NoError(t, err)

	res, err := suite.executeCommand("show queue", false)
	assert.NoError(t, err)
	assert.Contains(t, string(res), "3 pending")

	res, err = suite.executeCommand("queue send --delay=1ms", false)
	assert.NoError(t, err)
	testLog.Printf("%s", res)
	assert.Contains(t, string(res), "3 sent, 3 succeeded, 0 failed")
	assert.Len(t, suite.app.Received(), before+3)
	assert.Equal(t, 0, suite.pd.cli.Session.Queue.PendingCount())

	res, err = suite.executeCommand("queue send", false)
	assert.NoError(t, err)
	assert.Contains(t, string(res), "Nothing pending")

	_, err = suite.executeCommand("queue clear", false)
	assert.NoError(t, err)
	assert.Empty(t, suite.pd.cli.Session.Queue.Items())
}

func (suite *toolSuite) Test08_Scenario() {
	t := suite.T()
	before := len(suite.app.Received())
	res, err := suite.executeCommand("scenario risk-escalation --delay=1ms", false)
	assert.NoError(t, err)
	testLog.Printf("%s", res)
	assert.Contains(t, string(res), "Run completed: 3 sent, 3 succeeded")
	assert.Len(t, suite.app.Received(), before+3)

	exec := suite.pd.cli.Session.Scenarios.Execution()
	assert.Equal(t, "risk-escalation", exec.ScenarioId)
	assert.False(t, exec.Running)
	assert.Equal(t, []model.ItemStatus{model.ItemSuccess, model.ItemSuccess, model.ItemSuccess}, exec.Steps)

	_, err = suite.executeCommand("scenario no-such-scenario", false)
	assert.Error(t, err)
}

func (suite *toolSuite) Test09_Replay() {
	t := suite.T()
	records := suite.pd.cli.Session.History.Records()
	require.NotEmpty(t, records)
	source := records[0]

	_, err := suite.executeCommand("replay "+source.Id, false)
	assert.NoError(t, err)
	replayed := suite.pd.cli.Session.History.Records()[0]
	assert.NotEqual(t, source.Id, replayed.Id)
	assert.NotEqual(t, source.Jti, replayed.Jti)
	assert.Equal(t, source.EventId, replayed.EventId)
	assert.Equal(t, source.RiskLevel, replayed.RiskLevel)

	_, err = suite.executeCommand("replay 0000000000000000000000000", false)
	assert.Error(t, err)
}

func (suite *toolSuite) Test10_HistoryAndStats() {
	t := suite.T()
	res, err := suite.executeCommand("show stats", false)
	assert.NoError(t, err)
	out := string(res)
	assert.Contains(t, out, "Last sent:         just now")
	assert.Regexp(t, `Failed:\s+2`, out)

	res, err = suite.executeCommand("show history -n 2", false)
	assert.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(res)), "\n"), 2)

	exportFile := filepath.Join(suite.testDir, "export.json")
	_, err = suite.executeCommand("history export --file="+exportFile, false)
	assert.NoError(t, err)
	exported, err := os.ReadFile(exportFile)
	require.NoError(t, err)
	var records []model.TransmissionRecord
	require.NoError(t, json.Unmarshal(exported, &records))
	assert.Len(t, records, suite.pd.cli.Session.History.Len())
}

func (suite *toolSuite) Test11_Probes() {
	t := suite.T()
	res, err := suite.executeCommand("test", false)
	assert.NoError(t, err)
	assert.Contains(t, string(res), "Reachable")

	res, err = suite.executeCommand("verify", false)
	assert.NoError(t, err)
	assert.Contains(t, string(res), "kid matches")

	_, err = suite.executeCommand("verify --kid=unknown-kid", false)
	assert.Error(t, err)
}

func (suite *toolSuite) Test12_KeysGenerate() {
	t := suite.T()
	pemFile := filepath.Join(suite.testDir, "generated.pem")
	jwksFile := filepath.Join(suite.testDir, "generated-jwks.json")
	_, err := suite.executeCommand(fmt.Sprintf("keys generate --out=%s --jwks=%s", pemFile, jwksFile), false)
	assert.NoError(t, err)

	data := suite.pd.cli.Data
	assert.NotEqual(t, suite.key.Kid, data.Kid)
	pemBytes, err := os.ReadFile(pemFile)
	require.NoError(t, err)
	assert.Equal(t, string(pemBytes), data.KeyPem)

	jwksBytes, err := os.ReadFile(jwksFile)
	require.NoError(t, err)
	kids, ok, err := goSet.JwksKids(jwksBytes)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{data.Kid}, kids)

	// The receiver still trusts only the original key.
	res, err := suite.executeCommand("send crowdstrike malware-detected", false)
	assert.Error(t, err)
	assert.Contains(t, string(res), "invalid_key")
}

func (suite *toolSuite) Test13_HistoryClear() {
	t := suite.T()
	_, err := suite.executeCommand("history clear", true)
	assert.NoError(t, err)
	assert.Equal(t, 0, suite.pd.cli.Session.History.Len())

	var saved []model.TransmissionRecord
	found, err := suite.pd.cli.Session.Store.Get(store.KeyHistory, &saved)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestSummaryLine(t *testing.T) {
	assert.Equal(t, "Run completed: 3 sent, 2 succeeded, 1 failed",
		summaryLine(dispatch.Summary{Total: 3, Succeeded: 2, Failed: 1, State: dispatch.RunCompleted}))
	assert.Equal(t, "Run stopped: 2 sent, 1 succeeded, 1 failed, 3 not sent",
		summaryLine(dispatch.Summary{Total: 5, Succeeded: 1, Failed: 1, State: dispatch.RunStopped}))
	assert.Equal(t, "Run stopped: 0 sent, 0 succeeded, 0 failed, 2 not sent",
		summaryLine(dispatch.Summary{Total: 2, State: dispatch.RunStopped}))
}

func TestTool(t *testing.T) {
	s := toolSuite{}
	suite.Run(t, &s)
	testLog.Println("** TEST COMPLETE **")
}
