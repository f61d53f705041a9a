// nolint
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/chzyer/readline"
	"github.com/i2-open/goSsfTransmitter/config"
	"go.uber.org/zap"
)

type ParserData struct {
	parser *kong.Kong
	cli    *CLI
}

type Globals struct {
	Data         ConfigData `kong:"-"`
	Session      *Session   `kong:"-"`
	Output       string     `short:"o" help:"To redirect output to a file" type:"path" `
	AppendOutput bool       `short:"a" default:"false" help:"When true, output to file (--output) will be appended"`
}

type CLI struct {
	Globals
	Set      SetCmd      `cmd:"" help:"Set a transmitter configuration value (domain, issuer, email, provider, risk, key, kid, jwks)"`
	Show     ShowCmd     `cmd:"" help:"Show configuration, the event catalog, history, statistics or the queue"`
	Send     SendCmd     `cmd:"" help:"Sign and send one security event to the configured Okta org"`
	Preview  PreviewCmd  `cmd:"" help:"Show the unsigned SET that would be sent for an event"`
	Custom   CustomCmd   `cmd:"" help:"Send an event with an operator supplied schema URI"`
	Queue    QueueCmd    `cmd:"" help:"Build and send a bulk queue of events"`
	Scenario ScenarioCmd `cmd:"" help:"Run a predefined attack scenario"`
	Replay   ReplayCmd   `cmd:"" help:"Send the event of a history record again"`
	History  HistoryCmd  `cmd:"" help:"Clear or export the transmission history"`
	Keys     KeysCmd     `cmd:"" help:"Generate an issuer signing key and its JWKS"`
	Test     TestCmd     `cmd:"" help:"Check that the Okta security events endpoint is reachable"`
	Verify   VerifyCmd   `cmd:"" help:"Check that the published JWKS contains the configured kid"`
	Exit     ExitCmd     `cmd:"" help:"Exit the shell"`
	Help     HelpCmd     `cmd:"" help:"Show help on a command"`
}

type OutputWriter struct {
	output  *os.File
	isReady bool
	err     error
}

/*
GetOutputWriter returns an output writer for --output. When no output was requested the writer discards everything.
*/
func (g *Globals) GetOutputWriter() *OutputWriter {
	if g.Output == "" {
		return &OutputWriter{
			isReady: false,
		}
	}

	flags := os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	if g.AppendOutput {
		flags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
	}
	file, err := os.OpenFile(g.Output, flags, 0644)
	if err != nil {
		fmt.Println(err.Error())
		return &OutputWriter{
			isReady: false,
			err:     err,
		}
	}
	return &OutputWriter{
		output:  file,
		isReady: true,
	}
}

func (o *OutputWriter) WriteString(msg string, andClose bool) {
	if msg != "" && o.isReady {
		_, _ = o.output.WriteString(msg)
		_ = o.output.Sync()
	}
	if andClose {
		o.Close()
	}
}

func (o *OutputWriter) WriteBytes(msgBytes []byte, andClose bool) {
	if len(msgBytes) != 0 && o.isReady {
		_, _ = o.output.Write(msgBytes)
		_ = o.output.Sync()
	}
	if andClose {
		o.Close()
	}
}

func (o *OutputWriter) Close() {
	if o.isReady {
		o.isReady = false
		_ = o.output.Close()
	}
}

/*
initParser builds the kong grammar and, unless the caller already attached one, a Session from the SSF_
environment. The saved profile is loaded into cli.Data.
*/
func initParser(cli *CLI) (*ParserData, error) {
	if cli == nil {
		cli = &CLI{}
	}

	if cli.Session == nil {
		env, err := config.GetEnvConfig()
		if err != nil {
			fmt.Println("Environment configuration error: " + err.Error())
		}
		logger, err := env.NewLogger()
		if err != nil {
			logger = zap.NewNop()
		}
		cli.Session, err = NewSession(env, logger, nil)
		if err != nil {
			return nil, err
		}
	}

	parser, err := kong.New(cli,
		kong.Name("goSsfTransmitter"),
		kong.Description("Shared Signals Framework event transmitter simulator"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:      true,
			Summary:      true,
			Tree:         true,
			NoAppSummary: false,
		}),
		kong.UsageOnError(),
		kong.Writers(os.Stdout, os.Stdout),

		kong.NoDefaultHelp(),
		kong.Vars{
			"bulk_delay":     cli.Session.Env.BulkDelay.String(),
			"scenario_delay": cli.Session.Env.ScenarioDelay.String(),
		},
		kong.Bind(&cli.Globals),
		kong.Exit(func(int) {}),
	)
	td := ParserData{
		parser: parser,
		cli:    cli,
	}
	fmt.Println("Loading existing configuration...")
	if loadErr := cli.Data.Load(&cli.Globals); loadErr != nil {
		fmt.Println("Configuration not loaded: " + loadErr.Error())
	}

	return &td, err
}

func main() {

	console, err := readline.NewEx(&readline.Config{
		Prompt:                 "ssf> ",
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		panic(err)
	}
	defer func(console *readline.Instance) {
		_ = console.Close()
	}(console)

	td, err := initParser(&CLI{})
	if err != nil {
		fmt.Println(err.Error())
		if td == nil {
			os.Exit(1)
		}
	}
	defer td.cli.Session.Close()

	oneCommand := false
	var initialArgs []string
	if len(os.Args) > 1 {
		initialArgs = os.Args[1:]
		oneCommand = true
	}

	for {
		var args []string
		if len(initialArgs) > 0 {
			args = initialArgs
			initialArgs = []string{}
			_ = console.SaveHistory(strings.Join(args, " "))
		} else {
			line, err := console.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				panic(err)
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			_ = console.SaveHistory(line)
			args = strings.Fields(line)
		}

		var ctx *kong.Context
		ctx, err = td.parser.Parse(args)

		if err != nil {
			// Put out the help text response
			td.parser.Errorf("%s", err.Error())
			if err, ok := err.(*kong.ParseError); ok {
				log.Println(err.Error())
				_ = err.Context.PrintUsage(false)
			}
			continue
		}

		err = ctx.Run(&td.cli.Globals)

		if err != nil {
			td.parser.Errorf("%s", err)
			continue
		}
		if oneCommand {
			return
		}
	}

}
