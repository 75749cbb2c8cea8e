package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/waftester/chatprobe/pkg/account"
	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/classify"
	"github.com/waftester/chatprobe/pkg/cli"
	"github.com/waftester/chatprobe/pkg/config"
	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/duration"
	"github.com/waftester/chatprobe/pkg/httpclient"
	"github.com/waftester/chatprobe/pkg/metrics"
	"github.com/waftester/chatprobe/pkg/probe"
	"github.com/waftester/chatprobe/pkg/report"
	"github.com/waftester/chatprobe/pkg/runner"
	"github.com/waftester/chatprobe/pkg/tracing"
	"github.com/waftester/chatprobe/pkg/transport"
	"github.com/waftester/chatprobe/pkg/ui"
	"github.com/waftester/chatprobe/pkg/websocket"
)

func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	cfg, err := loadConfig("run", args, stderr, nil)
	if err != nil {
		return 0, err
	}
	ops := []string{cfg.Operation}
	if cfg.Then != "" {
		ops = append(ops, cfg.Then)
	}
	return probeOperations(ctx, cfg, ops, stdout, stderr)
}

// probeOperations runs ops in order against one session. Each operation
// after the first runs only when the previous one found something, and
// receives its identifier as {{ .ChatID }}.
func probeOperations(ctx context.Context, cfg config.Config, ops []string, stdout, stderr io.Writer) (int, error) {
	ui.SetNoColor(cfg.NoColor)
	logger := cli.NewLogger(stderr, cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return 0, withCode(defaults.ExitUserError, err)
	}
	table, err := loadTable(cfg.Table)
	if err != nil {
		return 0, err
	}
	for _, op := range ops {
		if _, err := table.Lookup(op); err != nil {
			return 0, err
		}
	}
	session, err := cfg.Session()
	if err != nil {
		return 0, err
	}

	shutdown, err := tracing.Setup(ctx, tracing.Options{Endpoint: cfg.OTelEndpoint, Insecure: cfg.OTelInsecure})
	if err != nil {
		return 0, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), duration.TelemetryShutdown)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("flushing traces", slog.String("error", err.Error()))
		}
	}()

	rec, err := metrics.NewRecorder()
	if err != nil {
		return 0, err
	}
	if cfg.MetricsAddr != "" {
		srv, err := metrics.Serve(cfg.MetricsAddr, rec, logger)
		if err != nil {
			return 0, withCode(defaults.ExitUserError, err)
		}
		defer srv.Close()
	}

	client, err := httpclient.New(httpclient.Config{InsecureSkipVerify: cfg.Insecure, Proxy: cfg.Proxy})
	if err != nil {
		return 0, withCode(defaults.ExitUserError, err)
	}
	dialer := websocket.Dialer{InsecureSkipVerify: cfg.Insecure, Proxy: cfg.Proxy}

	if cfg.PeerUserID == "" && cfg.BootstrapPeer {
		peer, err := bootstrapPeer(ctx, client, cfg.BaseURL, logger)
		if err != nil {
			return 0, err
		}
		cfg.PeerUserID = peer.UserID
	}

	if format == report.FormatConsole {
		printRunBanner(cfg, session, ops)
	}

	mux := &transport.Mux{
		HTTP:    transport.NewHTTP(client),
		Connect: transport.NewConnect(dialer),
	}
	var stream *websocket.Conn
	defer func() {
		if stream != nil {
			_ = stream.Close()
		}
	}()

	var last *runner.Report
	for i, op := range ops {
		vars := cfg.TemplateVars(session.UserID(), uuid.NewString())
		cands, rules, err := prepare(table, op, cfg, vars)
		if err != nil {
			return 0, err
		}

		if stream == nil && hasKind(cands, candidate.KindMessage) {
			stream = openStream(ctx, dialer, session, vars.UserID, logger)
			if stream != nil {
				mux.Message = transport.NewMessage(stream, logger)
			}
		}

		r := runner.New(mux)
		r.Rules = rules
		r.Timeout = cfg.Timeout
		r.KindTimeouts = map[candidate.Kind]time.Duration{candidate.KindMessage: cfg.MessageTimeout}
		r.Logger = logger
		r.OnAttempt = rec.ObserveAttempt
		if cfg.Rate > 0 {
			r.Limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
		}

		rep, err := r.Run(ctx, op, session, cands)
		if err != nil {
			return 0, err
		}
		rec.ObserveRun(rep)
		if err := report.Write(stdout, format, rep); err != nil {
			return 0, fmt.Errorf("writing report: %w", err)
		}
		last = rep

		if rep.Outcome() != runner.OutcomeFound {
			if i < len(ops)-1 {
				logger.Warn("skipping follow-up operations", slog.Any("skipped", ops[i+1:]))
			}
			break
		}
		if rep.Identifier != "" {
			cfg.ChatID = rep.Identifier
		}
	}

	if cfg.SaveID != "" && last.Outcome() == runner.OutcomeFound && last.Identifier != "" {
		if err := os.WriteFile(cfg.SaveID, []byte(last.Identifier+"\n"), 0o600); err != nil {
			return 0, fmt.Errorf("saving identifier: %w", err)
		}
		logger.Info("identifier saved", slog.String("path", cfg.SaveID))
	}
	return outcomeCode(last.Outcome()), nil
}

// prepare renders an operation's candidates and picks its classifier
// rules. The table's extraction order applies unless -extract was given.
func prepare(table *candidate.Table, op string, cfg config.Config, vars candidate.Vars) ([]candidate.Candidate, classify.Rules, error) {
	operation, err := table.Lookup(op)
	if err != nil {
		return nil, classify.Rules{}, err
	}
	rules := cfg.Rules()
	if slices.Equal(cfg.Extract, classify.DefaultExtract) {
		rules = rules.WithExtract(operation.Extract)
	}
	cands, err := table.Generate(op, vars)
	if err != nil {
		return nil, rules, err
	}
	if len(cands) > defaults.MaxCandidates {
		return nil, rules, usageError("operation %q has %d candidates, more than %d", op, len(cands), defaults.MaxCandidates)
	}
	return cands, rules, nil
}

func hasKind(cands []candidate.Candidate, kind candidate.Kind) bool {
	return slices.ContainsFunc(cands, func(c candidate.Candidate) bool { return c.Kind == kind })
}

// openStream connects the chat channel message candidates are sent over.
// A failed connect is not fatal: message candidates then fail as transport
// failures and the report says why.
func openStream(ctx context.Context, dialer websocket.Dialer, session *probe.Session, userID string, logger *slog.Logger) *websocket.Conn {
	path := defaults.PathWebSocket
	if userID != "" {
		path += "/" + userID
	} else {
		logger.Warn("credential carries no user id, connecting without one (set -var user_id=...)")
	}

	dctx, cancel := context.WithTimeout(ctx, duration.WSHandshake)
	defer cancel()
	conn, resp, err := dialer.Dial(dctx, session.WebSocketURL(path), session.AuthHeader())
	if err != nil {
		msg := err.Error()
		if body := websocket.HandshakeBody(resp); body != "" {
			msg += ": " + body
		}
		ui.PrintWarning("message stream unavailable: " + msg)
		logger.Warn("message stream unavailable", slog.String("path", path), slog.String("error", msg))
		return nil
	}
	logger.Debug("message stream open", slog.String("path", path))
	return conn
}

// bootstrapPeer signs up and logs in a throwaway account to act as the
// other chat participant.
func bootstrapPeer(ctx context.Context, client *http.Client, baseURL string, logger *slog.Logger) (*account.Account, error) {
	c, err := account.New(client, baseURL, account.WithLogger(logger))
	if err != nil {
		return nil, withCode(defaults.ExitUserError, err)
	}
	peer, err := c.Bootstrap(ctx, account.Generate("peer"))
	if err != nil {
		return nil, fmt.Errorf("bootstrapping peer account: %w", err)
	}
	ui.PrintInfo(fmt.Sprintf("peer account %s (user id %s)", peer.Email, peer.UserID))
	return peer, nil
}

func printRunBanner(cfg config.Config, session *probe.Session, ops []string) {
	ui.PrintBanner()
	opts := map[string]string{
		"Target":    session.BaseURL(),
		"WebSocket": session.WSBaseURL(),
		"Operation": strings.Join(ops, " -> "),
		"Timeout":   cfg.Timeout.String() + " (message " + cfg.MessageTimeout.String() + ")",
		"Budget":    strconv.Itoa(cfg.Budget),
		"Output":    cfg.Format,
	}
	if id := session.UserID(); id != "" {
		opts["User"] = id
	}
	if cfg.PeerUserID != "" {
		opts["Peer"] = cfg.PeerUserID
	}
	if cfg.Rate > 0 {
		opts["Rate"] = strconv.FormatFloat(cfg.Rate, 'f', -1, 64) + "/s"
	}
	if cfg.Proxy != "" {
		opts["Proxy"] = cfg.Proxy
	}
	ui.PrintConfigBanner(opts)
}
