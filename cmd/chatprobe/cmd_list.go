package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/waftester/chatprobe/pkg/candidate"
	"github.com/waftester/chatprobe/pkg/config"
	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/jsonutil"
	"github.com/waftester/chatprobe/pkg/jwt"
	"github.com/waftester/chatprobe/pkg/report"
)

// operationSummary is one row of 'list' without -op.
type operationSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Candidates  int      `json:"candidates"`
	Kinds       []string `json:"kinds"`
}

func runList(args []string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig("list", args, stderr, nil)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return withCode(defaults.ExitUserError, err)
	}
	table, err := loadTable(cfg.Table)
	if err != nil {
		return err
	}

	if cfg.Operation == "" {
		return writeOperations(stdout, format, summarize(table))
	}
	cands, err := table.Generate(cfg.Operation, listVars(cfg))
	if err != nil {
		return err
	}
	return writeCandidates(stdout, format, cands)
}

func summarize(t *candidate.Table) []operationSummary {
	out := make([]operationSummary, 0, len(t.Operations))
	for _, op := range t.Operations {
		var kinds []string
		for _, c := range op.Candidates {
			k := string(c.Kind)
			if !slices.Contains(kinds, k) {
				kinds = append(kinds, k)
			}
		}
		out = append(out, operationSummary{
			Name:        op.Name,
			Description: op.Description,
			Candidates:  len(op.Candidates),
			Kinds:       kinds,
		})
	}
	return out
}

// listVars fills unknown template variables with visible placeholders so
// candidates render without a backend or credential.
func listVars(cfg config.Config) candidate.Vars {
	userID := ""
	if cfg.Token != "" {
		userID, _ = jwt.UserIDFromToken(cfg.Token)
	}
	v := cfg.TemplateVars(userID, "<random_id>")
	placeholder := func(s *string, name string) {
		if *s == "" {
			*s = "<" + name + ">"
		}
	}
	placeholder(&v.UserID, "user_id")
	placeholder(&v.PeerUserID, "peer_user_id")
	placeholder(&v.ChatID, "chat_id")
	placeholder(&v.Token, "token")
	return v
}

func writeOperations(w io.Writer, format report.Format, ops []operationSummary) error {
	if format == report.FormatJSON {
		return encodeJSON(w, ops)
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Operation", "Candidates", "Kinds", "Description"})
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, op := range ops {
		t.Append([]string{op.Name, strconv.Itoa(op.Candidates), strings.Join(op.Kinds, ","), op.Description})
	}
	t.Render()
	return nil
}

func writeCandidates(w io.Writer, format report.Format, cands []candidate.Candidate) error {
	if format == report.FormatJSON {
		return encodeJSON(w, cands)
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"#", "Candidate", "Kind", "Request", "Payload"})
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, c := range cands {
		t.Append([]string{strconv.Itoa(c.Index + 1), c.Name, string(c.Kind), c.Label(), payload(c)})
	}
	t.Render()
	return nil
}

// payload is the compact JSON a candidate sends, if any.
func payload(c candidate.Candidate) string {
	v := c.Body
	if c.Kind == candidate.KindMessage {
		v = c.Data
	}
	if v == nil {
		return ""
	}
	data, err := jsonutil.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func encodeJSON(w io.Writer, v any) error {
	enc := jsonutil.NewEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(v)
}
