package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/secrets"
	"github.com/lexicon-labs/lexicon-cli/internal/sections"
)

type cliResult struct {
	stdout  string
	stderr  string
	baseURL string
	token   string
	err     error
}

// runCLI executes the root command against fake, with an empty config
// file, no environment and no keyring.
func runCLI(t *testing.T, fake api.LexiconAPI, stdin string, args ...string) cliResult {
	t.Helper()
	return runCLIWithStore(t, fake, nil, stdin, args...)
}

// runCLIWithStore is runCLI with store standing in for the keyring.
func runCLIWithStore(t *testing.T, fake api.LexiconAPI, store secrets.Store, stdin string, args ...string) cliResult {
	t.Helper()
	restore := snapshotCLIState()
	defer restore()

	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	in := strings.NewReader(stdin)

	rootCmd.SetOut(out)
	rootCmd.SetErr(errBuf)
	rootCmd.SetIn(in)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	envGet = func(string) string { return "" }
	openSecretsStore = func() (secrets.Store, error) {
		if store == nil {
			return nil, errors.New("no keyring in tests")
		}
		return store, nil
	}

	var res cliResult
	newClientFunc = func(baseURL, token string, opts ...api.ClientOption) api.LexiconAPI {
		res.baseURL = baseURL
		res.token = token
		return fake
	}

	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	res.err = ExecuteContext(context.Background())
	res.stdout = out.String()
	res.stderr = errBuf.String()
	return res
}

func sampleDocuments() []sections.FlatSection {
	return []sections.FlatSection{
		{ID: "heirs", SubsectionNumber: "2.1", MainSection: "Inheritance", Section: "Succession", Preview: "The eldest son inherits"},
		{ID: "petty", SubsectionNumber: "1.1.1", MainSection: "Crimes", Section: "Petty theft", Preview: "Small thefts are punished"},
		{ID: "theft", SubsectionNumber: "1.1", MainSection: "Crimes", Section: "Theft", Preview: "Whoever steals"},
		{ID: "orphan", SubsectionNumber: "3.4.1", MainSection: "Lost", Preview: "No parent"},
	}
}

func documentsClient() *fakeClient {
	return &fakeClient{
		ListDocumentsFunc: func() (*api.DocumentListResponse, error) {
			docs := sampleDocuments()
			return &api.DocumentListResponse{Total: len(docs), Documents: docs}, nil
		},
	}
}

func TestCLIHarnessDocsListJSON(t *testing.T) {
	res := runCLI(t, documentsClient(), "",
		"--output", "json", "--token", "tok", "--api-url", "http://lexicon.test", "docs", "list", "--main", "1")
	if res.err != nil {
		t.Fatalf("execute: %v (stderr %q)", res.err, res.stderr)
	}

	if res.baseURL != "http://lexicon.test" {
		t.Fatalf("expected base url 'http://lexicon.test', got %q", res.baseURL)
	}
	if res.token != "tok" {
		t.Fatalf("expected token 'tok', got %q", res.token)
	}

	var list struct {
		Total     int `json:"total"`
		Documents []struct {
			ID  string `json:"id"`
			Key string `json:"subsection_number"`
		} `json:"documents"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &list); err != nil {
		t.Fatalf("parse output: %v (%q)", err, res.stdout)
	}
	if list.Total != 2 || len(list.Documents) != 2 {
		t.Fatalf("expected 2 documents under main section 1, got %+v", list)
	}
	if list.Documents[0].Key != "1.1" || list.Documents[1].Key != "1.1.1" {
		t.Fatalf("expected key order, got %+v", list.Documents)
	}
	if res.stderr != "" {
		t.Fatalf("expected empty stderr, got %q", res.stderr)
	}
}

func TestCLIHarnessDefaultsWithoutCredentials(t *testing.T) {
	res := runCLI(t, documentsClient(), "", "health")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}
	if res.baseURL != api.DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", res.baseURL)
	}
	if res.token != "" {
		t.Fatalf("expected no token, got %q", res.token)
	}
	// Non-terminal stdout defaults to JSON.
	if !strings.Contains(res.stdout, `"status": "ok"`) {
		t.Fatalf("expected JSON health output, got %q", res.stdout)
	}
}

func TestCLIHarnessDocsTreeText(t *testing.T) {
	res := runCLI(t, documentsClient(), "", "-o", "text", "--no-color", "docs", "tree", "--expand-all")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}

	want := strings.Join([]string{
		"▾ 1. Crimes",
		"  ▾ 1.1. Whoever steals",
		"      1.1.1. Small thefts are punished",
		"▾ 2. Inheritance",
		"    2.1. The eldest son inherits",
		"  3. Lost",
		"",
	}, "\n")
	if res.stdout != want {
		t.Fatalf("unexpected tree:\n%s\nwant:\n%s", res.stdout, want)
	}
}

func TestCLIHarnessDocsTreeSelectShowsDocument(t *testing.T) {
	fake := documentsClient()
	fake.GetDocumentFunc = func(id string) (*api.DocumentDetail, error) {
		if id != "petty" {
			t.Errorf("unexpected document id %q", id)
		}
		return &api.DocumentDetail{
			ID:   id,
			Text: "Small thefts are punished by the loss of a finger.",
			Metadata: api.DocumentMetadata{
				Section:          "Petty theft",
				MainSection:      "Crimes",
				SubsectionNumber: "1.1.1",
			},
		}, nil
	}

	res := runCLI(t, fake, "", "-o", "text", "--no-color", "docs", "tree", "--select", "1.1.1")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}

	if !strings.Contains(res.stdout, "  ▾ 1.1. Whoever steals\n") {
		t.Fatalf("expected the path to the selection to be open, got %q", res.stdout)
	}
	if !strings.Contains(res.stdout, "      1.1.1. Small thefts are punished *\n") {
		t.Fatalf("expected the selected row to be marked, got %q", res.stdout)
	}
	if !strings.Contains(res.stdout, "1.1.1 Petty theft (Crimes)\n\nSmall thefts are punished by the loss of a finger.\n") {
		t.Fatalf("expected selected document text, got %q", res.stdout)
	}
	if strings.Contains(res.stdout, "2.1.") {
		t.Fatalf("expected other main sections to stay collapsed, got %q", res.stdout)
	}
}

func TestCLIHarnessDocsTreeJSONForest(t *testing.T) {
	res := runCLI(t, documentsClient(), "", "-o", "json", "docs", "tree", "--preview-length", "5")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}

	var forest []sections.TreeNode
	if err := json.Unmarshal([]byte(res.stdout), &forest); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(forest) != 3 {
		t.Fatalf("expected 3 main sections, got %d", len(forest))
	}
	if got := forest[0].Children[0].Label; got != "Whoev..." {
		t.Fatalf("expected truncated label, got %q", got)
	}
	if len(forest[2].Children) != 0 {
		t.Fatalf("expected orphan to be dropped, got %+v", forest[2])
	}
}

func TestCLIHarnessDocsTreeStrictRejectsDuplicates(t *testing.T) {
	fake := &fakeClient{
		ListDocumentsFunc: func() (*api.DocumentListResponse, error) {
			return &api.DocumentListResponse{Documents: []sections.FlatSection{
				{ID: "a", SubsectionNumber: "1.1", MainSection: "Crimes"},
				{ID: "b", SubsectionNumber: "1.1", MainSection: "Crimes"},
			}}, nil
		},
	}

	res := runCLI(t, fake, "", "-o", "json", "docs", "tree", "--strict")
	if res.err == nil {
		t.Fatal("expected error for duplicate keys")
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(res.stderr), &envelope); err != nil {
		t.Fatalf("parse error envelope: %v (%q)", err, res.stderr)
	}
	if envelope.Error.Type != "validation" || !strings.Contains(envelope.Error.Message, "1.1") {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
}

func TestCLIHarnessDocsTreeUnknownExpand(t *testing.T) {
	res := runCLI(t, documentsClient(), "", "-o", "text", "docs", "tree", "--expand", "9.9")
	var notFound api.NotFoundError
	if !errors.As(res.err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", res.err)
	}
	if !strings.Contains(res.stderr, "9.9") {
		t.Fatalf("expected error on stderr, got %q", res.stderr)
	}
}

func TestCLIHarnessAskLinksCitations(t *testing.T) {
	fake := documentsClient()
	fake.QueryFunc = func(q string) (*api.QueryOutput, error) {
		if q != "what happens to thieves" {
			t.Errorf("unexpected question %q", q)
		}
		return &api.QueryOutput{
			Query:    q,
			Response: "They lose a finger.",
			Citations: []api.Citation{
				{Source: "Petty theft", Text: "Small thefts are punished"},
				{Source: "Unknown law", Text: "?"},
			},
		}, nil
	}

	res := runCLI(t, fake, "", "-o", "json", "ask", "what", "happens", "to", "thieves")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}

	var answer answerOutput
	if err := json.Unmarshal([]byte(res.stdout), &answer); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if answer.Response != "They lose a finger." || len(answer.Citations) != 2 {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if answer.Citations[0].SectionNumber != "1.1.1" || answer.Citations[0].DocumentID != "petty" {
		t.Fatalf("expected first citation linked to 1.1.1, got %+v", answer.Citations[0])
	}
	if answer.Citations[1].SectionNumber != "" {
		t.Fatalf("expected unmatched citation to stay unlinked, got %+v", answer.Citations[1])
	}
}

func TestCLIHarnessChatSendFromStdin(t *testing.T) {
	var gotID, gotMessage string
	fake := documentsClient()
	fake.SendMessageFunc = func(id, message string) (*api.Message, error) {
		gotID, gotMessage = id, message
		return &api.Message{Role: api.RoleAssistant, Content: "Guests are protected.", Citations: []api.Citation{{Source: "Succession"}}}, nil
	}

	res := runCLI(t, fake, "  what about guest right?\n", "-o", "text", "chat", "send", "conv-9", "-")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}

	if gotID != "conv-9" || gotMessage != "what about guest right?" {
		t.Fatalf("unexpected send: id=%q message=%q", gotID, gotMessage)
	}
	want := "Guests are protected.\n\nSources:\n  [1] Succession (2.1)\n"
	if res.stdout != want {
		t.Fatalf("got %q, want %q", res.stdout, want)
	}
}

func TestCLIHarnessChatSendEmptyMessage(t *testing.T) {
	res := runCLI(t, &fakeClient{}, "   \n", "-o", "json", "chat", "send", "conv-9", "-")
	if res.err == nil {
		t.Fatal("expected error for empty message")
	}
	if !strings.Contains(res.stderr, `"type":"validation"`) {
		t.Fatalf("expected validation envelope, got %q", res.stderr)
	}
}

func TestCLIHarnessChatStart(t *testing.T) {
	var created string
	fake := documentsClient()
	fake.CreateConversationFunc = func(title string) (*api.Conversation, error) {
		created = title
		return &api.Conversation{ID: "c1", Title: title}, nil
	}
	fake.GetConversationFunc = func(id string) (*api.Conversation, error) {
		return &api.Conversation{ID: id, Title: created}, nil
	}
	fake.SendMessageFunc = func(id, message string) (*api.Message, error) {
		return &api.Message{Role: api.RoleAssistant, Content: "Yes."}, nil
	}

	question := "Is it lawful to marry a cousin in the Reach under the old customs of the realm?"
	res := runCLI(t, fake, "", "-o", "json", "chat", "start", question)
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}

	if created != question[:50] {
		t.Fatalf("expected title truncated to 50 characters, got %q", created)
	}

	var out startOutput
	if err := json.Unmarshal([]byte(res.stdout), &out); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if out.ConversationID != "c1" || out.Reply == nil || out.Reply.Content != "Yes." {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestCLIHarnessChatDeleteRequiresConfirmation(t *testing.T) {
	deleted := false
	fake := &fakeClient{DeleteConversationFunc: func(string) error {
		deleted = true
		return nil
	}}

	res := runCLI(t, fake, "no\n", "-o", "text", "chat", "delete", "c1")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}
	if deleted {
		t.Fatal("expected delete to be aborted")
	}
	if !strings.Contains(res.stderr, "Aborted.") {
		t.Fatalf("expected abort notice, got %q", res.stderr)
	}

	res = runCLI(t, fake, "", "-o", "json", "--yes", "chat", "delete", "c1")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}
	if !deleted {
		t.Fatal("expected delete with --yes")
	}
	if !strings.Contains(res.stdout, `"status": "deleted"`) {
		t.Fatalf("unexpected output %q", res.stdout)
	}
}

func TestCLIHarnessChatREPL(t *testing.T) {
	var sent []string
	fake := &fakeClient{
		GetConversationFunc: func(id string) (*api.Conversation, error) {
			return &api.Conversation{ID: id, Title: "New Conversation"}, nil
		},
		SendMessageFunc: func(id, message string) (*api.Message, error) {
			sent = append(sent, message)
			return &api.Message{Role: api.RoleAssistant, Content: "answer " + message}, nil
		},
	}

	res := runCLI(t, fake, "first\n\nsecond\n/quit\nignored\n", "-o", "text", "--no-cache", "chat", "repl", "c1")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}

	if len(sent) != 2 || sent[0] != "first" || sent[1] != "second" {
		t.Fatalf("unexpected messages %v", sent)
	}
	if !strings.Contains(res.stdout, "Try asking:") {
		t.Fatalf("expected suggestions for an empty conversation, got %q", res.stdout)
	}
	if !strings.Contains(res.stdout, "answer first\n") || !strings.Contains(res.stdout, "answer second\n") {
		t.Fatalf("expected both replies, got %q", res.stdout)
	}
}

func TestCLIHarnessQueryFilter(t *testing.T) {
	fake := &fakeClient{
		ListConversationsFunc: func() (*api.ConversationList, error) {
			return &api.ConversationList{Total: 2, Conversations: []api.Conversation{
				{ID: "b", Title: "Second"},
				{ID: "a", Title: "First"},
			}}, nil
		},
	}

	res := runCLI(t, fake, "", "-o", "json", "--query", ".conversations[].id", "--result-sort-by", "id", "chat", "list")
	if res.err != nil {
		t.Fatalf("execute: %v", res.err)
	}
	if res.stdout != "\"a\"\n\"b\"\n" {
		t.Fatalf("unexpected output %q", res.stdout)
	}
}

func snapshotCLIState() func() {
	prevURL := apiURL
	prevToken := apiToken
	prevOutputFmt := outputFmt
	prevOutputType := outputType
	prevDebug := debug
	prevConfig := configFile
	prevQueryExpr := queryExpr
	prevQueryFile := queryFile
	prevErrorFmt := errorFmt
	prevQuiet := quietFlag
	prevYes := yesFlag
	prevResultLimit := resultLimit
	prevResultSort := resultSort
	prevResultDesc := resultDesc
	prevNoCache := noCache
	prevNoColor := noColor
	prevClient := client
	prevActiveConfig := activeConfig
	prevLogger := logger

	prevEnvGet := envGet
	prevOpenStore := openSecretsStore
	prevNewClient := newClientFunc
	prevLoadDotEnv := loadDotEnv
	prevOpenBrowser := openBrowser
	loadDotEnv = func(string) error { return nil }

	prevOut := rootCmd.OutOrStdout()
	prevErr := rootCmd.ErrOrStderr()
	prevIn := rootCmd.InOrStdin()
	prevCtx := rootCmd.Context()

	return func() {
		apiURL = prevURL
		apiToken = prevToken
		outputFmt = prevOutputFmt
		outputType = prevOutputType
		debug = prevDebug
		configFile = prevConfig
		queryExpr = prevQueryExpr
		queryFile = prevQueryFile
		errorFmt = prevErrorFmt
		quietFlag = prevQuiet
		yesFlag = prevYes
		resultLimit = prevResultLimit
		resultSort = prevResultSort
		resultDesc = prevResultDesc
		noCache = prevNoCache
		noColor = prevNoColor
		client = prevClient
		activeConfig = prevActiveConfig
		logger = prevLogger

		envGet = prevEnvGet
		openSecretsStore = prevOpenStore
		newClientFunc = prevNewClient
		loadDotEnv = prevLoadDotEnv
		openBrowser = prevOpenBrowser

		resetCommandFlags()

		rootCmd.SetOut(prevOut)
		rootCmd.SetErr(prevErr)
		rootCmd.SetIn(prevIn)
		rootCmd.SetContext(prevCtx)
		rootCmd.SetArgs(nil)
		resetFlagChanges(rootCmd)
		for _, sub := range []interface {
			Flags() *pflag.FlagSet
			PersistentFlags() *pflag.FlagSet
			InheritedFlags() *pflag.FlagSet
		}{docsListCmd, docsTreeCmd, chatNewCmd, chatListCmd, statusCmd, loginCmd} {
			resetFlagChanges(sub)
		}
	}
}

// resetCommandFlags restores subcommand flag variables to their defaults.
func resetCommandFlags() {
	docsMain = ""
	docsPage = 1
	docsLimit = 0
	treeExpand = nil
	treeExpandAll = false
	treeSelect = ""
	treePreviewLength = sections.DefaultPreviewLength
	treeStrict = false
	treeKeepFirst = false
	chatTitle = ""
	chatPage = 1
	chatLimit = 0
	verifyAuth = false
	loginBrowser = false
}

func resetFlagChanges(cmdFlagSet interface {
	Flags() *pflag.FlagSet
	PersistentFlags() *pflag.FlagSet
	InheritedFlags() *pflag.FlagSet
},
) {
	if cmdFlagSet == nil {
		return
	}
	cmdFlagSet.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
	cmdFlagSet.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
	cmdFlagSet.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
}
