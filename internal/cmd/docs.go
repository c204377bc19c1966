package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/output"
	"github.com/lexicon-labs/lexicon-cli/internal/sections"
	"github.com/lexicon-labs/lexicon-cli/internal/treeview"
)

var docsCmd = &cobra.Command{
	Use:     "docs",
	Aliases: []string{"documents", "doc"},
	Short:   "Browse legal documents",
	Long: `Browse the legal corpus.

Documents are sections identified by dot-numbered keys such as "1.2.3".
They are grouped into main sections by their first key component.

Examples:
  lexicon docs list --main 1
  lexicon docs tree --expand 1 --expand 1.2
  lexicon docs tree --select 1.2.3
  lexicon docs section 1.2`,
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in key order",
	Long: `List every document as a flat list sorted by section number.

Examples:
  lexicon docs list
  lexicon docs list --main 2 -o table
  lexicon docs list --limit 20 --page 2
  lexicon docs list -o json --query '.documents[].subsection_number'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		resp, err := GetClient().ListDocuments(ctx)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}

		mainKey := strings.TrimSpace(docsMain)
		docs := make([]sections.FlatSection, 0, len(resp.Documents))
		for _, d := range resp.Documents {
			if mainKey != "" && sections.MainKey(d.SubsectionNumber) != mainKey {
				continue
			}
			docs = append(docs, d)
		}
		sort.SliceStable(docs, func(i, j int) bool {
			return sections.CompareKeys(docs[i].SubsectionNumber, docs[j].SubsectionNumber) < 0
		})

		pageDocs, total, _ := paginate(docs, docsPage, docsLimit)
		return printResult(ctx, documentList{Total: total, Documents: pageDocs})
	},
}

var docsTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the section hierarchy",
	Long: `Build the section hierarchy from the flat document list and print it.

Every node starts collapsed. Use --expand to open nodes by key (ancestors
are opened too) or --expand-all to open everything. --select highlights a
document by id or key, opens the path to it and prints its text below
the tree.

Sections whose parent key is missing from the list are not shown. When two
documents share a key the later one wins; use --keep-first to keep the
earlier one, or --strict to fail instead.

Structured output formats print the whole forest.

Examples:
  lexicon docs tree
  lexicon docs tree --expand-all --preview-length 40
  lexicon docs tree --select 1.2 --no-color
  lexicon docs tree -o json --query '.[].label'`,
	Args: cobra.NoArgs,
	RunE: runDocsTree,
}

var docsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a document by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := GetClient().GetDocument(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}
		return printDocument(cmd.Context(), doc)
	},
}

var docsSectionCmd = &cobra.Command{
	Use:   "section <key>",
	Short: "Show a document by section number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := GetClient().GetDocumentBySection(cmd.Context(), strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("failed to get section: %w", err)
		}
		return printDocument(cmd.Context(), doc)
	},
}

var (
	docsMain          string
	docsPage          int
	docsLimit         int
	treeExpand        []string
	treeExpandAll     bool
	treeSelect        string
	treePreviewLength int
	treeStrict        bool
	treeKeepFirst     bool
)

func init() {
	docsListCmd.Flags().StringVar(&docsMain, "main", "", "Only list documents under this main section number")
	docsListCmd.Flags().IntVar(&docsPage, "page", 1, "Page number (with --limit)")
	docsListCmd.Flags().IntVar(&docsLimit, "limit", 0, "Documents per page (0 = all)")

	docsTreeCmd.Flags().StringArrayVar(&treeExpand, "expand", nil, "Expand the node with this key (repeatable)")
	docsTreeCmd.Flags().BoolVar(&treeExpandAll, "expand-all", false, "Expand every node")
	docsTreeCmd.Flags().StringVar(&treeSelect, "select", "", "Select a document by id or key")
	docsTreeCmd.Flags().IntVar(&treePreviewLength, "preview-length", sections.DefaultPreviewLength, "Maximum label length before truncation")
	docsTreeCmd.Flags().BoolVar(&treeStrict, "strict", false, "Fail when two documents share a section number")
	docsTreeCmd.Flags().BoolVar(&treeKeepFirst, "keep-first", false, "Keep the first of duplicate section numbers instead of the last")

	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsTreeCmd)
	docsCmd.AddCommand(docsGetCmd)
	docsCmd.AddCommand(docsSectionCmd)

	rootCmd.AddCommand(docsCmd)
}

func runDocsTree(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if treeStrict && treeKeepFirst {
		return api.ValidationError{Message: "use only one of --strict or --keep-first"}
	}

	resp, err := GetClient().ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if treeStrict {
		if dups := sections.Duplicates(resp.Documents); len(dups) > 0 {
			return api.ValidationError{Message: "duplicate section numbers: " + strings.Join(dups, ", ")}
		}
	}

	opts := []sections.Option{sections.WithPreviewLength(previewLength(cmd, activeConfig))}
	if treeKeepFirst {
		opts = append(opts, sections.WithDuplicatePolicy(sections.KeepFirst))
	}
	forest := sections.BuildTree(resp.Documents, opts...)
	logger.Debug("built section tree", "documents", len(resp.Documents), "nodes", sections.Count(forest))

	if GetOutputFormat() != output.FormatText {
		return printResult(ctx, forest)
	}

	tree := treeText{opts: treeview.Options{Plain: plainOutput(stdoutFromContext(ctx))}}
	view := sections.NewView(forest, func(id, sectionNumber string) {
		tree.selectedKey = sectionNumber
	})
	tree.view = view

	if treeExpandAll {
		view.ExpandAll()
	}
	for _, key := range treeExpand {
		if err := expandNode(view, strings.TrimSpace(key)); err != nil {
			return err
		}
	}

	if selector := strings.TrimSpace(treeSelect); selector != "" {
		node, err := selectNode(view, selector)
		if err != nil {
			return err
		}
		doc, err := GetClient().GetDocument(ctx, node.ID)
		if err != nil {
			logger.Warn("could not load selected document", "id", node.ID, "error", err)
		} else {
			tree.doc = doc
		}
	}

	return printResult(ctx, tree)
}

// expandNode opens key and every ancestor of it.
func expandNode(view *sections.View, key string) error {
	if !view.ExpandPath(key) {
		return api.NotFoundError{Message: fmt.Sprintf("no section %q in the tree", key)}
	}
	if !view.Expanded(key) {
		view.Toggle(key)
	}
	return nil
}

// selectNode clicks the real node matching selector, by id first and then
// by key. The path to the node is opened first.
func selectNode(view *sections.View, selector string) (sections.TreeNode, error) {
	node, ok := sections.FindByID(view.Forest(), selector)
	if !ok {
		node, ok = sections.Find(view.Forest(), selector)
	}
	if !ok || node.IsPlaceholder() {
		return sections.TreeNode{}, api.NotFoundError{Message: fmt.Sprintf("no document %q in the tree", selector)}
	}
	view.ExpandPath(node.SectionNumber)
	if view.Expanded(node.SectionNumber) {
		// Click toggles; keep an already open node open.
		view.Toggle(node.SectionNumber)
	}
	view.Click(node)
	return node, nil
}

// documentList is the output of docs list.
type documentList struct {
	Total     int                    `json:"total" yaml:"total"`
	Documents []sections.FlatSection `json:"documents" yaml:"documents"`
}

func (l documentList) RenderText(w io.Writer) error {
	if len(l.Documents) == 0 {
		_, err := fmt.Fprintln(w, "No documents.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, d := range l.Documents {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.SubsectionNumber, d.MainSection, sections.Truncate(d.Preview, 60))
	}
	return tw.Flush()
}

// treeText renders a view, followed by the selected document if any.
type treeText struct {
	view        *sections.View
	opts        treeview.Options
	selectedKey string
	doc         *api.DocumentDetail
}

func (t treeText) RenderText(w io.Writer) error {
	if len(t.view.Forest()) == 0 {
		_, err := fmt.Fprintln(w, "No documents.")
		return err
	}
	if err := treeview.Write(w, t.view, t.opts); err != nil {
		return err
	}
	switch {
	case t.doc != nil:
		fmt.Fprintln(w)
		return documentView{t.doc}.RenderText(w)
	case t.selectedKey != "":
		_, err := fmt.Fprintf(w, "\nSelected %s\n", t.selectedKey)
		return err
	}
	return nil
}

// documentView prints a document's heading and full text.
type documentView struct {
	doc *api.DocumentDetail
}

func (d documentView) RenderText(w io.Writer) error {
	m := d.doc.Metadata
	heading := strings.TrimSpace(strings.Join([]string{m.SubsectionNumber, m.Section}, " "))
	if heading == "" {
		heading = d.doc.ID
	}
	if m.MainSection != "" {
		heading += " (" + m.MainSection + ")"
	}
	_, err := fmt.Fprintf(w, "%s\n\n%s\n", heading, strings.TrimSpace(d.doc.Text))
	return err
}

func printDocument(ctx context.Context, doc *api.DocumentDetail) error {
	if GetOutputFormat() == output.FormatText {
		return printResult(ctx, documentView{doc})
	}
	return printResult(ctx, doc)
}

// loadDocuments fetches the flat list for citation linking. Failures only
// disable linking.
func loadDocuments(ctx context.Context) []sections.FlatSection {
	resp, err := GetClient().ListDocuments(ctx)
	if err != nil {
		logger.Debug("citation linking disabled", "error", err)
		return nil
	}
	return resp.Documents
}
