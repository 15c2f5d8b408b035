package cli

import (
	"fmt"
	"io"

	ouroboros "github.com/i5heu/ouroboros-objects"
	"github.com/i5heu/ouroboros-objects/pkg/object"
	"github.com/spf13/cobra"
)

// DemoResult lists the keys written by the demo command.
type DemoResult struct {
	// First is the document as first committed, Second after one section
	// was retitled. Both stay readable.
	First    string `json:"first"`
	Second   string `json:"second"`
	Elements int    `json:"elements"`
}

func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Commit a small document graph twice",
		Long: `demo creates a document with an author and two sections, commits it,
retitles one section and commits again. Only the changed section and the
document itself are written a second time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()
			return runDemo(cmd, db, formatter{format: rootOpts.Format, w: cmd.OutOrStdout()})
		},
	}
}

func newDocument(repo *object.Repository, title, body string) (*object.Wrapper, error) {
	doc, err := repo.CreateObject(DocumentType)
	if err != nil {
		return nil, err
	}
	if err := doc.Set("title", title); err != nil {
		return nil, err
	}
	if body != "" {
		if err := doc.Set("body", body); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func buildDemo(repo *object.Repository) (*object.Wrapper, error) {
	author, err := repo.CreateObject(PersonType)
	if err != nil {
		return nil, err
	}
	if err := author.Set("name", "Ada"); err != nil {
		return nil, err
	}
	if err := author.Set("email", "ada@example.org"); err != nil {
		return nil, err
	}

	w, err := newDocument(repo, "Field notes", "")
	if err != nil {
		return nil, err
	}
	doc, err := object.As[Document](w)
	if err != nil {
		return nil, err
	}
	if err := doc.AddTags("demo", "notes"); err != nil {
		return nil, err
	}
	if err := doc.SetAuthor(author); err != nil {
		return nil, err
	}

	for i, body := range []string{"The river rose overnight.", "The bridge held."} {
		s, err := doc.AddSection(fmt.Sprintf("Section %d", i+1), body)
		if err != nil {
			return nil, err
		}
		if err := s.SetAuthor(author); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func runDemo(cmd *cobra.Command, db *ouroboros.ObjectDB, f formatter) error {
	ctx := cmd.Context()
	repo, err := db.NewRepository()
	if err != nil {
		return err
	}

	doc, err := buildDemo(repo)
	if err != nil {
		return fmt.Errorf("build demo graph: %w", err)
	}
	first, err := repo.Commit(ctx, doc)
	if err != nil {
		return fmt.Errorf("commit demo graph: %w", err)
	}

	top, err := object.As[Document](doc)
	if err != nil {
		return err
	}
	section, err := top.FindSection("Section 1")
	if err != nil {
		return err
	}
	if err := section.Retitle("Section 1, revised"); err != nil {
		return err
	}
	second, err := repo.Commit(ctx, doc)
	if err != nil {
		return fmt.Errorf("commit revision: %w", err)
	}

	res := DemoResult{First: first.String(), Second: second.String()}
	if keys, err := db.Keys(ctx); err == nil {
		res.Elements = len(keys)
	}

	return f.emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "first commit:  %s\n", res.First)
		fmt.Fprintf(w, "second commit: %s\n", res.Second)
		fmt.Fprintf(w, "elements:      %d\n", res.Elements)
	})
}
