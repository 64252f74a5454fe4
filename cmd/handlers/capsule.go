package handlers

import (
	"fmt"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/render"
	"civicbriefs/internal/tui"

	"github.com/spf13/cobra"
)

// NewMapCmd creates the map command
func NewMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "Map stored news to syllabus topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			n, err := services.Mapper.MapNewsToSyllabus(ctx)
			fmt.Printf("🔗 Created %d mappings\n", n)
			if err != nil {
				fmt.Printf("⚠️  Some items failed: %v\n", err)
			}
			return nil
		},
	}
}

// NewCapsuleCmd creates the capsule command
func NewCapsuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capsule",
		Short: "Show or rebuild today's capsule",
		Long: `Today's capsule is built once from the newest stored news and cached.
Use 'rebuild' after ingesting more news the same day.

Examples:
  civicbriefs capsule show
  civicbriefs capsule show --markdown
  civicbriefs capsule rebuild --output capsules
  civicbriefs capsule browse`,
	}

	cmd.AddCommand(newCapsuleShowCmd())
	cmd.AddCommand(newCapsuleRebuildCmd())
	cmd.AddCommand(newCapsuleBrowseCmd())
	return cmd
}

type capsuleFlags struct {
	markdown  bool
	outputDir string
}

func (f *capsuleFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "Print markdown instead of styled text")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "Write the capsule as markdown into this directory")
}

func (f *capsuleFlags) print(c *core.Capsule) error {
	md := render.CapsuleMarkdown(c)
	if f.outputDir != "" {
		path, err := render.WriteToFile(md, f.outputDir, render.CapsuleFilename(c.Date))
		if err != nil {
			return err
		}
		fmt.Printf("✅ Capsule written to %s\n", path)
		return nil
	}
	if f.markdown {
		fmt.Print(md)
		return nil
	}
	fmt.Print(styledCapsule(c))
	return nil
}

func newCapsuleShowCmd() *cobra.Command {
	var flags capsuleFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show today's capsule, building it on first use",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			c, err := services.Capsules.BuildDaily(ctx)
			if err != nil {
				return err
			}
			return flags.print(c)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCapsuleRebuildCmd() *cobra.Command {
	var flags capsuleFlags
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Discard today's capsule and build it again",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			c, err := services.Capsules.Rebuild(ctx)
			if err != nil {
				return err
			}
			return flags.print(c)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCapsuleBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse today's capsule in an interactive terminal view",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			c, err := services.Capsules.BuildDaily(ctx)
			if err != nil {
				return err
			}
			return tui.Run(c)
		},
	}
}

// NewPyqsCmd creates the pyqs command
func NewPyqsCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "pyqs <text>",
		Short: "Find previous-year questions related to a piece of text",
		Args:  cobra.MinimumNArgs(1),
		Example: `  civicbriefs pyqs "RBI keeps repo rate unchanged as inflation eases"
  civicbriefs pyqs -k 5 "cooperative federalism"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			text := strings.Join(args, " ")
			results, err := services.Retriever.FindRelated(ctx, text, k)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("ℹ️  No questions stored yet. Run 'civicbriefs seed' first.")
				return nil
			}
			for i, q := range results {
				fmt.Printf("%d. %s %s\n", i+1, q.Question, mutedStyle.Render(fmt.Sprintf("[%s %d · %.2f]", q.Paper, q.Year, q.Score)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 3, "Number of questions to return")
	return cmd
}
