package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/viaduct-dev/viaduct/internal/config"
	"github.com/viaduct-dev/viaduct/internal/logging"
	"github.com/viaduct-dev/viaduct/internal/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <request-path | specifier>",
	Short: "Explain how a request path or import specifier resolves",
	Long: `Resolve a path the way the running server would and print the outcome.

Arguments starting with / are treated as request paths and mapped to a file.
Anything else is treated as an import specifier found in a module and run
through specifier rewriting, including bare package lookup.

Examples:
  viaduct resolve /src/App.vue
  viaduct resolve ./components/Button.vue --importer /src/App.vue
  viaduct resolve vue`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().String("importer", "/index.html", "Request path of the importing module")
}

// resolveReport is the printed outcome for one resolution.
type resolveReport struct {
	Input       string `yaml:"input"`
	Kind        string `yaml:"kind"`
	Root        string `yaml:"root"`
	File        string `yaml:"file,omitempty"`
	FileExists  *bool  `yaml:"file_exists,omitempty"`
	RequestPath string `yaml:"request_path,omitempty"`
	Rewritten   string `yaml:"rewritten,omitempty"`
	Importer    string `yaml:"importer,omitempty"`

	Package *packageReport `yaml:"package,omitempty"`
}

type packageReport struct {
	ID    string `yaml:"id"`
	Dir   string `yaml:"dir,omitempty"`
	Entry string `yaml:"entry,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	res := resolver.New(resolver.Options{
		Root:         root,
		PublicDir:    cfg.PublicDir,
		Aliases:      cfg.Resolve.Alias,
		Extensions:   cfg.Resolve.Extensions,
		ModuleDir:    cfg.Resolve.ModuleDir,
		OptimizedDir: cfg.Resolve.OptimizedDir,
		Logger:       logging.Nop(),
	})

	input := args[0]
	report := resolveReport{Input: input, Root: root}

	if strings.HasPrefix(input, "/") {
		report.Kind = "request path"
		report.File = res.ResolveToFile(input)
		exists := fileExists(report.File)
		report.FileExists = &exists
		report.RequestPath = res.ResolveToRequest(report.File)
	} else {
		importer, _ := cmd.Flags().GetString("importer")
		report.Kind = "specifier"
		report.Importer = importer
		report.Rewritten = res.RewriteSpecifier(input, importer)

		if !strings.HasPrefix(input, ".") {
			if entry, ok := res.Package(input); ok {
				report.Package = &packageReport{
					ID:    entry.ID,
					Dir:   entry.Dir,
					Entry: entry.EntryRequestPath,
				}
			}
		}
	}

	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(&report)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
