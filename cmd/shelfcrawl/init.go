package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/shelfcrawl/internal/config"
)

//go:embed templates/shelfcrawl.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new shelfcrawl configuration file",
		Long: `Initialize creates a new .shelfcrawl configuration file in the current directory.

The generated file includes:
- Default settings shared by every site
- The extraction rules for the books catalogue
- Commented examples for site-specific cookies, headers and URL patterns

Examples:
  # Create .shelfcrawl in current directory
  shelfcrawl init

  # Create config file at a specific path
  shelfcrawl init -o myconfig.yaml

  # Force overwrite existing file
  shelfcrawl init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/shelfcrawl.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// 0600: the file may hold cookies and tokens.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure site-specific settings such as:")
	fmt.Fprintln(out, "  - Authentication cookies and headers")
	fmt.Fprintln(out, "  - Fields to extract from each page")
	fmt.Fprintln(out, "  - URL patterns to ignore or follow")

	return nil
}
