package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/AmmannChristian/go-shellauth/filestorage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newFilesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage files in the file storage service",
	}
	cmd.AddCommand(
		newFilesHealthCommand(opts),
		newFilesListCommand(opts),
		newFilesUploadCommand(opts),
		newFilesGetCommand(opts),
		newFilesDeleteCommand(opts),
	)
	return cmd
}

func newFilesHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the file storage service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.app.files(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}
}

func newFilesListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.app.files(cmd.Context())
			if err != nil {
				return err
			}
			files, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files stored.")
				return nil
			}
			renderFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}
}

func renderFiles(w io.Writer, files []filestorage.File) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"NAME", "UPLOADED", "PATH"})
	for _, f := range files {
		t.AppendRow(table.Row{f.Filename, f.UploadedAt.Local().Format(time.DateTime), f.Path})
	}
	t.Render()
}

func newFilesUploadCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload one or more local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads := make([]filestorage.Upload, 0, len(args))
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				uploads = append(uploads, filestorage.Upload{Name: filepath.Base(path), Content: f})
			}

			client, err := opts.app.files(cmd.Context())
			if err != nil {
				return err
			}
			result, err := client.Upload(cmd.Context(), uploads...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Message)
			for _, name := range result.UploadedFiles {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}

func newFilesGetCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Download a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			client, err := opts.app.files(cmd.Context())
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := client.Download(cmd.Context(), name, cmd.OutOrStdout())
				return err
			}
			if output == "" {
				output = filepath.Base(name)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := client.Download(cmd.Context(), name, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				if filestorage.IsNotFound(err) {
					return fmt.Errorf("file %q not found", name)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `Destination file, "-" for stdout (default: the stored name)`)
	return cmd
}

func newFilesDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.app.files(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), args[0]); err != nil {
				if filestorage.IsNotFound(err) {
					return fmt.Errorf("file %q not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newModulesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the modules registered with the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range opts.app.host.Modules() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
