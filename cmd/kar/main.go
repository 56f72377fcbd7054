// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/devblok/korusync/material"
	"github.com/devblok/korusync/utility/kar"
	"github.com/spf13/cobra"
	"golang.org/x/exp/mmap"
)

var currentUserName = "unknown"

func init() {
	if u, err := user.Current(); err == nil && u.Username != "" {
		currentUserName = u.Username
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "kar",
		Short:        "Build and inspect kar material packs",
		SilenceUsage: true,
	}
	root.AddCommand(newBuildCmd(), newListCmd(), newExtractCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	var (
		author  string
		version int64
		dstFile string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Compress a directory into a kar archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(dstFile); err == nil && !force {
				return errors.New("destination file exists, will not overwrite")
			}
			n, err := compressFiles(args[0], dstFile, kar.Header{
				Author:      author,
				DateCreated: time.Now().Unix(),
				Version:     version,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed %d files into %s\n", n, dstFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", currentUserName, "Set the author of the package")
	cmd.Flags().Int64Var(&version, "version", 1, "Archive version number to create it with")
	cmd.Flags().StringVarP(&dstFile, "file", "f", "out.kar", "Destination file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite the destination file")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "List the files and materials of a kar archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mmap.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			ar, err := kar.Open(r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			header := ar.Header()
			fmt.Fprintf(out, "author %s, version %d, created %s\n",
				header.Author, header.Version, time.Unix(header.DateCreated, 0).Format(time.RFC3339))
			for _, e := range header.Index {
				fmt.Fprintf(out, "%10d %10d  %s\n", e.Size, e.CompressedSize, e.Name)
			}

			lib := material.NewLibrary(ar, nil)
			for _, name := range lib.Names() {
				def, err := lib.Definition(name)
				if err != nil {
					fmt.Fprintf(out, "material %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "material %s: %s + %s\n", def.Name, def.Shader.Vertex, def.Shader.Fragment)
			}
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	var dstDir string
	cmd := &cobra.Command{
		Use:   "extract <archive>",
		Short: "Extract every file of a kar archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mmap.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			ar, err := kar.Open(r)
			if err != nil {
				return err
			}
			return extractFiles(ar, dstDir)
		},
	}
	cmd.Flags().StringVarP(&dstDir, "dir", "d", ".", "Destination directory")
	return cmd
}

func compressFiles(srcDir, dstFile string, header kar.Header) (int, error) {
	karBuilder := kar.NewBuilder(header)

	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return karBuilder.Add(filepath.ToSlash(rel), f)
	})
	if err != nil {
		return 0, err
	}

	dst, err := os.Create(dstFile)
	if err != nil {
		return 0, err
	}
	defer dst.Close()
	if _, err := karBuilder.WriteTo(dst); err != nil {
		return 0, err
	}
	return karBuilder.Len(), dst.Sync()
}

func extractFiles(ar *kar.Archive, dstDir string) error {
	root := filepath.Clean(dstDir)
	for _, name := range ar.Names() {
		target := filepath.Join(root, filepath.FromSlash(name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("%s: escapes destination directory", name)
		}
		data, err := ar.ReadAll(name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
