package cmd

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/aictx/aictx/internal/output"
	"github.com/aictx/aictx/internal/snapshot"
)

var archiveOutput string

var snapshotArchiveCmd = &cobra.Command{
	Use:   "archive <snapshot-id>",
	Short: "Bundle a snapshot into a tar.gz for external storage",
	Long: `Create a tar.gz containing a snapshot's metadata and file contents.

Native snapshots are materialized from their stash commit, so the
archive is self-contained and survives even if the stash is dropped
later.

Examples:
  aictx snapshot archive snap_20260830T120000_a1b2c3
  aictx snapshot archive snap_20260830T120000_a1b2c3 --output backup.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshotArchive,
}

func init() {
	snapshotCmd.AddCommand(snapshotArchiveCmd)

	snapshotArchiveCmd.Flags().StringVar(&archiveOutput, "output", "", "Output file path (default: aictx-<id>.tar.gz)")
}

func runSnapshotArchive(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	meta, err := app.snapshots.Get(args[0])
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return output.NewUserError(err.Error())
		}
		return output.NewSystemError("failed to load snapshot", err)
	}

	outputFile := archiveOutput
	if outputFile == "" {
		outputFile = fmt.Sprintf("aictx-%s.tar.gz", meta.ID)
	}

	if err := writeSnapshotArchive(cmd.Context(), app, meta, outputFile); err != nil {
		return output.NewSystemError("failed to create archive", err)
	}

	if info, err := os.Stat(outputFile); err == nil {
		app.printer.Successf("archived %s to %s (%.2f KB)", meta.ID, outputFile, float64(info.Size())/1024)
	} else {
		app.printer.Successf("archived %s to %s", meta.ID, outputFile)
	}
	return nil
}

func writeSnapshotArchive(ctx context.Context, app *app, meta *snapshot.Metadata, filename string) error {
	outFile, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := writeTarEntry(tarWriter, path.Join(meta.ID, "meta.json"), metaJSON, meta.CreatedAt); err != nil {
		return err
	}

	files, err := app.snapshots.Files(ctx, meta)
	if err != nil {
		return err
	}
	for _, rel := range files {
		content, err := app.snapshots.ReadFile(ctx, meta, rel)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		if err := writeTarEntry(tarWriter, path.Join(meta.ID, "files", rel), content, meta.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func writeTarEntry(w *tar.Writer, name string, content []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(content)),
		ModTime: modTime,
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(content)
	return err
}
