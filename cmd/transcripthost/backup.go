package main

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"transcripthost/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// backupEntry maps a file on disk to its name inside the archive.
type backupEntry struct {
	src  string
	name string
}

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of uploads, transcripts, the index and config",
		Long: `Creates a compressed .tar.gz archive containing the config file, the
transcript index and every stored upload and transcript. The backup is
timestamped by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.LoadOptional(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if outputPath == "" {
				backupDir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("transcripthost-backup-%s.tar.gz", ts))
			}

			entries, err := collectBackup(cfgPath, cfg)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("nothing to back up (config: %s)", cfgPath)
			}

			total, err := createTarGz(outputPath, entries)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			fmt.Printf("Backup created: %s\n", outputPath)
			fmt.Printf("Files included: %d (%s)\n", len(entries), humanize.Bytes(uint64(total)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.transcripthost/backups/transcripthost-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var inputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore data from a backup archive",
		Long: `Restores the config, transcript index, uploads and transcripts from a
.tar.gz archive created by 'transcripthost backup'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" && len(args) > 0 {
				inputPath = args[0]
			}
			if inputPath == "" {
				return fmt.Errorf("specify a backup file: transcripthost restore <file.tar.gz>")
			}

			cfgPath := resolveConfigPath()
			cfg, err := config.LoadOptional(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if !force {
				existing, _ := collectBackup(cfgPath, cfg)
				if len(existing) > 0 {
					fmt.Printf("%d existing files would be overwritten under:\n", len(existing))
					fmt.Printf("  %s\n  %s\n  %s\n", cfgPath, cfg.Storage.UploadsDir, cfg.Storage.TranscriptsDir)
					return errors.New("restore refused: existing data found, rerun with --force")
				}
			}

			restored, err := extractTarGz(inputPath, restoreTargets(cfgPath, cfg))
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Printf("Restored %d files from %s\n", len(restored), inputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without warning")
	return cmd
}

// collectBackup lists the files that exist for the current config.
func collectBackup(cfgPath string, cfg *config.Config) ([]backupEntry, error) {
	var entries []backupEntry
	addFile := func(src, name string) {
		if info, err := os.Stat(src); err == nil && info.Mode().IsRegular() {
			entries = append(entries, backupEntry{src: src, name: name})
		}
	}

	addFile(cfgPath, "config/"+filepath.Base(cfgPath))
	if cfg.Index.Backend == "sqlite" {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			addFile(cfg.Index.DBPath+suffix, "index/"+filepath.Base(cfg.Index.DBPath)+suffix)
		}
	}

	for _, dir := range []struct{ path, prefix string }{
		{cfg.Storage.UploadsDir, "uploads/"},
		{cfg.Storage.TranscriptsDir, "transcripts/"},
	} {
		des, err := os.ReadDir(dir.path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir.path, err)
		}
		for _, de := range des {
			if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
				continue
			}
			addFile(filepath.Join(dir.path, de.Name()), dir.prefix+de.Name())
		}
	}
	return entries, nil
}

// restoreTargets maps archive directories to destinations on disk.
func restoreTargets(cfgPath string, cfg *config.Config) map[string]string {
	return map[string]string{
		"config":      filepath.Dir(cfgPath),
		"index":       filepath.Dir(cfg.Index.DBPath),
		"uploads":     cfg.Storage.UploadsDir,
		"transcripts": cfg.Storage.TranscriptsDir,
	}
}

// createTarGz writes entries into a .tar.gz and returns the bytes archived.
func createTarGz(outputPath string, entries []backupEntry) (int64, error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	tw := tar.NewWriter(zw)

	var total int64
	for _, e := range entries {
		n, err := addFileToTar(tw, e)
		if err != nil {
			return 0, fmt.Errorf("add %s: %w", e.src, err)
		}
		total += n
	}

	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return total, f.Close()
}

func addFileToTar(tw *tar.Writer, e backupEntry) (int64, error) {
	file, err := os.Open(e.src)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return 0, err
	}
	header.Name = e.name

	if err := tw.WriteHeader(header); err != nil {
		return 0, err
	}
	return io.Copy(tw, file)
}

// extractTarGz restores archive entries into targets, keyed by the entry's
// top-level directory. Unknown directories and unsafe names are skipped.
func extractTarGz(archivePath string, targets map[string]string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	var restored []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return restored, nil
		}
		if err != nil {
			return restored, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		dir, base := path.Split(path.Clean(hdr.Name))
		destDir, ok := targets[strings.TrimSuffix(dir, "/")]
		if !ok || base == "" || base == "." || base == ".." {
			logger.Warn("skipping archive entry", "name", hdr.Name)
			continue
		}
		dst := filepath.Join(destDir, base)
		if err := writeEntry(dst, tr); err != nil {
			return restored, err
		}
		restored = append(restored, dst)
	}
}

func writeEntry(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", dst, err)
	}
	return out.Close()
}
