package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mod-catalog/db"
	"mod-catalog/files"
	"mod-catalog/logger"
	"mod-catalog/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the archive store",
}

var archiveImportCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Copy every .zip under a directory into the archive store",
	Long: `Copy every .zip under a directory into the archive store, keyed by sha1.
Archives already in the store are skipped. Use this to bring back archives
so removed versions become restorable again.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		imported, err := importArchives(cmd.Context(), a.files, args[0])
		if err != nil {
			a.fail("Failed to import archives", err)
		}
		fmt.Printf("Imported %d archive(s)\n", imported)
	},
}

var archiveMissingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List versions whose archive is not in the store",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap(configPath)
		defer a.close()
		ctx := cmd.Context()
		versions, err := a.cache.Versions(ctx)
		if err != nil {
			a.fail("Failed to list versions", err)
		}
		missing, err := missingArchives(ctx, a.files, versions)
		if err != nil {
			a.fail("Failed to check archives", err)
		}
		for _, v := range missing {
			fmt.Printf("#%d %s %s (zip %s)\n", v.ID, v.ModVersion, ui.Status(v.Status), v.ZipHash)
		}
		fmt.Printf("%d version(s) without an archive\n", len(missing))
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveImportCmd, archiveMissingCmd)
}

// importArchives walks dir and stores every .zip not already present.
func importArchives(ctx context.Context, store *files.DiskStore, dir string) (int, error) {
	logger.Log.Infow("Scanning for archives...", zap.String("dir", dir))
	if _, err := os.Stat(dir); err != nil {
		return 0, err
	}

	imported := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ok, err := processArchive(ctx, store, path, info)
		if ok {
			imported++
		}
		return err
	})
	return imported, err
}

func processArchive(ctx context.Context, store *files.DiskStore, path string, info os.FileInfo) (bool, error) {
	if info.IsDir() {
		if info.Name() != "." && strings.HasPrefix(info.Name(), ".") {
			return false, filepath.SkipDir
		}
		return false, nil
	}
	if strings.ToLower(filepath.Ext(path)) != ".zip" {
		return false, nil
	}

	hash, err := files.HashFile(path)
	if err != nil {
		logger.Log.Warnw("Failed to calculate hash", zap.String("file", info.Name()), zap.Error(err))
		return false, nil
	}
	exists, err := store.Exists(ctx, hash)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, _, err := store.Put(ctx, path); err != nil {
		logger.Log.Errorw("Failed to store archive", zap.String("file", info.Name()), zap.Error(err))
		return false, nil
	}
	logger.Log.Infow("Imported archive", zap.String("file", info.Name()), zap.String("hash", hash))
	return true, nil
}

// missingArchives returns the versions whose archive is gone from store.
func missingArchives(ctx context.Context, store *files.DiskStore, versions []db.Version) ([]db.Version, error) {
	var out []db.Version
	for _, v := range versions {
		ok, err := store.Exists(ctx, v.ZipHash)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, v)
		}
	}
	return out, nil
}
