package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ente-io/uploadcore/internal/config"
	"github.com/ente-io/uploadcore/internal/localfs"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/orchestrator"
	"github.com/ente-io/uploadcore/internal/pathutil"
	"github.com/ente-io/uploadcore/internal/util/filter"
	"github.com/ente-io/uploadcore/internal/validation"
)

func newEnqueueCmd() *cobra.Command {
	var (
		path          string
		dir           string
		collectionID  int64
		timeout       time.Duration
		video         bool
		includeHidden bool
		includeGlobs  string
		excludeGlobs  string
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Encrypt and upload one file, or every file under a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (path == "") == (dir == "") {
				return fmt.Errorf("exactly one of --path or --dir is required")
			}

			cfg, sp, err := loadConfigAndState()
			if err != nil {
				return err
			}

			state, err := openLocalState(sp)
			if err != nil {
				return fmt.Errorf("open local state: %w", err)
			}

			o, err := orchestrator.New(orchestrator.Deps{
				Config:       cfg,
				Media:        fileMedia{},
				Thumbnails:   fileMedia{},
				Files:        state,
				Collections:  state,
				Connectivity: alwaysOnline{},
				SyncStop:     neverStopped{},
				SyncTracker:  state,
			})
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}
			if err := o.Init(false); err != nil {
				return fmt.Errorf("init orchestrator: %w", err)
			}
			defer o.Shutdown()

			paths := []string{path}
			if dir != "" {
				filterCfg := filter.Config{
					Include: filter.ParsePatternList(includeGlobs),
					Exclude: filter.ParsePatternList(excludeGlobs),
				}
				paths, err = collectDirFiles(dir, includeHidden, filterCfg)
				if err != nil {
					return fmt.Errorf("walk --dir: %w", err)
				}
				if len(paths) == 0 {
					fmt.Println("no files found under", dir)
					return nil
				}
			}

			for _, p := range paths {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				err := enqueueAndWait(ctx, o, p, collectionID, video)
				cancel()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "path to a single local file to upload")
	cmd.Flags().StringVar(&dir, "dir", "", "directory to walk and upload every file under")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "include dotfiles when walking --dir")
	cmd.Flags().StringVar(&includeGlobs, "include", "", "comma-separated glob patterns; only matching files are uploaded (--dir only)")
	cmd.Flags().StringVar(&excludeGlobs, "exclude", "", "comma-separated glob patterns to skip (--dir only, takes precedence over --include)")
	cmd.Flags().Int64Var(&collectionID, "collection", 0, "destination collection id")
	cmd.Flags().DurationVar(&timeout, "timeout", 50*time.Minute, "maximum time to wait for each upload to finish")
	cmd.Flags().BoolVar(&video, "video", false, "treat the file(s) as video for concurrency-class purposes")
	return cmd
}

// collectDirFiles walks dir and returns the path of every regular,
// non-symlink file found that passes filterCfg, skipping dotfiles and
// dot-directories unless includeHidden is set.
func collectDirFiles(dir string, includeHidden bool, filterCfg filter.Config) ([]string, error) {
	var paths []string
	opts := localfs.WalkOptions{IncludeHidden: includeHidden, SkipHiddenDirs: !includeHidden}
	err := localfs.WalkFiles(dir, opts, func(entry localfs.FileEntry) error {
		rel, rerr := filepath.Rel(dir, entry.Path)
		if rerr != nil {
			rel = entry.Path
		}
		if filterCfg.Matches(entry.Name, rel) {
			paths = append(paths, entry.Path)
		}
		return nil
	})
	return paths, err
}

// enqueueAndWait validates, builds, enqueues, and blocks on a single file's
// upload, printing the result.
func enqueueAndWait(ctx context.Context, o *orchestrator.Orchestrator, path string, collectionID int64, video bool) error {
	if err := validation.ValidateFilePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	fileType := models.FileTypeImage
	if video {
		fileType = models.FileTypeVideo
	}

	local := models.LocalFile{
		LocalID:      localIDFor(path),
		GeneratedID:  path,
		Title:        filepath.Base(path),
		Type:         fileType,
		CollectionID: collectionID,
	}

	handle := o.Enqueue(local, collectionID)
	remote, err := handle.Wait(ctx.Done())
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}

	fmt.Printf("uploaded %s as remote file %d (collection %d)\n", path, remote.ID, remote.CollectionID)
	return nil
}

// localIDFor derives a stable local id from the resolved absolute file path,
// so repeated enqueues of the same path (including through a symlinked
// parent directory) resolve to the same queue item.
func localIDFor(path string) string {
	abs, err := pathutil.ResolveAbsolutePath(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])
}

func loadConfigAndState() (*config.Config, string, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if resolved := config.ResolveAuthToken(tokenFlag); resolved != "" {
		cfg.AuthToken = resolved
	}

	sp := statePath
	if sp == "" {
		sp = filepath.Join(cfg.TempDir, "uploadctl-state.json")
	}
	return cfg, sp, nil
}
