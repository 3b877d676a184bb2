// Package cache keeps local problem datasets in sync with object storage.
package cache

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"judger/internal/common/cache"
	"judger/internal/common/storage"
	"judger/internal/judge/dataset"
	appErr "judger/pkg/errors"
	"judger/pkg/utils/logger"
)

const (
	markerFileName  = ".synced"
	lockKeyPrefix   = "judge:dataset:lock:"
	packExt         = ".tar.zst"
	defaultLockTTL  = 5 * time.Minute
	defaultLockWait = 30 * time.Second
	pollInterval    = 200 * time.Millisecond
)

// Config controls dataset synchronization.
type Config struct {
	Bucket    string        `yaml:"bucket"`
	KeyPrefix string        `yaml:"keyPrefix"`
	LockTTL   time.Duration `yaml:"lockTTL"`
	LockWait  time.Duration `yaml:"lockWait"`
}

// Preparer post-processes a freshly extracted dataset directory.
type Preparer func(ctx context.Context, dir string) error

// DatasetCache materializes problem datasets under the data directory,
// fetching missing ones from object storage. Local data always wins.
type DatasetCache struct {
	root     string
	cfg      Config
	storage  storage.ObjectStorage
	lock     cache.LockOps
	prepare  Preparer
	pollTick time.Duration
}

// NewDatasetCache creates a cache rooted at the data directory.
func NewDatasetCache(root string, cfg Config, storageClient storage.ObjectStorage, lock cache.LockOps, prepare Preparer) *DatasetCache {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}
	return &DatasetCache{
		root:     root,
		cfg:      cfg,
		storage:  storageClient,
		lock:     lock,
		prepare:  prepare,
		pollTick: pollInterval,
	}
}

// Open ensures the dataset is present and enumerates it.
func (c *DatasetCache) Open(ctx context.Context, problemID int64) (dataset.Dataset, error) {
	if _, err := c.Ensure(ctx, problemID); err != nil {
		return dataset.Dataset{}, err
	}
	return dataset.Open(c.root, problemID)
}

// Ensure returns the local dataset directory of a problem, downloading the
// data pack when the directory holds no cases yet. A pack missing from
// storage is not an error; the directory is returned as is.
func (c *DatasetCache) Ensure(ctx context.Context, problemID int64) (string, error) {
	if problemID < 0 {
		return "", appErr.ValidationError("problem_id", "must be non-negative")
	}
	dir := dataset.Dir(c.root, problemID)
	if c.ready(dir) {
		return dir, nil
	}
	if c.storage == nil {
		return dir, nil
	}
	if c.lock == nil {
		return "", appErr.New(appErr.CacheError).WithMessage("lock client is not initialized")
	}

	lockKey := lockKeyPrefix + strconv.FormatInt(problemID, 10)
	locked, err := c.lock.TryLock(ctx, lockKey, c.cfg.LockTTL)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.LockFailed, "acquire dataset lock failed")
	}
	if !locked {
		return dir, c.waitForSync(ctx, dir)
	}
	stopRenew := c.renewLock(ctx, lockKey)
	defer func() {
		stopRenew()
		_ = c.lock.Unlock(context.WithoutCancel(ctx), lockKey)
	}()

	if c.ready(dir) {
		return dir, nil
	}
	if err := c.sync(ctx, problemID, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// renewLock extends the lock every third of its TTL until the returned stop
// function is called, so a slow download does not lose it to expiry.
func (c *DatasetCache) renewLock(ctx context.Context, key string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(c.cfg.LockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.lock.ExtendLock(ctx, key, c.cfg.LockTTL); err != nil {
					logger.Warn(ctx, "extend dataset lock failed", zap.String("key", key), zap.Error(err))
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (c *DatasetCache) ready(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, markerFileName)); err == nil {
		return true
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.in"))
	return len(matches) > 0
}

func (c *DatasetCache) sync(ctx context.Context, problemID int64, dir string) error {
	key := c.cfg.KeyPrefix + strconv.FormatInt(problemID, 10) + packExt
	stat, err := c.storage.StatObject(ctx, c.cfg.Bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.Warn(ctx, "data pack not found", zap.Int64("problem_id", problemID), zap.String("key", key))
			return nil
		}
		return appErr.Wrapf(err, appErr.DatasetUnavailable, "stat data pack failed")
	}

	if err := os.MkdirAll(c.root, 0755); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create data root failed")
	}
	staging, err := os.MkdirTemp(c.root, ".staging-")
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create staging dir failed")
	}
	defer os.RemoveAll(staging)

	reader, err := c.storage.GetObject(ctx, c.cfg.Bucket, key)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatasetUnavailable, "download data pack failed")
	}
	err = extractDataPack(reader, staging)
	_ = reader.Close()
	if err != nil {
		return err
	}

	if c.prepare != nil {
		if err := c.prepare(ctx, staging); err != nil {
			logger.Error(ctx, "prepare special judge failed", zap.Int64("problem_id", problemID), zap.Error(err))
		}
	}
	if err := os.WriteFile(filepath.Join(staging, markerFileName), []byte(stat.ETag), 0644); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "write sync marker failed")
	}
	if err := os.RemoveAll(dir); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "cleanup dataset dir failed")
	}
	if err := os.Rename(staging, dir); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "install dataset failed")
	}
	logger.Info(ctx, "dataset synced",
		zap.Int64("problem_id", problemID),
		zap.String("etag", stat.ETag),
		zap.Int64("size_bytes", stat.SizeBytes),
	)
	return nil
}

func (c *DatasetCache) waitForSync(ctx context.Context, dir string) error {
	deadline := time.Now().Add(c.cfg.LockWait)
	for {
		if c.ready(dir) {
			return nil
		}
		if time.Now().After(deadline) {
			return appErr.New(appErr.Timeout).WithMessage("wait for dataset sync timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollTick):
		}
	}
}

func extractDataPack(src io.Reader, dstDir string) error {
	zstdReader, err := zstd.NewReader(src)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatasetInvalid, "create zstd reader failed")
	}
	defer zstdReader.Close()

	tr := tar.NewReader(zstdReader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.DatasetInvalid, "read tar entry failed")
		}
		if hdr.Name == "" {
			continue
		}
		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return appErr.New(appErr.DatasetInvalid).WithMessage("invalid tar entry path")
		}
		target := filepath.Join(dstDir, cleanName)
		if !strings.HasPrefix(target, filepath.Clean(dstDir)+string(filepath.Separator)) {
			return appErr.New(appErr.DatasetInvalid).WithMessage("tar entry escape detected")
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create dir failed")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create parent dir failed")
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode).Perm())
			if err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create file failed")
			}
			if _, err := io.Copy(file, tr); err != nil {
				_ = file.Close()
				return appErr.Wrapf(err, appErr.CacheError, "write file failed")
			}
			_ = file.Close()
		default:
			// links and devices are never part of a data pack
		}
	}
	return nil
}
