package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/database"
)

const (
	backupDirFormat  = "2006-01-02-150405"
	archivePrefix    = "lodestar-backup-"
	minBackupsToKeep = 3
)

// BackupService snapshots every database into a timestamped directory
// using VACUUM INTO, so each copy is a consistent standalone file. When
// an S3 client is configured the snapshot is also archived and uploaded.
type BackupService struct {
	databases []*database.DB
	backupDir string
	keep      int
	s3        *S3Client
	log       zerolog.Logger
}

// BackupMetadata describes one backup set.
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database file in a backup set.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes a local backup set for the system API.
type BackupInfo struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewBackupService creates a new backup service. The s3 client may be
// nil, in which case backups stay local only. keep bounds how many
// local backup sets survive rotation.
func NewBackupService(databases []*database.DB, backupDir string, keep int, s3 *S3Client, log zerolog.Logger) *BackupService {
	if keep < minBackupsToKeep {
		keep = minBackupsToKeep
	}
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		keep:      keep,
		s3:        s3,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// BackupAll snapshots every database, rotates old local sets, and
// uploads an archive off-site when S3 is configured.
func (s *BackupService) BackupAll() error {
	started := time.Now()
	setName := started.UTC().Format(backupDirFormat)
	setDir := filepath.Join(s.backupDir, setName)

	if err := os.MkdirAll(setDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	metadata := BackupMetadata{
		Timestamp: started.UTC(),
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}

	for _, db := range s.databases {
		destPath := filepath.Join(setDir, db.Name()+".db")
		if err := db.BackupTo(destPath); err != nil {
			return err
		}

		info, err := os.Stat(destPath)
		if err != nil {
			return fmt.Errorf("failed to stat %s backup: %w", db.Name(), err)
		}
		checksum, err := fileChecksum(destPath)
		if err != nil {
			return fmt.Errorf("failed to checksum %s backup: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  db.Name() + ".db",
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	if err := writeMetadata(filepath.Join(setDir, "backup-metadata.json"), metadata); err != nil {
		return fmt.Errorf("failed to write backup metadata: %w", err)
	}

	if err := s.rotateLocal(); err != nil {
		s.log.Warn().Err(err).Msg("Local backup rotation failed")
	}

	if s.s3 != nil {
		if err := s.uploadSet(setName, setDir); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("set", setName).
		Int("databases", len(s.databases)).
		Dur("duration", time.Since(started)).
		Msg("Backup completed")

	return nil
}

// ListBackups returns local backup sets, newest first.
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var sets []BackupInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ts, err := time.Parse(backupDirFormat, entry.Name())
		if err != nil {
			continue
		}
		sets = append(sets, BackupInfo{
			Name:      entry.Name(),
			Timestamp: ts,
			SizeBytes: dirSize(filepath.Join(s.backupDir, entry.Name())),
		})
	}

	sort.Slice(sets, func(i, j int) bool {
		return sets[i].Timestamp.After(sets[j].Timestamp)
	})
	return sets, nil
}

// rotateLocal deletes the oldest local sets beyond the keep limit.
func (s *BackupService) rotateLocal() error {
	sets, err := s.ListBackups()
	if err != nil {
		return err
	}

	for i := s.keep; i < len(sets); i++ {
		target := filepath.Join(s.backupDir, sets[i].Name)
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", sets[i].Name, err)
		}
		s.log.Info().Str("set", sets[i].Name).Msg("Deleted old backup set")
	}
	return nil
}

// uploadSet archives a backup set and pushes it to the object store.
func (s *BackupService) uploadSet(setName, setDir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	archiveName := archivePrefix + setName + ".tar.gz"
	archivePath := filepath.Join(s.backupDir, archiveName)
	if err := createArchive(archivePath, setDir); err != nil {
		return fmt.Errorf("failed to create backup archive: %w", err)
	}
	defer os.Remove(archivePath)

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open backup archive: %w", err)
	}
	defer file.Close()

	if err := s.s3.Upload(ctx, archiveName, file); err != nil {
		return err
	}

	if err := s.rotateRemote(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Remote backup rotation failed")
	}

	s.log.Info().Str("archive", archiveName).Msg("Backup uploaded")
	return nil
}

// rotateRemote trims remote archives to the keep limit, never going
// below the minimum regardless of age.
func (s *BackupService) rotateRemote(ctx context.Context) error {
	objects, err := s.s3.List(ctx)
	if err != nil {
		return err
	}

	var names []string
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		base := filepath.Base(*obj.Key)
		if !strings.HasPrefix(base, archivePrefix) || !strings.HasSuffix(base, ".tar.gz") {
			continue
		}
		names = append(names, base)
	}

	// Names embed the timestamp, so lexical order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for i := s.keep; i < len(names); i++ {
		if i < minBackupsToKeep {
			continue
		}
		if err := s.s3.Delete(ctx, names[i]); err != nil {
			s.log.Error().Err(err).Str("archive", names[i]).Msg("Failed to delete remote backup")
			continue
		}
		s.log.Info().Str("archive", names[i]).Msg("Deleted remote backup")
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// createArchive packs every regular file in sourceDir into a tar.gz.
func createArchive(archivePath, sourceDir string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, entry.Name()), entry.Name()); err != nil {
			return fmt.Errorf("failed to archive %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}
