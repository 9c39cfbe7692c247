package state

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/sokinpui/mend.go/internal/fs"
)

// BackupSuffix is appended to the target path to name its backup.
const BackupSuffix = ".bak"

// ErrNoBackupFound is returned when a revert is requested without a backup.
var ErrNoBackupFound = errors.New("no backup found")

// Manager owns the single-generation backup of one target file.
type Manager struct {
	target     string
	backupPath string
}

// New creates a backup manager for target.
func New(target string) *Manager {
	return &Manager{target: target, backupPath: target + BackupSuffix}
}

// BackupPath is where the backup lives.
func (m *Manager) BackupPath() string { return m.backupPath }

// HasBackup reports whether a backup exists.
func (m *Manager) HasBackup() bool {
	info, err := os.Stat(m.backupPath)
	return err == nil && info.Mode().IsRegular()
}

// Backup overwrites the backup with the current content of the target and
// verifies the copy.
func (m *Manager) Backup() error {
	if err := fs.CopyFile(m.target, m.backupPath); err != nil {
		return fmt.Errorf("failed to back up %s: %w", m.target, err)
	}

	want, err := fs.GetFileSHA256(m.target)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", m.target, err)
	}
	got, err := fs.GetFileSHA256(m.backupPath)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", m.backupPath, err)
	}
	if got != want {
		return fmt.Errorf("backup %s does not match %s", m.backupPath, m.target)
	}

	log.Debugf("backed up %s (sha256 %s)", m.target, want[:12])
	return nil
}

// Restore copies the backup over the target. The backup is kept.
func (m *Manager) Restore() error {
	if !m.HasBackup() {
		return fmt.Errorf("%w for %s", ErrNoBackupFound, m.target)
	}
	if err := fs.CopyFile(m.backupPath, m.target); err != nil {
		return fmt.Errorf("failed to restore %s: %w", m.target, err)
	}
	return nil
}
