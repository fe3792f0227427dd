// Package drive mirrors finished artifacts into a Google Drive folder.
package drive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"nsecli/internal/config"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Uploader uploads artifact files into a named Drive folder, replacing any
// file of the same name so the folder never accumulates duplicates.
type Uploader struct {
	service    *drive.Service
	folderName string
	logger     *slog.Logger

	mu       sync.Mutex
	folderID string
}

// NewUploader authenticates against Drive with the configured service
// account credentials.
func NewUploader(ctx context.Context, cfg config.DriveConfig, logger *slog.Logger) (*Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	service, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(drive.DriveFileScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Uploader{
		service:    service,
		folderName: cfg.FolderName,
		logger:     logger.With(slog.String("component", "drive_uploader")),
	}, nil
}

// folder returns the destination folder id, creating the folder in the Drive
// root on first use.
func (u *Uploader) folder(ctx context.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.folderID != "" {
		return u.folderID, nil
	}

	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false and 'root' in parents",
		u.folderName, folderMimeType)
	list, err := u.service.Files.List().Q(query).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("find folder %s: %w", u.folderName, err)
	}
	if len(list.Files) > 0 {
		u.folderID = list.Files[0].Id
		return u.folderID, nil
	}

	folder, err := u.service.Files.Create(&drive.File{
		Name:     u.folderName,
		MimeType: folderMimeType,
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder %s: %w", u.folderName, err)
	}
	u.logger.InfoContext(ctx, "drive folder created",
		slog.String("folder", u.folderName),
		slog.String("folder_id", folder.Id))
	u.folderID = folder.Id
	return u.folderID, nil
}

// Upload replaces any same-named file in the destination folder with data
// and returns the new file id.
func (u *Uploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	folderID, err := u.folder(ctx)
	if err != nil {
		return "", err
	}

	if err := u.deleteExisting(ctx, filename, folderID); err != nil {
		return "", err
	}

	file, err := u.service.Files.Create(&drive.File{
		Name:    filename,
		Parents: []string{folderID},
	}).Media(bytes.NewReader(data)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}

	u.logger.InfoContext(ctx, "artifact uploaded",
		slog.String("filename", filename),
		slog.String("file_id", file.Id),
		slog.Int("bytes", len(data)))
	return file.Id, nil
}

func (u *Uploader) deleteExisting(ctx context.Context, filename, folderID string) error {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", filename, folderID)
	list, err := u.service.Files.List().Q(query).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("find existing %s: %w", filename, err)
	}
	for _, f := range list.Files {
		if err := u.service.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
			return fmt.Errorf("delete existing %s: %w", filename, err)
		}
	}
	return nil
}
