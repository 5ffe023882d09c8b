package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive uploads into a Google Drive folder and returns the file's web view
// link.
type Drive struct {
	FolderID string
	// Public shares each uploaded file with anyone holding the link.
	Public bool

	srv *gdrive.Service
}

// NewDrive creates a Drive client. Without options it uses application
// default credentials.
func NewDrive(ctx context.Context, folderID string, opts ...option.ClientOption) (*Drive, error) {
	if len(opts) == 0 {
		opts = []option.ClientOption{option.WithScopes(gdrive.DriveFileScope)}
	}
	srv, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	return &Drive{FolderID: strings.TrimSpace(folderID), Public: true, srv: srv}, nil
}

// Exists looks for a non-trashed file named after key in the folder.
func (d *Drive) Exists(ctx context.Context, key string) (bool, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", driveQuote(path.Base(key)))
	if d.FolderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", driveQuote(d.FolderID))
	}
	res, err := d.srv.Files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("drive list: %w", err)
	}
	return len(res.Files) > 0, nil
}

func driveQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func (d *Drive) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	meta := &gdrive.File{Name: path.Base(key), MimeType: contentType(key)}
	if d.FolderID != "" {
		meta.Parents = []string{d.FolderID}
	}
	created, err := d.srv.Files.Create(meta).
		Media(f, googleapi.ChunkSize(2<<20)).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload: %w", err)
	}
	if d.Public {
		perm := &gdrive.Permission{Type: "anyone", Role: "reader"}
		if _, err := d.srv.Permissions.Create(created.Id, perm).Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("share drive file: %w", err)
		}
	}
	link := created.WebViewLink
	if link == "" {
		link = "https://drive.google.com/file/d/" + created.Id + "/view"
	}
	log.Info().Str("folder", d.FolderID).Str("file", created.Id).Msg("uploaded to drive")
	return link, nil
}
