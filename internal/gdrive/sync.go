// Package gdrive uploads rendered meeting summaries to a Google Drive
// folder as Docs, one per meeting.
package gdrive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type Uploader struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewUploader(ctx context.Context, credPath, folderID string) (*Uploader, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithParams(ctx, creds, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Uploader{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// UploadSummary creates (or, on a repeated call for the same meeting,
// updates) a Doc named after the meeting containing the Markdown summary.
func (u *Uploader) UploadSummary(meetingID, markdown string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	body := strings.NewReader(markdown)
	name := fmt.Sprintf("meeting-summary-%s", meetingID)

	if fileID, ok := u.fileIDs[meetingID]; ok {
		_, err := u.service.Files.Update(fileID, &drive.File{}).Media(body).Do()
		if err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	doc, err := u.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.document",
		Parents:  []string{u.folderID},
	}).Media(body).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	u.fileIDs[meetingID] = doc.Id
	return nil
}
