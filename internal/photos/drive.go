package photos

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Uploader stores a photo and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// DriveStore keeps photos in one Google Drive folder, readable by anyone
// with the link.
type DriveStore struct {
	client   *drive.Service
	folderID string
}

// NewDriveStore authenticates with a service account credentials file.
// Extra options are passed to the Drive client.
func NewDriveStore(ctx context.Context, credentialsPath, folderID string, opts ...option.ClientOption) (*DriveStore, error) {
	if credentialsPath != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsPath)}, opts...)
	}
	client, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DriveStore{client: client, folderID: folderID}, nil
}

func (s *DriveStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	file := &drive.File{Name: key}
	if s.folderID != "" {
		file.Parents = []string{s.folderID}
	}

	created, err := s.client.Files.Create(file).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	_, err = s.client.Permissions.Create(created.Id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to share %s: %w", key, err)
	}

	return publicURL(created.Id), nil
}

func publicURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/uc?id=%s", fileID)
}
