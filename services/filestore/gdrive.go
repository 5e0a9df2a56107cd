// Package filestoresvc implements the file-storage collaborator of shared files: Google Drive
// in production, the local disk for development.
package filestoresvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/message"
)

const (
	defaultDriveURL  = "https://www.googleapis.com"
	driveScope       = "https://www.googleapis.com/auth/drive.file"
	driveHTTPTimeout = 60 * time.Second
)

// GoogleDrive stores files in a Drive folder and shares them with anyone holding the link.
type GoogleDrive struct {
	client   *http.Client
	baseURL  string
	folderID string
	logger   core.Logger
}

var _ message.FileStorage = (*GoogleDrive)(nil)

func NewGoogleDrive(ctx context.Context, conf *core.Config, logger core.Logger) (*GoogleDrive, error) {
	data, err := os.ReadFile(conf.Google.DriveCredentialsFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading drive credentials")
	}
	creds, err := google.CredentialsFromJSON(ctx, data, driveScope)
	if err != nil {
		return nil, errors.Wrap(err, "parsing drive credentials")
	}
	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = driveHTTPTimeout
	return NewGoogleDriveWithClient(client, defaultDriveURL, conf.Google.DriveFolderID, logger), nil
}

// NewGoogleDriveWithClient uses an already authenticated client against baseURL.
func NewGoogleDriveWithClient(client *http.Client, baseURL, folderID string, logger core.Logger) *GoogleDrive {
	if baseURL == "" {
		baseURL = defaultDriveURL
	}
	return &GoogleDrive{client: client, baseURL: baseURL, folderID: folderID, logger: logger}
}

type driveFile struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	MimeType    string   `json:"mimeType,omitempty"`
	Parents     []string `json:"parents,omitempty"`
	WebViewLink string   `json:"webViewLink,omitempty"`
}

// Store uploads the file in one multipart request, then makes it readable by link.
// A file that cannot be shared is still returned: its owner can reach it.
func (d *GoogleDrive) Store(ctx context.Context, r io.Reader, meta message.FileMeta) (message.StoredFile, error) {
	df := driveFile{Name: meta.Name, MimeType: meta.ContentType}
	if d.folderID != "" {
		df.Parents = []string{d.folderID}
	}

	body, contentType, err := multipartBody(df, r, meta.ContentType)
	if err != nil {
		return message.StoredFile{}, err
	}

	q := make(url.Values)
	q.Set("uploadType", "multipart")
	q.Set("fields", "id,name,webViewLink")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/upload/drive/v3/files?"+q.Encode(), body)
	if err != nil {
		return message.StoredFile{}, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return message.StoredFile{}, errors.Wrap(err, "uploading to drive")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return message.StoredFile{}, responseError("uploading to drive", resp)
	}

	var created driveFile
	if err = json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return message.StoredFile{}, errors.Wrap(err, "decoding drive file")
	}

	if err = d.share(ctx, created.ID); err != nil {
		d.logger.Error(fmt.Sprintf("sharing drive file %s", created.ID), err)
	}
	return message.StoredFile{ID: created.ID, URL: created.WebViewLink}, nil
}

func multipartBody(df driveFile, r io.Reader, contentType string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaPart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, "", err
	}
	if err = json.NewEncoder(metaPart).Encode(df); err != nil {
		return nil, "", err
	}

	filePart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return nil, "", err
	}
	if _, err = io.Copy(filePart, r); err != nil {
		return nil, "", errors.Wrap(err, "reading file")
	}
	if err = w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, "multipart/related; boundary=" + w.Boundary(), nil
}

func (d *GoogleDrive) share(ctx context.Context, fileID string) error {
	body, _ := json.Marshal(map[string]string{"role": "reader", "type": "anyone"})
	u := fmt.Sprintf("%s/drive/v3/files/%s/permissions", d.baseURL, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError("sharing drive file", resp)
	}
	return nil
}

// Open streams the file content. The caller closes the returned reader.
func (d *GoogleDrive) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/drive/v3/files/%s?alt=media", d.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "downloading from drive")
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, message.ErrFileNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, responseError("downloading from drive", resp)
	}
	return resp.Body, nil
}

func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("%s: status=%d body=%s", op, resp.StatusCode, string(body))
}
