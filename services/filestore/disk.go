package filestoresvc

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/message"
)

// Disk stores files under a local directory and serves them back through the API.
type Disk struct {
	dir       string
	publicURL string
}

var _ message.FileStorage = (*Disk)(nil)

func NewDisk(conf *core.Config) (*Disk, error) {
	if err := os.MkdirAll(conf.Storage.Dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	return &Disk{dir: conf.Storage.Dir, publicURL: conf.Server.PublicURL}, nil
}

func (d *Disk) Store(_ context.Context, r io.Reader, _ message.FileMeta) (message.StoredFile, error) {
	id := uuid.NewString()
	f, err := os.OpenFile(filepath.Join(d.dir, id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return message.StoredFile{}, errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return message.StoredFile{}, errors.Wrap(err, "writing file")
	}
	if err = f.Close(); err != nil {
		return message.StoredFile{}, errors.Wrap(err, "closing file")
	}
	return message.StoredFile{ID: id, URL: d.publicURL + "/api/files/" + id}, nil
}

func (d *Disk) Open(_ context.Context, id string) (io.ReadCloser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, message.ErrFileNotFound
	}
	f, err := os.Open(filepath.Join(d.dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, message.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}
