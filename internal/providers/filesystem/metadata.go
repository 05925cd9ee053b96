package filesystem

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DirectoryMimeType is reported for folders, which have no content to sniff.
const DirectoryMimeType = "inode/directory"

// Metadata describes a single file or folder.
type Metadata struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	ModifiedAt int64  `json:"mtime"`
	Size       int64  `json:"size"`
	IsFolder   bool   `json:"isFolder"`
	MimeType   string `json:"mimeType"`
	Extension  string `json:"extension,omitempty"`
	IsText     bool   `json:"isText"`
}

// Describe stats name and, for regular files, sniffs its MIME type from the
// leading bytes of its content.
func Describe(ctx context.Context, fsys FS, name string) (Metadata, error) {
	info, err := fsys.Stat(ctx, name)
	if err != nil {
		return Metadata{}, err
	}

	md := Metadata{
		Name:       info.Name(),
		Path:       clean(name),
		ModifiedAt: info.ModTime().UnixMilli(),
		Size:       info.Size(),
		IsFolder:   info.IsDir(),
	}
	if md.IsFolder {
		md.MimeType = DirectoryMimeType
		return md, nil
	}

	f, err := fsys.Open(ctx, name)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("mime detection failed: %w", err)
	}

	md.MimeType = mtype.String()
	md.Extension = mtype.Extension()
	if md.Extension == "" {
		md.Extension = path.Ext(md.Name)
	}
	md.IsText = isText(mtype)
	return md, nil
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	switch {
	case mtype.Is("application/json"), mtype.Is("application/xml"), mtype.Is("application/javascript"):
		return true
	}
	return false
}
