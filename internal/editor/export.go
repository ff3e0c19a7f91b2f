package editor

import (
	"sync"

	"golang.design/x/clipboard"

	"github.com/dgnsrekt/pagesnap/internal/snapshot"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

// Clipboard receives copied images.
type Clipboard interface {
	WriteImage(png []byte) error
}

var (
	clipboardOnce sync.Once
	clipboardErr  error
)

// SystemClipboard writes to the desktop clipboard. The first use
// initializes the platform backend; a failed init fails every copy.
type SystemClipboard struct{}

func (SystemClipboard) WriteImage(png []byte) error {
	clipboardOnce.Do(func() {
		clipboardErr = clipboard.Init()
	})
	if clipboardErr != nil {
		return types.NewError(types.CodeExportFailure, "clipboard unavailable", clipboardErr)
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

// Exporter sends an editor's current document to the clipboard or the
// export directory.
type Exporter struct {
	Clipboard Clipboard
	Store     *snapshot.Store
}

func (x Exporter) Copy(e *Editor) error {
	if x.Clipboard == nil {
		return types.NewError(types.CodeExportFailure, "no clipboard configured", nil)
	}
	data, err := e.PNG()
	if err != nil {
		return err
	}
	if err := x.Clipboard.WriteImage(data); err != nil {
		if types.CodeOf(err) == "" {
			return types.NewError(types.CodeExportFailure, "copy image", err)
		}
		return err
	}
	return nil
}

// Download writes the document as pagesnap-<timestamp>.png.
func (x Exporter) Download(e *Editor) (snapshot.Meta, error) {
	if x.Store == nil {
		return snapshot.Meta{}, types.NewError(types.CodeExportFailure, "no export directory configured", nil)
	}
	data, err := e.PNG()
	if err != nil {
		return snapshot.Meta{}, err
	}
	info := e.Info()
	return x.Store.Save(snapshot.Meta{
		Width:     info.Width,
		Height:    info.Height,
		EditorID:  info.ID,
		SourceURL: info.SourceURL,
		Mode:      string(info.Mode),
	}, data)
}
