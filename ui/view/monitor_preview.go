package view

import (
	"image"

	"github.com/soocke/study-buddy-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// MonitorPreview shows the live (annotated) camera frame next to the snapshot
// of the most recent distraction.
type MonitorPreview interface {
	UpdatePreview(img image.Image)
	UpdateSnapshot(img image.Image)
	Reset()
}

type monitorPreview struct {
	previewLabel  *LabelWidget
	snapshotLabel *LabelWidget
	prevPreview   *Img
	prevSnapshot  *Img
}

const (
	maxPreviewW = 480
	maxPreviewH = 270
)

// NewMonitorPreview grids the preview across columns 0-3 and the snapshot at column 4 of row.
func NewMonitorPreview(row int) MonitorPreview {
	pngBytes := placeholder(maxPreviewW/2, maxPreviewH/2)
	prev := NewPhoto(Data(pngBytes))
	snap := NewPhoto(Data(placeholder(120, 120)))
	preview := Label(Image(prev), Borderwidth(1), Relief("sunken"))
	snapshot := Label(Image(snap), Borderwidth(1), Relief("sunken"))
	Grid(preview, Row(row), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	Grid(snapshot, Row(row), Column(4), Sticky("n"), Padx("0.4m"), Pady("0.4m"))
	return &monitorPreview{previewLabel: preview, snapshotLabel: snapshot, prevPreview: prev, prevSnapshot: snap}
}

func placeholder(w, h int) []byte {
	return images.EncodePNG(image.NewRGBA(image.Rect(0, 0, w, h)))
}

// swap replaces the label image and frees the previous Tk photo.
func swap(label *LabelWidget, prev **Img, pngBytes []byte) {
	if label == nil || len(pngBytes) == 0 {
		return
	}
	if *prev != nil {
		(*prev).Delete()
	}
	*prev = NewPhoto(Data(pngBytes))
	label.Configure(Image(*prev))
}

func (v *monitorPreview) UpdatePreview(img image.Image) {
	if img == nil {
		return
	}
	swap(v.previewLabel, &v.prevPreview, images.EncodePNG(images.ScaleToFit(img, maxPreviewW, maxPreviewH)))
}

func (v *monitorPreview) UpdateSnapshot(img image.Image) {
	if img == nil {
		return
	}
	swap(v.snapshotLabel, &v.prevSnapshot, images.EncodePNG(img))
}

func (v *monitorPreview) Reset() {
	swap(v.previewLabel, &v.prevPreview, placeholder(maxPreviewW/2, maxPreviewH/2))
}
