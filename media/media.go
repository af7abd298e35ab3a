// Package media is the Media Manager: eject-button debouncing,
// image-directory cycling, and the GET EVENT STATUS NOTIFICATION
// state machine a CD-ROM target uses to tell a host its media
// changed (§4.7).
package media

import (
	"fmt"
	"sort"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/sense"
)

const (
	eventNone    byte = 0x00
	eventNewMedia byte = 0x02
	eventRemoval byte = 0x03
)

// Target holds the media-cycling and eject state for one SCSI target.
// It does not itself open image files — Images lists what
// SwitchNextImage cycles through; the caller (the command core) is
// responsible for actually opening whatever CurrentImage() names.
type Target struct {
	IsCDROM            bool
	ReinsertAfterEject bool

	Images       []string
	imageIndex   int
	ejected      bool
	pendingEvent byte

	// UnitAttention is the sticky condition a command core should
	// surface and then clear after media changes underneath the host.
	UnitAttention sense.Condition
}

// NewTarget returns a Target over a fixed image list, already sorted
// into the lexical order SwitchNextImage walks (§4.7: "directory in
// lexical order"). A single-image target still needs this list to
// reinsert itself.
func NewTarget(isCDROM bool, images []string) *Target {
	sorted := append([]string(nil), images...)
	sort.Strings(sorted)
	return &Target{IsCDROM: isCDROM, Images: sorted}
}

// CurrentImage is the path this target is currently presenting, or
// "" if no images are configured.
func (t *Target) CurrentImage() string {
	if len(t.Images) == 0 {
		return ""
	}
	return t.Images[t.imageIndex]
}

// Ejected reports whether the tray is currently open.
func (t *Target) Ejected() bool { return t.ejected }

// SwitchNextImage advances to the next image in lexical order,
// wrapping to the first past the end (§4.7).
func (t *Target) SwitchNextImage() {
	if len(t.Images) == 0 {
		return
	}
	t.imageIndex = (t.imageIndex + 1) % len(t.Images)
}

// Eject opens the tray: marks ejected, posts the media-removal event,
// and switches to the next image so it is ready when the host next
// polls (§4.7), grounded on cdromPerformEject. Calling Eject while
// already ejected closes the tray instead, mirroring the original's
// toggle behavior for a single eject-button press.
func (t *Target) Eject() {
	if t.ejected {
		t.CloseTray()
		return
	}
	t.ejected = true
	t.pendingEvent = eventRemoval
	t.SwitchNextImage()
}

// CloseTray closes the tray and posts the new-media event plus a
// NOT_READY_TO_READY_TRANSITION unit attention, grounded on
// cdromCloseTray.
func (t *Target) CloseTray() {
	if !t.ejected {
		return
	}
	t.ejected = false
	t.pendingEvent = eventNewMedia
	t.UnitAttention = sense.NotReadyToReadyTransition()
}

// ReinsertFirstImage restarts cycling from the first configured image
// (used on a cold boot with multiple images configured) or, for a
// single-image target left ejected across a restart, simply closes
// the tray — grounded on cdromReinsertFirstImage.
func (t *Target) ReinsertFirstImage() {
	if len(t.Images) > 1 {
		t.imageIndex = 0
		return
	}
	if t.ejected {
		t.CloseTray()
	}
}

// EventStatusNotification answers GET EVENT STATUS NOTIFICATION
// (immed must be set — asynchronous notification is not supported,
// grounded on doGetEventStatusNotification's ILLEGAL_REQUEST path).
func (t *Target) EventStatusNotification(immed bool) ([]byte, error) {
	if !immed {
		return nil, fmt.Errorf("media: asynchronous event notification not supported")
	}

	if t.pendingEvent != eventNone {
		data := []byte{
			0x00, 0x06, // EventDataLength
			0x04,             // media status events
			0x04,             // supported events
			t.pendingEvent,   // media event code
			0x01,             // power status
			0x00, 0x00,       // start/end slot
		}
		t.pendingEvent = eventNone

		// "stays ejected until the host polls once": having just told
		// the host the tray opened, simulate the close for next time
		// so the next poll (or command) sees fresh media (§4.7).
		if t.ejected && t.ReinsertAfterEject {
			t.CloseTray()
		}

		return data, nil
	}

	return []byte{0x00, 0x02, eventNone, 0x04}, nil
}
