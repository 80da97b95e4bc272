// Package library provides the ordered store of picked photos and videos
// that generation runs read from.
package library

import (
	"image"

	"github.com/google/uuid"
)

// Kind identifies the payload carried by an Item.
type Kind string

const (
	// KindPhoto items carry a decoded still image.
	KindPhoto Kind = "photo"
	// KindVideo items reference a video file on disk.
	KindVideo Kind = "video"
)

// Item is a single picked photo or video. Exactly one of Photo and
// VideoPath is set, matching Kind.
type Item struct {
	// ID is a random UUID assigned at creation.
	ID string
	// Kind selects the payload.
	Kind Kind
	// Photo is the decoded image of a photo item.
	Photo image.Image
	// VideoPath is the backing file of a video item.
	VideoPath string
}

// NewPhoto creates a photo item with a fresh ID.
func NewPhoto(img image.Image) Item {
	return Item{ID: uuid.NewString(), Kind: KindPhoto, Photo: img}
}

// NewVideo creates a video item with a fresh ID.
func NewVideo(path string) Item {
	return Item{ID: uuid.NewString(), Kind: KindVideo, VideoPath: path}
}
