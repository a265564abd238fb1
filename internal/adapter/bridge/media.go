package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/identity"
	"github.com/mmcdole/camroll/internal/media"
)

// Entry converts a device photo into a catalog entry owned by owner
func (p Photo) Entry(owner string) domain.MediaEntry {
	e := domain.MediaEntry{
		Identity:       identity.Encode(p.Path),
		Filename:       p.Filename,
		Folder:         p.Folder,
		SizeBytes:      p.Size,
		Width:          p.Width,
		Height:         p.Height,
		OwnerBackendID: owner,
	}
	if p.Created > 0 {
		e.CreatedAt = time.Unix(p.Created, 0).UTC()
	}
	if p.Modified > 0 {
		e.ModifiedAt = time.Unix(p.Modified, 0).UTC()
	} else {
		e.ModifiedAt = e.CreatedAt
	}
	return e
}

// Entries converts photos, skipping anything that is not a collected media file
func Entries(photos []Photo, owner string) []domain.MediaEntry {
	if len(photos) == 0 {
		return nil
	}
	entries := make([]domain.MediaEntry, 0, len(photos))
	for _, p := range photos {
		if p.Path == "" || !media.IsMediaFile(p.Filename) {
			continue
		}
		entries = append(entries, p.Entry(owner))
	}
	return entries
}

// FetchImage downloads the item behind id from udid, downscaling for thumbnails
func (c *Client) FetchImage(ctx context.Context, udid, id string, res domain.Resolution, thumbSize int) (*domain.Image, error) {
	path, err := identity.Decode(id)
	if err != nil {
		return nil, err
	}

	data, err := c.GetPhoto(ctx, udid, path)
	if err != nil {
		return nil, err
	}

	if res == domain.ResolutionFull {
		return &domain.Image{Data: data, MIMEType: media.MIMEType(path)}, nil
	}

	thumb, err := media.Thumbnail(data, thumbSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	return &domain.Image{Data: thumb, MIMEType: "image/jpeg"}, nil
}
