package compute

import (
	"fmt"
	"sort"
	"strings"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/provisioning"
)

// SelectImage returns the most recently created image matching filter.
func SelectImage(ctx *provisioning.Context, filter cloud.ImageFilter) (*cloud.Image, error) {
	images, err := ctx.Infra.ListImages(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %s", cloud.ErrImageNotFound, describeFilter(filter))
	}

	sorted := append([]cloud.Image(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return &sorted[0], nil
}

func describeFilter(f cloud.ImageFilter) string {
	if f.NamePattern != "" {
		if len(f.Owners) > 0 {
			return fmt.Sprintf("name %q owned by %s", f.NamePattern, strings.Join(f.Owners, ","))
		}
		return fmt.Sprintf("name %q", f.NamePattern)
	}
	return fmt.Sprintf("%s:%s:%s", f.Publisher, f.Offer, f.SKU)
}
