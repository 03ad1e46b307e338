// Package assets loads model descriptors for scene actors.
package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/mapscene/animator/internal/util"
	"github.com/mapscene/animator/pkg/core"
)

// ErrAssetLoad wraps every failure to fetch or decode an asset.
var ErrAssetLoad = errors.New("asset load failed")

// Loader fetches a model by URL.
type Loader interface {
	Load(ctx context.Context, url string) (*core.Asset, error)
}

// LoaderFunc adapts a function into a Loader.
type LoaderFunc func(ctx context.Context, url string) (*core.Asset, error)

func (fn LoaderFunc) Load(ctx context.Context, url string) (*core.Asset, error) {
	return fn(ctx, url)
}

// Normalize fills defaults and rejects assets with unusable dimensions.
func Normalize(a *core.Asset, url string) error {
	if a.URL == "" {
		a.URL = url
	}
	if !util.IsFinite(a.WidthM, a.DepthM, a.HeightM, a.Scale) {
		return fmt.Errorf("%w: %s: non-finite dimensions", ErrAssetLoad, url)
	}
	if a.WidthM <= 0 || a.DepthM <= 0 {
		return fmt.Errorf("%w: %s: footprint %vx%v m", ErrAssetLoad, url, a.WidthM, a.DepthM)
	}
	if a.HeightM < 0 {
		return fmt.Errorf("%w: %s: negative height", ErrAssetLoad, url)
	}
	if a.Scale <= 0 {
		a.Scale = 1
	}
	if a.Color == "" {
		a.Color = "#b2bec3"
	}
	return nil
}
