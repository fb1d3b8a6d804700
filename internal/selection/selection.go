// Package selection chooses the ordered list of images for one
// compilation. A resolved plan always has the shape [final, ...body, final]:
// the same final-tagged asset opens and closes the reel.
package selection

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/clipforge/clipforge-api/internal/mediacloud"
)

// Provider search expressions used by the policy.
const (
	finalPoolExpression = `resource_type:image AND (tags=final OR context.final="true")`
	candidateExpression = `resource_type:image AND -tags=reel`
)

// minCandidateFetch is the floor on how many candidates the random mode
// requests from the provider.
const minCandidateFetch = 50

// Static errors for selection.
var (
	// ErrNoFinalImage is returned when no asset anywhere carries the final flag.
	ErrNoFinalImage = errors.New("selection: no final image available")
	// ErrDuplicateImages is returned when a manual list contains repeats.
	ErrDuplicateImages = errors.New("selection: duplicate images in manual selection")
)

// ImageNotFoundError is returned when a manually selected public id does
// not resolve to an asset.
type ImageNotFoundError struct {
	PublicID string
}

func (e *ImageNotFoundError) Error() string {
	return fmt.Sprintf("selection: image not found: %s", e.PublicID)
}

// NotEnoughImagesError is returned when the filtered candidate pool is
// smaller than the requested count.
type NotEnoughImagesError struct {
	Available int
	Requested int
}

func (e *NotEnoughImagesError) Error() string {
	return fmt.Sprintf("selection: not enough images: requested %d, available %d", e.Requested, e.Available)
}

// Plan is the resolved ordered list of assets to render.
type Plan []mediacloud.Asset

// PublicIDs returns the plan's asset ids in render order.
func (p Plan) PublicIDs() []string {
	ids := make([]string, len(p))
	for i := range p {
		ids[i] = p[i].PublicID
	}
	return ids
}

// UniquePublicIDs returns the deduplicated set of source ids, preserving
// first-seen order. The bracket asset appears once.
func (p Plan) UniquePublicIDs() []string {
	seen := make(map[string]struct{}, len(p))
	ids := make([]string, 0, len(p))
	for i := range p {
		if _, ok := seen[p[i].PublicID]; ok {
			continue
		}
		seen[p[i].PublicID] = struct{}{}
		ids = append(ids, p[i].PublicID)
	}
	return ids
}

// Policy resolves compilation requests into plans.
type Policy struct {
	client mediacloud.Client
	// intn returns a uniform value in [0, n); replaceable for tests.
	intn func(n int) int
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithIntn replaces the uniform random source. Used by tests for
// deterministic selection.
func WithIntn(intn func(n int) int) PolicyOption {
	return func(p *Policy) {
		p.intn = intn
	}
}

// NewPolicy creates a selection Policy backed by the provider client.
func NewPolicy(client mediacloud.Client, opts ...PolicyOption) *Policy {
	p := &Policy{
		client: client,
		intn:   rand.IntN,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Manual resolves an explicit ordered list of public ids. Every id must
// exist; a final asset not already in the list is preferred as the
// bracket, falling back to any final asset when all finals were manually
// selected.
func (p *Policy) Manual(ctx context.Context, creds mediacloud.Credentials, publicIDs []string) (Plan, error) {
	seen := make(map[string]struct{}, len(publicIDs))
	for _, id := range publicIDs {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateImages, id)
		}
		seen[id] = struct{}{}
	}

	body := make([]mediacloud.Asset, 0, len(publicIDs))
	for _, id := range publicIDs {
		asset, err := p.client.FetchByPublicID(ctx, creds, id)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			return nil, &ImageNotFoundError{PublicID: id}
		}
		body = append(body, *asset)
	}

	finals, err := p.finalPool(ctx, creds)
	if err != nil {
		return nil, err
	}

	bracket := finals[0]
	for i := range finals {
		if _, selected := seen[finals[i].PublicID]; !selected {
			bracket = finals[i]
			break
		}
	}

	plan := make(Plan, 0, len(body)+2)
	plan = append(plan, bracket)
	plan = append(plan, body...)
	plan = append(plan, bracket)
	return plan, nil
}

// Random resolves a plan with count uniformly sampled body images,
// excluding anything already used in a reel and the chosen bracket asset.
func (p *Policy) Random(ctx context.Context, creds mediacloud.Credentials, count int) (Plan, error) {
	maxResults := minCandidateFetch
	if n := 3 * count; n > maxResults {
		maxResults = n
	}

	found, err := p.client.Search(ctx, creds, candidateExpression, maxResults)
	if err != nil {
		return nil, err
	}

	finals, err := p.finalPool(ctx, creds)
	if err != nil {
		return nil, err
	}
	bracket := finals[p.intn(len(finals))]

	// The search expression already excludes reel-tagged assets; the flag
	// check also drops anything marked through structured context.
	candidates := make([]mediacloud.Asset, 0, len(found))
	for i := range found {
		if found[i].IsReel() || found[i].PublicID == bracket.PublicID {
			continue
		}
		candidates = append(candidates, found[i])
	}

	if len(candidates) < count {
		return nil, &NotEnoughImagesError{Available: len(candidates), Requested: count}
	}

	body := Sample(candidates, count, p.intn)

	plan := make(Plan, 0, count+2)
	plan = append(plan, bracket)
	plan = append(plan, body...)
	plan = append(plan, bracket)
	return plan, nil
}

func (p *Policy) finalPool(ctx context.Context, creds mediacloud.Credentials) ([]mediacloud.Asset, error) {
	finals, err := p.client.Search(ctx, creds, finalPoolExpression, minCandidateFetch)
	if err != nil {
		return nil, err
	}
	if len(finals) == 0 {
		return nil, ErrNoFinalImage
	}
	return finals, nil
}

// Sample returns n assets drawn uniformly without replacement from pool,
// using a partial Fisher-Yates shuffle: every size-n ordered subset is
// equally likely. The input slice is not modified. Panics are avoided by
// clamping n to len(pool); callers validate sizes beforehand.
func Sample(pool []mediacloud.Asset, n int, intn func(int) int) []mediacloud.Asset {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return nil
	}

	working := make([]mediacloud.Asset, len(pool))
	copy(working, pool)

	for i := 0; i < n; i++ {
		j := i + intn(len(working)-i)
		working[i], working[j] = working[j], working[i]
	}
	return working[:n]
}
