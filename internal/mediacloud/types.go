// Package mediacloud provides an HTTP client for the remote media storage
// provider: asset search, fetch, tagging, context updates, and video upload.
// Mutating calls carry the provider's canonical request signature; read-only
// calls use HTTP Basic authentication.
package mediacloud

// Tags with semantic meaning to the reel compiler.
const (
	// TagReel marks an asset that was already used in a compilation.
	TagReel = "reel"
	// TagFinal marks an asset eligible to open and close a compilation.
	TagFinal = "final"
)

// Tag update commands accepted by the provider.
const (
	TagCommandAdd    = "add"
	TagCommandRemove = "remove"
)

// Credentials identifies one provider account with a decrypted secret.
// The secret lives only for the duration of the outbound request.
type Credentials struct {
	// AccountID is the provider-assigned account (cloud) identifier.
	AccountID string
	// APIKey is the public half of the account key pair.
	APIKey string
	// APISecret is the decrypted API secret.
	APISecret string
}

// Asset is one remotely stored image addressed by its public identifier.
type Asset struct {
	PublicID  string            `json:"public_id"`
	Format    string            `json:"format"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	URL       string            `json:"url"`
	SecureURL string            `json:"secure_url"`
	CreatedAt string            `json:"created_at"`
	Tags      []string          `json:"tags"`
	Context   map[string]string `json:"context"`
}

// HasTag reports whether the asset carries the given free-form tag.
func (a *Asset) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasFlag reports whether the asset carries the named flag, either as a
// tag or as a structured context value. Context values are read
// tolerantly: "true" and "1" both count.
func (a *Asset) HasFlag(name string) bool {
	if a.HasTag(name) {
		return true
	}
	switch a.Context[name] {
	case "true", "1":
		return true
	}
	return false
}

// IsFinal reports whether the asset may bracket a compilation.
func (a *Asset) IsFinal() bool {
	return a.HasFlag(TagFinal)
}

// IsReel reports whether the asset was already used in a compilation.
func (a *Asset) IsReel() bool {
	return a.HasFlag(TagReel)
}

// DownloadURL returns the preferred URL for fetching the asset bytes.
func (a *Asset) DownloadURL() string {
	if a.SecureURL != "" {
		return a.SecureURL
	}
	return a.URL
}

// UploadResult describes a stored video after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
}

// searchRequest is the JSON body for the provider's search endpoint.
type searchRequest struct {
	Expression string `json:"expression"`
	MaxResults int    `json:"max_results"`
	WithField  string `json:"with_field,omitempty"`
}

// searchResponse is the JSON body returned by the search endpoint.
type searchResponse struct {
	Resources []searchResource `json:"resources"`
	TotalCount int             `json:"total_count"`
}

// searchResource mirrors Asset but carries the context in the provider's
// nested "custom" shape with loosely typed values.
type searchResource struct {
	PublicID  string          `json:"public_id"`
	Format    string          `json:"format"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	URL       string          `json:"url"`
	SecureURL string          `json:"secure_url"`
	CreatedAt string          `json:"created_at"`
	Tags      []string        `json:"tags"`
	Context   resourceContext `json:"context"`
}

func (r *searchResource) toAsset() Asset {
	return Asset{
		PublicID:  r.PublicID,
		Format:    r.Format,
		Width:     r.Width,
		Height:    r.Height,
		URL:       r.URL,
		SecureURL: r.SecureURL,
		CreatedAt: r.CreatedAt,
		Tags:      r.Tags,
		Context:   r.Context.flatten(),
	}
}
