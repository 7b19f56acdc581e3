// Package resolver turns media descriptors into download tasks. It is a
// deterministic decision function over already-fetched metadata: selecting
// the best variant per item and deciding whether the item needs a separate
// audio stream merged in. No network I/O happens here.
package resolver

import (
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/archivebot/mediarchive/internal/media"
)

// Policy controls variant selection tie-breaks.
type Policy struct {
	// PreferredContainer wins ties between variants reporting equal
	// bitrate. Empty means "mp4".
	PreferredContainer string
}

func (p Policy) normalized() Policy {
	if p.PreferredContainer == "" {
		p.PreferredContainer = "mp4"
	}
	p.PreferredContainer = strings.ToLower(p.PreferredContainer)
	return p
}

// Resolver selects variants for media descriptors.
type Resolver struct {
	policy Policy
}

// New returns a Resolver applying the given policy.
func New(policy Policy) *Resolver {
	return &Resolver{policy: policy.normalized()}
}

// Resolve produces the single materialization task for a descriptor.
// A descriptor with zero usable variants returns an error wrapping
// media.ErrNoUsableVariant; callers treat that as a per-item condition,
// not a post-level failure.
func (r *Resolver) Resolve(d media.MediaDescriptor) (*media.ResolvedMediaTask, error) {
	usable := usableVariants(d.Variants)
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: %s post %s", media.ErrNoUsableVariant, d.Platform, d.PostID)
	}

	task := &media.ResolvedMediaTask{
		ID:         uuid.NewString(),
		PostID:     d.PostID,
		Platform:   d.Platform,
		Kind:       d.Kind,
		TargetKind: targetKind(d.Kind),
	}

	switch d.Kind {
	case media.KindImage:
		best := bestImage(usable)
		task.VideoURL = best.URL
		task.Container = strings.ToLower(best.Container)
		task.MIMEType = variantMIME(best)
	case media.KindAudio:
		best := bestAudio(usable)
		task.VideoURL = best.URL
		task.Container = strings.ToLower(best.Container)
		task.MIMEType = variantMIME(best)
	default: // video and animated image
		best := bestVideo(usable, r.policy.PreferredContainer)
		task.VideoURL = best.URL
		task.Container = strings.ToLower(best.Container)
		if task.Container == "" {
			task.Container = r.policy.PreferredContainer
		}
		task.MIMEType = variantMIME(best)

		if audio := usableVariants(d.AudioVariants); len(audio) > 0 {
			task.MergeRequired = true
			task.AudioURL = bestAudio(audio).URL
			// Remux output is always the preferred container.
			task.Container = r.policy.PreferredContainer
			task.MIMEType = mime.TypeByExtension("." + task.Container)
			if task.MIMEType == "" {
				task.MIMEType = "video/mp4"
			}
		}
	}
	return task, nil
}

func targetKind(k media.Kind) media.Kind {
	if k == media.KindAnimatedImage {
		return media.KindVideo
	}
	return k
}

func usableVariants(variants []media.Variant) []media.Variant {
	out := make([]media.Variant, 0, len(variants))
	for _, v := range variants {
		if strings.TrimSpace(v.URL) != "" {
			out = append(out, v)
		}
	}
	return out
}

// bestImage picks the largest declared resolution. When no variant
// declares a resolution, the variant whose URL carries the platform's
// "original" quality hint wins; otherwise the first listed variant.
func bestImage(variants []media.Variant) media.Variant {
	sorted := append([]media.Variant(nil), variants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Width*sorted[i].Height > sorted[j].Width*sorted[j].Height
	})
	best := sorted[0]
	if best.Width*best.Height > 0 {
		return best
	}
	for _, v := range variants {
		if hasOriginalHint(v.URL) {
			return v
		}
	}
	return variants[0]
}

func hasOriginalHint(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, "name=orig") ||
		strings.Contains(lower, ":orig") ||
		strings.Contains(lower, "original")
}

// bestVideo picks the highest declared bitrate; equal bitrates prefer
// the configured container, then height, then listing order.
func bestVideo(variants []media.Variant, preferredContainer string) media.Variant {
	sorted := append([]media.Variant(nil), variants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Bitrate != sorted[j].Bitrate {
			return sorted[i].Bitrate > sorted[j].Bitrate
		}
		pi := strings.ToLower(sorted[i].Container) == preferredContainer
		pj := strings.ToLower(sorted[j].Container) == preferredContainer
		if pi != pj {
			return pi
		}
		return sorted[i].Height > sorted[j].Height
	})
	return sorted[0]
}

func bestAudio(variants []media.Variant) media.Variant {
	sorted := append([]media.Variant(nil), variants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bitrate > sorted[j].Bitrate
	})
	return sorted[0]
}

func variantMIME(v media.Variant) string {
	if v.MIMEType != "" {
		return v.MIMEType
	}
	if v.Container != "" {
		if t := mime.TypeByExtension("." + strings.ToLower(v.Container)); t != "" {
			return t
		}
	}
	if ext := strings.ToLower(path.Ext(urlPath(v.URL))); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return ""
}

func urlPath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}
